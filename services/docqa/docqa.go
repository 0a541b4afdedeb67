// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package docqa assembles the document QA service: HTTP routing, the
// ingestion/QA pipeline, the lexical knowledge base, document storage, the
// policy engine, and observability infrastructure.
//
// # Usage
//
//	cfg := docqa.Config{Port: 12310, LLMBackend: "ollama"}
//	svc, err := docqa.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package docqa

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/chunk"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/critics"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/kb"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/observability"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/pipeline"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/routes"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/store"
	"github.com/AleutianAI/AleutianDocQA/services/extract"
	"github.com/AleutianAI/AleutianDocQA/services/llm"
	"github.com/AleutianAI/AleutianDocQA/services/policy_engine"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the docqa service lifecycle.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Pipeline returns the assembled pipeline for in-process callers (CLI,
	// drop-folder watcher).
	Pipeline() *pipeline.Pipeline

	// Store returns the document store for in-process callers.
	Store() store.Store

	// Close releases held resources without starting the server. Run()
	// performs the same cleanup on exit; call Close only when Run was never
	// started.
	Close()
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds docqa service configuration. Zero values use defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// LLMBackend specifies the completion provider.
	// Valid values: "ollama", "openai". Default: "ollama"
	LLMBackend string

	// ExtractorURL points at the extractor sidecar for binary formats.
	// If empty, only plain-text files can be ingested (local extraction).
	ExtractorURL string

	// DataDir is the Badger store location. If empty, documents are held
	// in memory and lost on exit.
	DataDir string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// StrictValidation selects fail-fast ingestion instead of degraded
	// fallbacks. Default: false (degraded).
	StrictValidation bool

	// StageTimeout bounds each collaborator call. Default: 2m.
	StageTimeout time.Duration

	// CriticBudget bounds one full critic review pass. Must be strictly
	// shorter than StageTimeout; defaulted to 45s.
	CriticBudget time.Duration

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	if cfg.StageTimeout == 0 {
		cfg.StageTimeout = 2 * time.Minute
	}
	if cfg.CriticBudget == 0 || cfg.CriticBudget >= cfg.StageTimeout {
		cfg.CriticBudget = 45 * time.Second
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        Config
	router        *gin.Engine
	pipe          *pipeline.Pipeline
	docStore      store.Store
	badger        *store.Badger
	index         *kb.Index
	llmClient     llm.LLMClient
	policyEngine  *policy_engine.Engine
	tracerCleanup func(context.Context)
}

var _ Service = (*service)(nil)

// New assembles a ready-to-run docqa service.
//
// # Description
//
//  1. Applies configuration defaults.
//  2. Initializes OpenTelemetry tracing and Prometheus metrics.
//  3. Opens the document store (Badger when DataDir is set).
//  4. Builds the lexical index, policy engine, and LLM client.
//  5. Wires the pipeline and HTTP routes.
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
		index:  kb.NewIndex(),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	observability.GetMetrics()

	if err := s.initStore(); err != nil {
		s.Close()
		return nil, err
	}

	s.policyEngine, err = policy_engine.NewEngine()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	var extractor extract.Extractor = extract.Local{}
	if s.config.ExtractorURL != "" {
		extractor = extract.NewHTTPClient(s.config.ExtractorURL)
		slog.Info("Using HTTP extractor sidecar", "url", s.config.ExtractorURL)
	}

	coordinator := critics.NewCoordinator(s.llmClient, s.docStore, s.config.CriticBudget)

	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.StrictValidation = s.config.StrictValidation
	pipeCfg.StageTimeout = s.config.StageTimeout
	s.pipe = pipeline.New(pipeCfg, extractor, s.llmClient, s.docStore,
		pipeline.KBIndexer{KB: s.index}, coordinator, s.policyEngine)

	if err := s.rebuildIndex(pipeCfg.ChunkSize); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}

	s.initRouter()
	return s, nil
}

// rebuildIndex repopulates the lexical index from the persisted corpus, so
// QA works across restarts without re-ingesting.
func (s *service) rebuildIndex(chunkSize int) error {
	ctx := context.Background()
	ids, err := s.docStore.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		doc, err := s.docStore.Get(ctx, id)
		if err != nil {
			slog.Warn("Skipping unreadable document during index rebuild", "doc_id", id, "error", err)
			continue
		}
		if doc.RawText == "" {
			continue
		}
		s.index.Index(id, chunk.Split(doc.RawText, chunkSize))
	}
	if len(ids) > 0 {
		slog.Info("Rebuilt lexical index from store", "documents", len(ids), "chunks", s.index.Size())
		observability.GetMetrics().SetIndexedChunks(s.index.Size())
	}
	return nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.Close()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting docqa server", "port", s.config.Port,
		"strict_validation", s.config.StrictValidation)

	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine { return s.router }

func (s *service) Pipeline() *pipeline.Pipeline { return s.pipe }

func (s *service) Store() store.Store { return s.docStore }

// Close releases the store and shuts down the tracer. Idempotent.
func (s *service) Close() {
	if s.badger != nil {
		if err := s.badger.Close(); err != nil {
			slog.Warn("Badger close error", "error", err)
		}
		s.badger = nil
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer sets up the OTLP trace exporter toward the configured
// collector. Uses an insecure gRPC connection, appropriate for internal
// networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("docqa-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore opens Badger when DataDir is configured, otherwise falls back
// to the in-memory store.
func (s *service) initStore() error {
	if s.config.DataDir == "" {
		slog.Info("No data dir configured, documents are held in memory only")
		s.docStore = store.NewMemory()
		return nil
	}
	b, err := store.OpenBadger(s.config.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	s.badger = b
	s.docStore = b
	return nil
}

// initLLMClient creates the completion client for the configured backend.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to ollama", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOllamaClient()
	}

	return err
}

// initRouter sets up the Gin engine, middleware, and routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("docqa-service"))

	routes.SetupRoutes(s.router, s.pipe, s.docStore)
}
