// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command docqa runs the Aleutian document QA service and its companion
// CLI operations.
//
// # Environment Variables
//
//   - DOCQA_PORT: HTTP server port (default: 12310)
//   - LLM_BACKEND_TYPE: LLM provider - ollama, openai (default: ollama)
//   - EXTRACTOR_SERVICE_URL: extractor sidecar URL (optional; plain-text only when unset)
//   - DOCQA_DATA_DIR: Badger store directory (optional; in-memory when unset)
//   - DOCQA_STRICT_VALIDATION: "true" enables fail-fast ingestion
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: aleutian-otel-collector:4317)
//   - DOCQA_LOG_LEVEL: debug, info, warn, error (default: info)
//   - DOCQA_LOG_DIR: directory for daily JSON log files (optional)
//
// # Usage
//
//	# Start the HTTP server
//	docqa serve
//
//	# Ingest one file from the command line
//	docqa ingest ./reports/q3.txt
//
//	# Ask a question against the running in-process corpus
//	docqa ask "What were the Q3 revenue figures?"
//
//	# Watch a drop folder and ingest new files as they appear
//	docqa watch ./dropbox
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDocQA/pkg/logging"
	"github.com/AleutianAI/AleutianDocQA/services/docqa"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/datatypes"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/watch"
)

var (
	rootCmd = &cobra.Command{
		Use:   "docqa",
		Short: "A CLI to run and drive the Aleutian document QA service",
		Long: `Docqa ingests documents through a validated summarization pipeline,
indexes them into a lexical knowledge base, and answers questions
grounded in the indexed corpus.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Starts the docqa HTTP server",
		RunE:  runServe,
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingests one or more files through the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Answers a question against the persisted corpus",
		Long: `Loads the configured document store, rebuilds the lexical index from
stored chunks, and answers the question. Requires DOCQA_DATA_DIR so a
previously ingested corpus is available.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	watchCmd = &cobra.Command{
		Use:   "watch [directory]",
		Short: "Watches a drop folder and ingests new files",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}

	askDocID string
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(getEnvString("DOCQA_LOG_LEVEL", "info")),
		LogDir:  os.Getenv("DOCQA_LOG_DIR"),
		Service: "docqa",
	})
	defer logger.Close()
	logger.SetupGlobal()

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	askCmd.Flags().StringVar(&askDocID, "doc-id", "", "scope retrieval to start from one document")
	rootCmd.AddCommand(serveCmd, ingestCmd, askCmd, watchCmd)
}

// configFromEnv builds the service configuration from environment variables.
func configFromEnv() docqa.Config {
	return docqa.Config{
		Port:             getEnvInt("DOCQA_PORT", 12310),
		LLMBackend:       getEnvString("LLM_BACKEND_TYPE", "ollama"),
		ExtractorURL:     os.Getenv("EXTRACTOR_SERVICE_URL"),
		DataDir:          os.Getenv("DOCQA_DATA_DIR"),
		OTelEndpoint:     getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
		StrictValidation: getEnvBool("DOCQA_STRICT_VALIDATION", false),
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, err := docqa.New(configFromEnv())
	if err != nil {
		return fmt.Errorf("failed to create docqa service: %w", err)
	}
	return svc.Run()
}

func runIngest(cmd *cobra.Command, args []string) error {
	svc, err := docqa.New(configFromEnv())
	if err != nil {
		return fmt.Errorf("failed to create docqa service: %w", err)
	}
	defer svc.Close()

	ctx := cmd.Context()
	for _, path := range args {
		docID := datatypes.MakeDocID(path)
		sections, summary, entities, err := svc.Pipeline().Ingest(ctx, path, docID)
		if err != nil {
			return fmt.Errorf("ingestion failed for %s: %w", path, err)
		}
		fmt.Printf("Ingested %s\n  doc_id:   %s\n  sections: %d\n  entities: %d\n  summary:  %s\n",
			path, docID, len(sections), len(entities), summary)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := docqa.New(configFromEnv())
	if err != nil {
		return fmt.Errorf("failed to create docqa service: %w", err)
	}
	defer svc.Close()

	question := ""
	for i, arg := range args {
		if i > 0 {
			question += " "
		}
		question += arg
	}

	answer, contexts, err := svc.Pipeline().Answer(cmd.Context(), question, askDocID)
	if err != nil {
		return fmt.Errorf("QA failed: %w", err)
	}

	fmt.Println(answer)
	if len(contexts) > 0 {
		fmt.Printf("\n(%d context chunks used)\n", len(contexts))
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	svc, err := docqa.New(configFromEnv())
	if err != nil {
		return fmt.Errorf("failed to create docqa service: %w", err)
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watcher, err := watch.New(args[0], svc.Pipeline(), nil)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	<-ctx.Done()
	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
