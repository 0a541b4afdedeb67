// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianDocQA/services/docqa/handlers"
	"github.com/AleutianAI/AleutianDocQA/services/docqa/store"
)

// SetupRoutes wires the docqa HTTP surface onto router.
func SetupRoutes(router *gin.Engine, api handlers.PipelineAPI, st store.Store) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/documents", handlers.IngestDocument(api))
		v1.GET("/documents/:docId", handlers.GetDocument(st))
		v1.GET("/documents/:docId/reviews", handlers.GetReviews(st))
		v1.PUT("/documents/:docId/summary", handlers.UpdateSummary(api))
		v1.POST("/qa", handlers.AskQuestion(api))
	}
}
