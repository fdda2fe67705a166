// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulso-analytics/pulso/services/assistant/handlers"
)

// SetupRoutes registers the assistant endpoints on router.
func SetupRoutes(router *gin.Engine, chat *handlers.ChatHandler, sessions *handlers.SessionHandler) {
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/assistant/chat", chat.Chat)
		v1.GET("/sessions/:sessionId/history", sessions.History)
	}
}
