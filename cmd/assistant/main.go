// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/pulso-analytics/pulso/pkg/logging"
	"github.com/pulso-analytics/pulso/services/assistant/actions"
	"github.com/pulso-analytics/pulso/services/assistant/briefing"
	"github.com/pulso-analytics/pulso/services/assistant/config"
	"github.com/pulso-analytics/pulso/services/assistant/handlers"
	"github.com/pulso-analytics/pulso/services/assistant/llm"
	"github.com/pulso-analytics/pulso/services/assistant/middleware"
	"github.com/pulso-analytics/pulso/services/assistant/routes"
	"github.com/pulso-analytics/pulso/services/assistant/store/postgres"
)

const serviceName = "assistant-service"

// initTracer wires the OTLP gRPC exporter. Tracing is optional: without an
// endpoint configured the service runs untraced.
func initTracer(endpoint string) (func(context.Context), error) {
	if endpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return func(context.Context) {}, nil
	}
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using process environment")
	}

	appLog := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: serviceName,
		LogDir:  os.Getenv("LOG_DIR"),
	})
	defer appLog.Close()
	logger := appLog.Slog()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	cleanup, err := initTracer(cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to the data store: %v", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to bootstrap the chat schema: %v", err)
	}

	client, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel,
		cfg.UpstreamTimeout, logger)
	if err != nil {
		log.Fatalf("failed to initialize the model client: %v", err)
	}

	assembler := briefing.NewAssembler(db, logger, nil)
	executor := actions.NewExecutor(db, logger)
	chat := handlers.NewChatHandler(db, assembler, executor, client, logger, cfg.HistoryLimit)
	sessions := handlers.NewSessionHandler(db, logger)

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.CORS(cfg.AllowedOrigin))
	routes.SetupRoutes(router, chat, sessions)

	slog.Info("starting the assistant server", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
