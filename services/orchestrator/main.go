// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianHelpdesk/services/llm"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/config"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/sessions"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/store"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/ttl"
	"github.com/AleutianAI/AleutianHelpdesk/services/servicenow"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// No collector configured; tracing stays local-noop.
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("helpdesk-orchestrator")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: bad configuration: %v", err)
	}

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	log.Println("Configuring the LLM Client")
	llmClient, err := llm.NewOpenAIClient()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	pending := store.NewMemory()
	sessionStore := sessions.NewMemory(cfg.SessionTTL)

	credentials, err := sessions.LoadCredentials(cfg.UsersFile)
	if err != nil {
		log.Fatalf("FATAL: could not load login credentials: %v", err)
	}

	gateway := servicenow.NewClient(servicenow.Config{
		Instance: cfg.ServiceNowInstance,
		Username: cfg.ServiceNowUsername,
		Password: cfg.ServiceNowPassword,
		Token:    cfg.ServiceNowToken,
		UserID:   cfg.ServiceNowUserID,
		Timeout:  cfg.ServiceNowTimeout,
	}, pending)

	sweeper := ttl.NewSweeper(pending, sessionStore, ttl.SweeperConfig{
		Interval:  cfg.SweepInterval,
		Retention: cfg.PendingTTL,
	})
	if err := sweeper.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start the TTL sweeper: %v", err)
	}
	defer sweeper.Stop()

	router := gin.Default()
	router.Use(otelgin.Middleware("helpdesk-orchestrator"))

	routes.SetupRoutes(router, routes.Deps{
		LLM:              llmClient,
		Gateway:          gateway,
		Pending:          pending,
		Sessions:         sessionStore,
		Credentials:      credentials,
		CallbackUsername: cfg.CallbackUsername,
		CallbackPassword: cfg.CallbackPassword,
	})

	log.Println("Starting the helpdesk orchestrator on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
