package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"ops-guardian/pkg/api"
	"ops-guardian/pkg/clients/actuator"
	"ops-guardian/pkg/clients/advisor"
	"ops-guardian/pkg/clients/guardian"
	"ops-guardian/pkg/clients/telemetrysource"
	"ops-guardian/pkg/collector"
	"ops-guardian/pkg/config"
	"ops-guardian/pkg/coordination"
	"ops-guardian/pkg/correlation"
	"ops-guardian/pkg/decision"
	"ops-guardian/pkg/metrics"
	"ops-guardian/pkg/storage"
	"ops-guardian/pkg/telemetry"
	"ops-guardian/pkg/worker"
)

// @title Ops Guardian API
// @version 1.0
// @description API for the Ops Guardian agent, responsible for telemetry monitoring, adaptive scaling, multi-agent coordination, and event correlation.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@example.com

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

func main() {

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	}

	if err := config.ValidateEnv(); err != nil {
		log.Fatalf("❌ Configuration Error: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Ops Guardian started on port %d", cfg.Server.Port)
	log.Printf("Telemetry Source URL: %s", cfg.Telemetry.BaseURL)
	log.Printf("Decision Journal: %s", cfg.SQLite.DBPath)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	store, err := storage.NewDecisionStore(cfg.SQLite.DBPath)
	if err != nil {
		log.Printf("Decision journal disabled: %v", err)
		store = nil
	} else {
		defer store.Close()
	}

	telemetryClient := telemetrysource.NewClient(cfg.Telemetry)
	exporter := telemetry.NewExporter(cfg.Influx)

	correlationEngine := correlation.NewEngine(cfg.Correlation)
	defer correlationEngine.Close()

	gate := coordination.NewGate(correlationEngine, "ops-guardian")

	var adv decision.Advisor
	if c := advisor.NewClient(cfg.Advisor); c != nil {
		adv = c
	}
	engine := decision.NewEngine(adv, cfg.Scaling, cfg.Advisor.Timeout)

	var act worker.Actuator
	if c := actuator.NewClient(cfg.Actuator); c != nil {
		act = c
	}
	var gdn worker.PriorityChecker
	if c := guardian.NewClient(cfg.Guardian); c != nil {
		gdn = c
	}

	metricsCollector := collector.New(telemetryClient, exporter, correlationEngine, cfg.Monitoring.HistoryMaxEntries, cfg.Monitoring.DegradedAfterCycles)

	var journal worker.Journal
	if store != nil {
		journal = store
	}
	monitor := worker.NewMonitor(cfg, metricsCollector, engine, gate, act, gdn, correlationEngine, journal)

	apiHandler := api.NewHandler(cfg, monitor, metricsCollector, gate, telemetryClient, exporter)
	eventsHandler := &api.EventsHandler{Engine: correlationEngine}
	decisionsHandler := &api.DecisionsHandler{Store: store}

	r := chi.NewRouter()

	r.Use(api.CorrelationMiddleware)

	// Swagger UI
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "docs/swagger.json")
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"), // The url pointing to API definition
	))

	r.Get("/health", apiHandler.HealthHandler)
	r.Get("/ready", apiHandler.ReadyHandler)
	r.Post("/monitoring/start", apiHandler.StartMonitoringHandler)
	r.Post("/monitoring/stop", apiHandler.StopMonitoringHandler)
	r.Get("/monitoring/status", apiHandler.MonitoringStatusHandler)
	r.Get("/metrics", apiHandler.MetricsSnapshotHandler)
	r.Post("/scaling/decision", apiHandler.DecisionHandler)
	r.Post("/scaling/manual", apiHandler.ManualScaleHandler)
	r.Post("/coordination/pause", apiHandler.PauseHandler)
	r.Post("/coordination/resume", apiHandler.ResumeHandler)
	r.Get("/coordination/status", apiHandler.CoordinationStatusHandler)

	eventsHandler.RegisterRoutes(r)
	decisionsHandler.RegisterRoutes(r)

	r.Handle("/metrics/prometheus", promhttp.Handler())

	if cfg.Monitoring.AutoStart {
		monitor.Start()
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	monitor.Stop()

	exporter.Close()

	log.Println("Server exited")
}
