package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/imagingworks/protoloop/internal/adapter/fs"
	"github.com/imagingworks/protoloop/internal/adapter/gemini"
	"github.com/imagingworks/protoloop/internal/adapter/groq"
	plhttp "github.com/imagingworks/protoloop/internal/adapter/http"
	plnats "github.com/imagingworks/protoloop/internal/adapter/nats"
	"github.com/imagingworks/protoloop/internal/adapter/otel"
	"github.com/imagingworks/protoloop/internal/adapter/plausibility"
	"github.com/imagingworks/protoloop/internal/adapter/postgres"
	"github.com/imagingworks/protoloop/internal/adapter/renal"
	"github.com/imagingworks/protoloop/internal/adapter/ristretto"
	"github.com/imagingworks/protoloop/internal/config"
	"github.com/imagingworks/protoloop/internal/logger"
	"github.com/imagingworks/protoloop/internal/port/artifact"
	"github.com/imagingworks/protoloop/internal/port/events"
	"github.com/imagingworks/protoloop/internal/port/ruleeval"
	"github.com/imagingworks/protoloop/internal/resilience"
	"github.com/imagingworks/protoloop/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"artifacts_dir", cfg.Artifacts.Dir,
		"postgres", cfg.Postgres.DSN != "",
		"nats", cfg.NATS.URL != "",
		"fhir_export", cfg.Gemini.FHIRExport,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOtel, err := otel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}()
	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Artifact store ---
	var store artifact.Store
	if cfg.Postgres.DSN != "" {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		store = postgres.NewStore(pool)
		slog.Info("postgres artifact store ready")
	} else {
		fsStore, err := fs.NewStore(cfg.Artifacts.Dir)
		if err != nil {
			return fmt.Errorf("artifact dir: %w", err)
		}
		store = fsStore
		slog.Info("filesystem artifact store ready", "dir", cfg.Artifacts.Dir)
	}

	// --- Events ---
	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.URL != "" {
		natsPub, err := plnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = natsPub.Close() }()
		publisher = natsPub
	}

	// --- Collaborators ---
	groqClient := groq.NewClient(cfg.Groq)
	groqClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()
	renalEval := renal.NewCachedEvaluator(renal.NewEvaluator(), cache, cfg.Pipeline.ToolCacheTTL)

	// --- Services ---
	reviews := service.NewReviewService(
		[]ruleeval.Evaluator{renalEval},
		groq.NewScorer(groqClient),
		groq.NewReviewer(groqClient),
		plausibility.NewAnalyzer(),
		metrics,
		log,
	)
	pipelines := service.NewPipelineService(
		groq.NewEnricher(groqClient),
		groq.NewGenerator(groqClient),
		reviews,
		store,
		publisher,
		metrics,
		log,
	)
	if cfg.Gemini.FHIRExport {
		pipelines.SetConverter(gemini.NewConverter(gemini.NewClient(cfg.Gemini)))
	}

	// --- HTTP ---
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(plhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(plhttp.SecurityHeaders)
	r.Use(plhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))

	plhttp.MountRoutes(r, plhttp.NewHandlers(pipelines, reviews))

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Pipeline runs hold the connection through up to six model calls.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
