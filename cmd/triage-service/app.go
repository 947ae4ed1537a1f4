package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"triage/internal/alert"
	"triage/internal/api"
	"triage/internal/classifier"
	"triage/internal/config"
	"triage/internal/constants"
	"triage/internal/intake"
	"triage/internal/logger"
	"triage/internal/pipeline"
	"triage/internal/source"
	"triage/internal/store"
	syncer "triage/internal/sync"
	"triage/pkg/bootstrap"
	"triage/pkg/metrics"
	"triage/pkg/ratelimit"
	"triage/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	resources      *bootstrap.Resources
	source         source.Source
	syncer         *syncer.Syncer
	scheduler      *syncer.Scheduler
	limiter        *ratelimit.Limiter
	server         *http.Server
	tracerProvider *tracing.Provider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.Register()

	tp, err := tracing.Setup(a.config.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	res, err := bootstrap.Open(ctx, a.config, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open resources: %w", err)
	}
	a.resources = res

	st, err := store.New(a.config.Store.Type, res.Postgres, res.MongoDB)
	if err != nil {
		return err
	}
	persister := store.NewPersister(st, a.logger)

	svc, err := classifier.NewService(a.config, res.Redis, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create reasoning service: %w", err)
	}
	cls := classifier.New(svc, a.logger, classifier.WithReasoningConfig(a.config.Reasoning))

	notifier, err := alert.NewNotifier(a.config.Alert, res.Producer, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}

	pl := pipeline.New(cls, alert.NewSignal(notifier, a.logger), persister, a.logger)

	gate, err := intake.NewFilter(a.config.Intake, a.logger)
	if err != nil {
		return fmt.Errorf("failed to compile intake rules: %w", err)
	}

	if a.config.Broker.Type == "kafka" && a.config.Broker.Kafka.InputTopic != "" {
		a.source = source.NewKafkaSource(a.config.Broker.Kafka, a.logger)
		a.syncer = syncer.NewSyncer(a.source, gate, pl, a.config.Sync, a.logger)

		if a.config.Sync.Schedule != "" {
			a.scheduler, err = syncer.NewScheduler(a.config.Sync.Schedule, a.syncer, a.logger)
			if err != nil {
				return fmt.Errorf("invalid sync schedule: %w", err)
			}
		}
	}

	var runner api.SyncRunner
	if a.syncer != nil {
		runner = a.syncer
	}

	opts := api.RouterOptions{
		ServiceName: constants.ServiceName,
		Tracing:     a.config.Tracing.Enabled,
		Health:      res.HealthRegistry(),
	}
	if a.config.Server.RateLimit.Enabled {
		a.limiter = ratelimit.NewLimiter(ratelimit.FromSettings(a.config.Server.RateLimit))
		opts.RateLimiter = a.limiter
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.NewHandler(pl, gate, persister, runner, a.logger), a.logger, opts)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.config.Server.WriteTimeoutSeconds,
	}

	a.logger.InfowCtx(ctx, "Application initialized",
		"store", st.Name(),
		"provider", svc.Name(),
		"notifier", notifier.Name(),
		"intake_rules", gate.RuleCount(),
		"sync_enabled", a.syncer != nil,
	)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(gctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.scheduler != nil {
		g.Go(func() error { return a.scheduler.Run(gctx) })
	}

	if a.limiter != nil {
		g.Go(func() error {
			a.limiter.RunCleanup(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.stopServer(context.Background())
	})

	err := g.Wait()
	// The scheduler has drained by now, so no cycle is using the source or
	// the stores when they close.
	if cerr := a.Shutdown(context.Background()); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

func (a *App) stopServer(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// Shutdown releases the source, the stores and the tracer. Run calls it after
// every loop has returned.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.source != nil {
		if err := a.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close error: %w", err))
		}
	}

	if a.resources != nil {
		if err := a.resources.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	a.logger.InfowCtx(ctx, "Shutdown complete")
	return nil
}
