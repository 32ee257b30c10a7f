// cmd/shopping-assistant/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/database"
	httpclient "shopping-assistant/internal/common/http"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/internal/llm/factory"
	"shopping-assistant/internal/orchestrator"
	"shopping-assistant/internal/server"
	"shopping-assistant/pkg/registry"

	ci "shopping-assistant/internal/workers/assistant/classify-intent"
	ss "shopping-assistant/internal/workers/assistant/split-stream"
	rt "shopping-assistant/internal/workers/audit/record-turn"
	sf "shopping-assistant/internal/workers/communication/submit-feedback"
	er "shopping-assistant/internal/workers/shopping/enrich-results"
	ef "shopping-assistant/internal/workers/shopping/extract-formula"
	sp "shopping-assistant/internal/workers/shopping/scrape-page"
	sr "shopping-assistant/internal/workers/shopping/search-products"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// app holds everything built at startup that needs closing on shutdown.
type app struct {
	server  *server.Server
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting shopping assistant...",
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.Server.Port),
	)

	var obs *observability.Observability
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		obs = observability.New(cfg.Observability.ServiceName)
		defer obs.Shutdown()
	}

	a, err := buildApp(ctx, cfg, obs, zapLog, log)
	if err != nil {
		return err
	}
	defer a.Close()

	api := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     a.server.Handler(),
		ReadTimeout: config.GetDuration(cfg.Server.ReadTimeout),
		// Streams can run for minutes; zero disables the write deadline.
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	var ops *http.Server
	if cfg.Server.HealthPort > 0 && cfg.Server.HealthPort != cfg.Server.Port {
		ops = &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Server.HealthPort),
			Handler:     a.server.OpsHandler(),
			ReadTimeout: 5 * time.Second,
		}
		go func() {
			zapLog.Info("Health/Metrics server listening", zap.String("addr", ops.Addr))
			if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLog.Error("Health/Metrics server failed", zap.Error(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLog.Info("Chat API listening", zap.String("addr", api.Addr))
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received, draining streams...")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("chat API failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := api.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down chat API", zap.Error(err))
	}
	if ops != nil {
		_ = ops.Shutdown(shutdownCtx)
	}

	zapLog.Info("Shopping assistant stopped gracefully")
	return nil
}

// buildApp connects the enabled stores and wires every stage into the
// orchestrator and HTTP server.
func buildApp(ctx context.Context, cfg *config.Config, obs *observability.Observability, zapLog *zap.Logger, log logger.Logger) (*app, error) {
	a := &app{}
	var checks []server.ReadinessCheck

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	if cfg.Database.Redis.Enabled {
		err := retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, redis.Close)
		checks = append(checks, server.ReadinessCheck{Name: "redis", Check: redis.Ping})
		zapLog.Info("Redis connected successfully")
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled {
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		checks = append(checks, server.ReadinessCheck{Name: "postgres", Check: pg.Ping})
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Init Elasticsearch with retry ---
	var es *database.ElasticsearchClient
	if cfg.Search.Backend == sr.BackendElasticsearch {
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			a.Close()
			return nil, err
		}
		checks = append(checks, server.ReadinessCheck{Name: "elasticsearch", Check: es.Ping})
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Providers and mode table ---
	providers := factory.New(cfg.Providers, httpclient.NewClient(0))

	modes, err := registry.Load(cfg.Providers.ModesFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load mode registry: %w", err)
	}
	if err := modes.Validate(providers.Names()); err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid mode registry: %w", err)
	}

	// Helper models are resolved once. A missing key leaves the provider nil:
	// the classifier then always falls back and extraction uses placeholders.
	classifierProvider, err := providers.Get(ctx, cfg.Providers.Classifier.Provider)
	if err != nil {
		zapLog.Warn("classifier provider unavailable, every turn will use the fallback mode", zap.Error(err))
	}
	extractorProvider, err := providers.Get(ctx, cfg.Providers.Extractor.Provider)
	if err != nil {
		zapLog.Warn("extractor provider unavailable, results will carry the placeholder formula", zap.Error(err))
	}

	// --- Stages ---
	ciCfg := ci.LoadConfig()
	ciCfg.Model = cfg.Providers.Classifier.Model
	applyStage(cfg, ci.TaskType, &ciCfg.Timeout, &ciCfg.MaxRetries)
	classifier := ci.NewHandler(ciCfg, classifierProvider, log)

	srCfg := sr.LoadConfig()
	srCfg.Backend = cfg.Search.Backend
	srCfg.BaseURL = cfg.Search.BaseURL
	srCfg.APIKey = cfg.Search.APIKey
	srCfg.Engine = cfg.Search.Engine
	srCfg.Location = cfg.Search.Location
	srCfg.Index = cfg.Database.Elasticsearch.Index
	srCfg.MaxResults = cfg.Enrichment.MaxResults
	applyStage(cfg, sr.TaskType, &srCfg.Timeout, nil)
	backend, err := sr.NewBackend(srCfg, nil, es)
	if err != nil {
		a.Close()
		return nil, err
	}
	searcher := sr.NewHandler(srCfg, backend, log)

	spCfg := sp.LoadConfig()
	spCfg.BaseURL = cfg.Scraper.BaseURL
	spCfg.APIKey = cfg.Scraper.APIKey
	spCfg.MaxBytes = cfg.Scraper.MaxBytes
	spCfg.CacheTTL = config.GetDuration(cfg.Scraper.CacheTTL)
	applyStage(cfg, sp.TaskType, &spCfg.Timeout, nil)
	scraper := sp.NewHandler(spCfg, nil, sp.NewCache(redis, spCfg.CacheTTL), log)

	efCfg := ef.LoadConfig()
	efCfg.Model = cfg.Providers.Extractor.Model
	applyStage(cfg, ef.TaskType, &efCfg.Timeout, nil)
	extractor := ef.NewHandler(efCfg, extractorProvider, log)

	erCfg := er.LoadConfig()
	erCfg.Concurrency = cfg.Enrichment.Concurrency
	erCfg.PlaceholderFormula = cfg.Enrichment.PlaceholderFormula
	erCfg.DropFailedHits = cfg.Enrichment.DropFailedHits
	enricher := er.NewHandler(erCfg, searcher, scraper, extractor, log)

	deps := orchestrator.Dependencies{
		Classifier:    classifier,
		Registry:      modes,
		Providers:     providers,
		Transformer:   ss.NewTransformer(ss.LoadConfig()),
		Enricher:      enricher,
		Observability: obs,
		Logger:        log,
	}
	if pg != nil && config.IsStageEnabled(cfg, rt.TaskType) {
		rtCfg := rt.LoadConfig()
		applyStage(cfg, rt.TaskType, &rtCfg.Timeout, nil)
		deps.Auditor = rt.NewHandler(rtCfg, pg.DB, log)
	}

	orchCfg := orchestrator.DefaultConfig()
	applyStage(cfg, config.StageStreamResponse, &orchCfg.StreamTimeout, nil)
	orch := orchestrator.New(deps, orchCfg)

	// --- Feedback ---
	var feedback server.FeedbackService
	if config.IsStageEnabled(cfg, sf.TaskType) {
		sfCfg := sf.DefaultConfig()
		sfCfg.Sink = cfg.Feedback.Sink
		sfCfg.FormspreeURL = cfg.Feedback.FormspreeURL
		sfCfg.SESFrom = cfg.Feedback.SES.From
		sfCfg.SESTo = cfg.Feedback.SES.To
		sfCfg.SNSTopicARN = cfg.Feedback.SNS.TopicARN
		applyStage(cfg, sf.TaskType, &sfCfg.Timeout, nil)
		sink, err := sf.NewSink(ctx, sfCfg, cfg.AWS.Region, nil, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("feedback sink: %w", err)
		}
		feedback = sf.NewService(sf.ServiceDependencies{Sink: sink, Logger: log}, sfCfg)
	}

	srvCfg := server.DefaultConfig()
	srvCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	srvCfg.MaxBodyBytes = cfg.Server.MaxBodyBytes
	srvCfg.MetricsEnabled = cfg.Observability.MetricsEnabled

	a.server = server.New(server.Dependencies{
		Turns:    orch,
		Feedback: feedback,
		Checks:   checks,
		Logger:   log,
	}, srvCfg)

	zapLog.Info("All stages registered successfully",
		zap.String("searchBackend", cfg.Search.Backend),
		zap.String("feedbackSink", cfg.Feedback.Sink),
		zap.Bool("audit", deps.Auditor != nil),
	)
	return a, nil
}

// applyStage copies a stage's configured timeout and retry count over the
// package defaults.
func applyStage(cfg *config.Config, stage string, timeout *time.Duration, retries *int) {
	sc := config.GetStageConfig(cfg, stage)
	if sc.Timeout > 0 && timeout != nil {
		*timeout = config.GetDuration(sc.Timeout)
	}
	if retries != nil && sc.MaxRetries > 0 {
		*retries = sc.MaxRetries
	}
}
