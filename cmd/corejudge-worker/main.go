// Command corejudge-worker is the process entry point: it wires every
// singleton (store, broker, object store, repositories, LLM gateway,
// worker pool, orphan-recovery scheduler, metrics/health listener) and
// runs until SIGTERM/SIGINT, then drains in-flight tasks before
// exiting.
//
// Config load, logger construction, and signal-driven graceful
// shutdown all run through a single cancellable root context. The
// metrics/health listener is a bare net/http.ServeMux exposing
// /metrics and /healthz only — job submission and config
// administration are out of scope (§1) and have no HTTP surface here.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/algojudge/corejudge/broker"
	"github.com/algojudge/corejudge/clock"
	"github.com/algojudge/corejudge/config"
	"github.com/algojudge/corejudge/internal/metrics"
	"github.com/algojudge/corejudge/internal/server"
	"github.com/algojudge/corejudge/llmgateway"
	"github.com/algojudge/corejudge/objectstore"
	"github.com/algojudge/corejudge/orphanrecovery"
	"github.com/algojudge/corejudge/repo"
	"github.com/algojudge/corejudge/runner"
	"github.com/algojudge/corejudge/store"
	"github.com/algojudge/corejudge/tasks"
	"github.com/algojudge/corejudge/testcase"
	"github.com/algojudge/corejudge/webfetch"
	"github.com/algojudge/corejudge/workerpool"
)

func main() {
	configPath := os.Getenv("COREJUDGE_CONFIG_FILE")

	cfg, err := config.NewLoader().WithConfigPath(configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("worker exited with error", zap.Error(err))
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         cfg.Format,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, err := store.NewRedisStore(store.RedisStoreConfig{
		Addr:      fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		Password:  cfg.Broker.Password,
		DB:        cfg.Broker.DB,
		KeyPrefix: cfg.Broker.KeyPrefix + ":store:",
	}, logger)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	b, err := broker.NewRedisBroker(broker.RedisBrokerConfig{
		Host:         cfg.Broker.Host,
		Port:         cfg.Broker.Port,
		Password:     cfg.Broker.Password,
		DB:           cfg.Broker.DB,
		KeyPrefix:    cfg.Broker.KeyPrefix + ":broker:",
		ConsumerName: cfg.Broker.ConsumerName,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}

	realClock := clock.Real()

	problems := repo.NewProblemRepo(st)
	extractionJobs := repo.NewProblemExtractionJobRepo(st)
	scriptJobs := repo.NewScriptGenerationJobRepo(st)
	progress := repo.NewProgressRepo(st)
	histories := repo.NewHistoryRepo(st)

	objects := objectstore.NewMemoryStore()
	cases := testcase.New(objects, problems, logger)

	fetcher := webfetch.New(logger)

	// The sandbox runner is an external capability (§4.9, Non-goals):
	// real code execution is provided by the deployment environment.
	// NewEcho stands in until an operator wires a real Runner.
	sandbox := runner.NewEcho()

	gatewayProviders := buildLLMProviders(cfg.LLM, logger)
	gateway := llmgateway.New(logger, gatewayProviders...)

	// The usage ledger and rate limiter (C2/C3) gate job admission and
	// are consumed by the HTTP layer that accepts execute/hints
	// requests before enqueueing them; that layer is out of scope here
	// (§1), so this process never constructs them. The worker only
	// runs jobs that already cleared admission.

	deps := &tasks.Deps{
		Problems:        problems,
		ExtractionJobs:  extractionJobs,
		ScriptJobs:      scriptJobs,
		Progress:        progress,
		Histories:       histories,
		TestCases:       cases,
		Gateway:         gateway,
		Runner:          sandbox,
		Fetcher:         fetcher,
		Broker:          b,
		Clock:           realClock,
		Logger:          logger,
		LLMProvider:     cfg.LLM.DefaultProvider,
		LLMModel:        "",
		OrphanThreshold: time.Duration(cfg.OrphanRecovery.ThresholdSeconds) * time.Second,
	}

	collector := metrics.NewCollector("corejudge", logger)

	pool := workerpool.New(b, workerpool.Config{
		Queues:      cfg.Worker.Queues,
		Size:        cfg.Worker.PoolSize,
		GracePeriod: cfg.Worker.ShutdownGracePeriod,
		Recorder:    collector,
	}, logger)
	tasks.Register(pool, deps)

	sweeper := orphanrecovery.New(b, time.Duration(cfg.OrphanRecovery.IntervalSeconds)*time.Second, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	admin := newAdminServer(cfg, logger)
	if err := admin.Start(); err != nil {
		return fmt.Errorf("start admin server: %w", err)
	}

	logger.Info("corejudge-worker starting",
		zap.Int("pool_size", cfg.Worker.PoolSize),
		zap.Strings("queues", cfg.Worker.Queues),
		zap.String("llm_provider", cfg.LLM.DefaultProvider),
	)

	runErr := pool.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin server shutdown error", zap.Error(err))
	}

	return runErr
}

// buildLLMProviders registers every LLM backend the pack's retrieval
// corpus exercises. Only the configured default provider's API key is
// required; the rest are wired so operators can repoint tasks at them
// via Deps.LLMProvider without a code change.
func buildLLMProviders(cfg config.LLMConfig, logger *zap.Logger) []llmgateway.Provider {
	return []llmgateway.Provider{
		llmgateway.NewAnthropicProvider(llmgateway.AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}, logger),
		llmgateway.NewOpenAIProvider(llmgateway.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}, logger),
	}
}

// newAdminServer mounts the Prometheus exposition endpoint and a
// liveness probe. Job submission and config administration are both
// out of scope (§1); this listener exists solely so an operator can
// scrape metrics and a deployment can health-check the process.
func newAdminServer(cfg *config.Config, logger *zap.Logger) *server.Manager {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return server.NewManager(mux, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
}
