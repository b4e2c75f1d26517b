package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cognitive-bandwidth/router/pkg/config"
	"github.com/cognitive-bandwidth/router/pkg/contextproviders"
	"github.com/cognitive-bandwidth/router/pkg/eventbus"
	"github.com/cognitive-bandwidth/router/pkg/metrics"
	"github.com/cognitive-bandwidth/router/pkg/models"
	"github.com/cognitive-bandwidth/router/pkg/policy"
	redisclient "github.com/cognitive-bandwidth/router/pkg/redis"
	"github.com/cognitive-bandwidth/router/pkg/router"
	"github.com/cognitive-bandwidth/router/pkg/server"
	"github.com/cognitive-bandwidth/router/pkg/telemetry"
	"github.com/cognitive-bandwidth/router/pkg/workflow"
)

var (
	servePolicyFile string
	serveUseRedis   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the router as an HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePolicyFile, "policy-file", "", "YAML policy file; watched for changes and hot-reloaded")
	serveCmd.Flags().BoolVar(&serveUseRedis, "redis", false, "back the workflow queue and event bus with Redis instead of in-memory")
}

func runServe(ctx context.Context) error {
	cfg := config.Load()
	m := metrics.NewMetrics()

	activePolicy := policy.Default()
	if servePolicyFile != "" {
		loaded, err := loadPolicyFile(servePolicyFile)
		if err != nil {
			return inputFileError(fmt.Errorf("load policy file: %w", err))
		}
		activePolicy = loaded
	}

	engine := workflow.NewEngine()
	var orchestrator workflow.Orchestrator = engine
	var auditSink *workflow.SQLiteAuditSink

	var rdb *redisclient.Client
	if serveUseRedis {
		var err error
		rdb, err = redisclient.NewClientFromConfig(cfg, rootLogger)
		if err != nil {
			return configError(fmt.Errorf("connect to redis: %w", err))
		}
		defer rdb.Close()

		queue := workflow.NewRedisQueue(rdb.GetRedisClient(), rootLogger, m)
		orchestrator = queue
	}

	if cfg.SQLiteAuditPath != "" {
		opened, err := workflow.OpenSQLiteAuditSink(cfg.SQLiteAuditPath)
		if err != nil {
			return configError(fmt.Errorf("open sqlite audit sink: %w", err))
		}
		auditSink = opened
		defer auditSink.Close()
	}

	queueSource := contextproviders.QueueAware{Source: orchestrator}
	collector := telemetry.New(cfg.TelemetryWindow())

	svc := router.New(router.Options{
		Policy:    activePolicy,
		Providers: []contextproviders.Provider{queueSource},
		Queue:     orchestrator,
		Collector: collector,
		Metrics:   m,
		Logger:    rootLogger,
	})

	if serveUseRedis {
		queue := orchestrator.(*workflow.RedisQueue)
		svc.RegisterSink(models.StrategyWildcard, queue.AsSink())
	} else {
		svc.RegisterSink(models.StrategyWildcard, engine.AsSink())
	}
	if auditSink != nil {
		svc.RegisterSink(models.StrategyWildcard, auditSink)
	}

	if serveUseRedis {
		streamBus := eventbus.NewRedisStreamBus(rdb.GetRedisClient(), cfg.ConsumerGroupName, cfg.InstanceID, rootLogger, m)
		for _, topic := range []models.Strategy{models.StrategyImmediate, models.StrategyBatch, models.StrategyAuto, models.StrategyPark} {
			if err := streamBus.EnsureGroup(ctx, string(topic)); err != nil {
				return configError(fmt.Errorf("ensure event stream group for %s: %w", topic, err))
			}
		}
		svc.RegisterSink(models.StrategyWildcard, streamPublishSink{bus: streamBus})
	} else {
		bus := eventbus.NewInMemoryBus(rootLogger)
		svc.RegisterSink(models.StrategyWildcard, busPublishSink{bus: bus})
	}

	httpServer := server.NewHTTPServer(":"+cfg.Port, svc, orchestrator, m, rootLogger)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if servePolicyFile != "" {
		stopWatch, err := watchPolicyFile(servePolicyFile, svc)
		if err != nil {
			rootLogger.WithError(err).Warn("policy file watch failed to start; hot-reload disabled")
		} else {
			defer stopWatch()
		}
	}

	go func() {
		rootLogger.WithField("addr", httpServer.Addr).Info("router HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil {
			rootLogger.WithError(err).Error("router HTTP server stopped")
		}
	}()

	go runTelemetryCleanup(serveCtx, collector, cfg.CleanupInterval())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		rootLogger.Info("received shutdown signal")
	case <-serveCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runTelemetryCleanup periodically evicts stale telemetry samples, so a
// collector with no incoming samples and no one polling /telemetry still
// bounds its memory at cfg.CleanupInterval rather than only on access.
func runTelemetryCleanup(ctx context.Context, collector *telemetry.Collector, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			collector.Evict(now)
		}
	}
}

// policyFileParams mirrors policy.Params with mapstructure tags, since
// policy.Params itself carries no decoding tags — pkg/policy stays free
// of any dependency on how its values get loaded.
type policyFileParams struct {
	SLOWeight            float64 `mapstructure:"slo_weight"`
	UncertaintyWeight    float64 `mapstructure:"uncertainty_weight"`
	SeverityWeight       float64 `mapstructure:"severity_weight"`
	AttentionWeight      float64 `mapstructure:"attention_weight"`
	SLOHorizonMinutes    float64 `mapstructure:"slo_horizon_minutes"`
	ImmediateThreshold   float64 `mapstructure:"immediate_threshold"`
	BatchThreshold       float64 `mapstructure:"batch_threshold"`
	MinConfidenceForAuto float64 `mapstructure:"min_confidence_for_auto"`
	MaxSeverityForAuto   int     `mapstructure:"max_severity_for_auto"`
	ParkLoadThreshold    float64 `mapstructure:"park_load_threshold"`
	AutoMinSLOMinutes    float64 `mapstructure:"auto_min_slo_minutes"`
}

func (f policyFileParams) toParams() policy.Params {
	return policy.Params{
		SLOWeight: f.SLOWeight, UncertaintyWeight: f.UncertaintyWeight,
		SeverityWeight: f.SeverityWeight, AttentionWeight: f.AttentionWeight,
		SLOHorizonMinutes: f.SLOHorizonMinutes, ImmediateThreshold: f.ImmediateThreshold,
		BatchThreshold: f.BatchThreshold, MinConfidenceForAuto: f.MinConfidenceForAuto,
		MaxSeverityForAuto: f.MaxSeverityForAuto, ParkLoadThreshold: f.ParkLoadThreshold,
		AutoMinSLOMinutes: f.AutoMinSLOMinutes,
	}
}

// loadPolicyFile reads a YAML policy override file via viper, the same
// way the pack's viper-based config loaders (ShayCichocki-Alphie's
// internal/config.LoadFromPath) read a single named config file.
func loadPolicyFile(path string) (*policy.Policy, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var file policyFileParams
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("unmarshal policy file: %w", err)
	}
	return policy.New(file.toParams())
}

// watchPolicyFile watches path's parent directory (fsnotify is more
// reliable watching directories than individual files, which can be
// replaced-not-written by editors) and calls svc.UpdatePolicy whenever
// the file itself is rewritten.
func watchPolicyFile(path string, svc *router.Service) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch policy directory: %w", err)
	}

	base := filepath.Base(path)
	stop := make(chan struct{})

	go func() {
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				p, err := loadPolicyFile(path)
				if err != nil {
					rootLogger.WithError(err).Warn("policy file reload rejected; keeping previous policy")
					continue
				}
				svc.UpdatePolicy(p)
				rootLogger.Info("policy hot-reloaded from file")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				rootLogger.WithError(err).Warn("policy file watcher error")
			}
		}
	}()

	return func() {
		close(stop)
		watcher.Close()
	}, nil
}

// busPublishSink republishes every routed WorkItem onto the in-memory
// event bus under a topic named after its strategy, so other in-process
// components (future subscribers, or tests) can react without polling
// the queue.
type busPublishSink struct {
	bus *eventbus.InMemoryBus
}

func (s busPublishSink) Dispatch(ctx context.Context, item models.WorkItem) error {
	s.bus.Publish(ctx, string(item.Strategy), item)
	return nil
}

// streamPublishSink is busPublishSink's Redis-backed counterpart, used
// when serve is run with --redis so routed work is visible to other
// instances via Redis Streams rather than only in this process.
type streamPublishSink struct {
	bus *eventbus.RedisStreamBus
}

func (s streamPublishSink) Dispatch(ctx context.Context, item models.WorkItem) error {
	return s.bus.Publish(ctx, string(item.Strategy), item)
}
