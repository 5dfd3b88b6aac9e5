package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"

	"github.com/vietddude/syncwatch/internal/core/config"
	"github.com/vietddude/syncwatch/internal/indexing/alert"
	"github.com/vietddude/syncwatch/internal/indexing/health"
	"github.com/vietddude/syncwatch/internal/indexing/reconcile"
	"github.com/vietddude/syncwatch/internal/indexing/throttle"
	redisclient "github.com/vietddude/syncwatch/internal/infra/redis"
	"github.com/vietddude/syncwatch/internal/infra/source"
)

// Watcher is the main application struct that manages the monitor lifecycle.
type Watcher struct {
	cfg          *config.AppConfig
	collector    *source.Collector
	pool         pond.Pool
	healthMon    *health.Monitor
	healthServer *health.Server
	grpcServer   *health.GRPCServer
	notifier     *alert.Notifier
	redisClient  *redisclient.Client
	cron         *cron.Cron
	log          *slog.Logger
	wg           sync.WaitGroup
}

// NewWatcher creates a new Watcher instance with all dependencies initialized.
func NewWatcher(cfg *config.AppConfig, logger *slog.Logger) (*Watcher, error) {
	if err := cfg.RequireEndpoints(); err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:  cfg,
		pool: pond.NewPool(cfg.Sources.RPC.Concurrency),
		log:  logger.With("component", "watcher"),
	}

	// 1. Sources
	w.collector = BuildCollector(cfg, w.pool, logger)

	// 2. Health monitor and servers
	w.healthMon = health.NewMonitor(w.collector, Endpoints(cfg), Thresholds(cfg), logger)
	if cfg.Server.GRPCPort > 0 {
		w.grpcServer = health.NewGRPCServer(cfg.Server.GRPCPort, logger)
		w.healthMon.OnReport(w.grpcServer.Update)
	}

	// 3. Alerting
	var trigger health.TriggerFunc
	if cfg.Alert.Enabled() {
		notifier, err := w.buildNotifier()
		if err != nil {
			return nil, err
		}
		w.notifier = notifier
		trigger = w.RunAlerts

		w.cron = cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger{w.log}),
			cron.WithChain(cron.Recover(cronLogger{w.log})),
		)
		if _, err := w.cron.AddFunc(cfg.Alert.Schedule, func() {
			if err := w.RunAlerts(context.Background()); err != nil {
				w.log.Error("Alert job failed", "error", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid alert schedule %q: %w", cfg.Alert.Schedule, err)
		}
	} else {
		w.log.Info("No alert webhook configured, alerting disabled")
	}

	w.healthServer = health.NewServer(w.healthMon, cfg.Server.Port, trigger, logger)
	return w, nil
}

// Endpoints returns the configured GraphQL endpoints.
func Endpoints(cfg *config.AppConfig) source.Endpoints {
	return source.Endpoints{
		FastURL:       cfg.Sources.Fast.URL,
		DownstreamURL: cfg.Sources.Downstream.URL,
	}
}

// Thresholds returns the configured classification thresholds.
func Thresholds(cfg *config.AppConfig) health.Thresholds {
	return health.Thresholds{
		EdgePercent:          cfg.Thresholds.EdgePercent,
		SystemHealthyPercent: cfg.Thresholds.SystemHealthyPercent,
		DegradedFloor:        cfg.Thresholds.DegradedFloor,
	}
}

// BuildCollector wires the authoritative source selected by sources.rpc.mode.
func BuildCollector(cfg *config.AppConfig, pool pond.Pool, logger *slog.Logger) *source.Collector {
	cc := source.CollectorConfig{
		Chains:         cfg.Chains,
		FastName:       cfg.Sources.Fast.Name,
		DownstreamName: cfg.Sources.Downstream.Name,
		Timeout:        max(cfg.Sources.Fast.Timeout, cfg.Sources.Downstream.Timeout),
		Pool:           pool,
	}
	switch cfg.Sources.RPC.Mode {
	case config.RPCModeNode:
		nodes := source.NewNodeClient(cfg.Chains)
		cc.Heads = source.NewNodeSource(
			throttle.NewHeadCache(nodes, cfg.Sources.RPC.CacheTTL),
			cfg.Sources.RPC.Timeout,
		)
		cc.Nodes = nodes
	case config.RPCModeMock:
		cc.Derived = source.NewMockSource(cfg.Sources.RPC.MockMaxOffset)
		logger.Warn("Authoritative heights are simulated", "mode", cfg.Sources.RPC.Mode)
	}
	return source.NewCollector(cc, logger)
}

func (w *Watcher) buildNotifier() (*alert.Notifier, error) {
	ac := w.cfg.Alert
	alerter, err := alert.New(ac.Kind, ac.WebhookURL, ac.Timeout)
	if err != nil {
		return nil, err
	}

	nc := alert.NotifierConfig{
		ThresholdPercent: w.cfg.Thresholds.EdgePercent,
		Names: reconcile.SourceNames{
			Authoritative: w.cfg.Sources.RPC.Name,
			Fast:          w.cfg.Sources.Fast.Name,
			Downstream:    w.cfg.Sources.Downstream.Name,
		},
	}
	if ac.Policy == config.AlertPolicyCooldown {
		nc.Policy = alert.Cooldown{
			PendingCycles:  ac.PendingCycles,
			Window:         ac.Cooldown,
			NotifyRecovery: ac.NotifyRecovery,
		}
		if ac.RedisURL != "" {
			client, err := redisclient.NewClient(redisclient.Config{URL: ac.RedisURL})
			if err != nil {
				w.log.Warn("Failed to connect to Redis, using in-memory alert state", "error", err)
			} else {
				w.redisClient = client
				nc.Store = alert.NewRedisStore(client, 2*ac.Cooldown)
			}
		}
	}
	return alert.NewNotifier(alerter, nc, w.log), nil
}

// Monitor returns the health monitor.
func (w *Watcher) Monitor() *health.Monitor {
	return w.healthMon
}

// RunAlerts runs one poll cycle and feeds it to the alert gate, bounded by
// alert.timeout.
func (w *Watcher) RunAlerts(ctx context.Context) error {
	if w.notifier == nil {
		return errors.New("alerting disabled")
	}
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Alert.Timeout)
	defer cancel()

	report, err := w.healthMon.Refresh(ctx)
	if err != nil {
		return err
	}
	res := w.notifier.Notify(ctx, report.CycleID, report.Evaluations())
	w.log.Info("Alert run complete",
		"cycle", report.CycleID,
		"sent", res.Sent,
		"failed", res.Failed,
		"suppressed", res.Suppressed,
	)
	return nil
}

// Start starts the watcher and all its components. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	// Start Health Server
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.healthServer.Start(); err != nil {
			w.log.Error("Health server failed", "error", err)
		}
	}()

	if w.grpcServer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.grpcServer.Start(); err != nil {
				w.log.Error("gRPC server failed", "error", err)
			}
		}()
	}

	// Start Poller
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runPoller(ctx)
	}()

	if w.cron != nil {
		w.cron.Start()
		w.log.Info("Alert cron started", "schedule", w.cfg.Alert.Schedule, "policy", w.cfg.Alert.Policy)
	}
	return nil
}

func (w *Watcher) runPoller(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Poll.Interval)
	defer ticker.Stop()

	for {
		pollCtx, cancel := context.WithTimeout(ctx, w.cfg.Poll.Interval+w.cfg.Sources.Fast.Timeout)
		_, _ = w.healthMon.Refresh(pollCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop stops the watcher. ctx bounds the graceful shutdown; the context
// passed to Start must be cancelled separately to end the poller.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Info("Stopping Watcher...")

	if w.cron != nil {
		select {
		case <-w.cron.Stop().Done():
		case <-ctx.Done():
		}
	}

	if w.grpcServer != nil {
		w.grpcServer.Stop(ctx)
	}

	// Stop Health Server
	err := w.healthServer.Stop(ctx)

	w.pool.StopAndWait()
	w.collector.Close()

	// Close Redis
	if w.redisClient != nil {
		if err := w.redisClient.Close(); err != nil {
			w.log.Warn("Failed to close Redis", "error", err)
		}
	}
	return err
}

// Wait blocks until every background goroutine has returned.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

// Shutdown stops the watcher and waits for the poller and servers to return,
// both bounded by ctx.
func (w *Watcher) Shutdown(ctx context.Context) error {
	err := w.Stop(ctx)

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("waiting for background tasks: %w", ctx.Err()))
	}
	return err
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
