package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/config"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/geo"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/history"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/metrics"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/monitor"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/pipeline"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/reputation"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/suppression"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

const (
	leaderKey     = "threatsync:history-writer"
	metricsJob    = "threatsync"
	metricsPushTO = 10 * time.Second
)

type threatSyncOptions struct {
	configPath string
	source     string
	repeat     bool
	interval   time.Duration
}

func parseThreatSyncFlags(args []string, output io.Writer) (threatSyncOptions, error) {
	var opts threatSyncOptions

	fs := flag.NewFlagSet("threatsync", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "Optional YAML settings file")
	fs.StringVar(&opts.source, "source", pipeline.SourceDNS, "Observation source: dns or flows")
	fs.BoolVar(&opts.repeat, "repeat", false, "Keep running on the configured schedule instead of once")
	fs.DurationVar(&opts.interval, "interval", 0, "Pause between scheduled runs (overrides the configured schedule, implies -repeat)")

	if err := fs.Parse(args); err != nil {
		return threatSyncOptions{}, err
	}
	if fs.NArg() > 0 {
		return threatSyncOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.source != pipeline.SourceDNS && opts.source != pipeline.SourceFlows {
		return threatSyncOptions{}, fmt.Errorf("-source must be %s or %s, got %q", pipeline.SourceDNS, pipeline.SourceFlows, opts.source)
	}
	if opts.interval < 0 {
		return threatSyncOptions{}, fmt.Errorf("-interval must not be negative, got %s", opts.interval)
	}
	if opts.interval > 0 {
		opts.repeat = true
	}
	return opts, nil
}

// RunThreatSync is the threatsync command: one batch by default, or a
// scheduled loop with -repeat / -interval.
func RunThreatSync() error {
	loadDotEnv()

	opts, err := parseThreatSyncFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateThreatSync(opts.source); err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel)

	return runUntilSignal(context.Background(), func(ctx context.Context) error {
		histories, err := newHistoryProvider(cfg)
		if err != nil {
			return err
		}
		defer histories.Close()

		locator, err := geo.Open(cfg.GeoLite.CountryDB, cfg.GeoLite.ASNDB)
		if err != nil {
			log.Warn("GeoLite databases unavailable, continuing without location data", "error", err)
			locator = nil
		}
		defer locator.Close()

		collector := metrics.NewCollector(metrics.Namespace)

		runOnce := func(ctx context.Context) error {
			store, err := histories.Store()
			if err != nil {
				return err
			}
			runner, err := buildRunner(cfg, store, locator, collector)
			if err != nil {
				return err
			}
			_, err = runner.Run(ctx, opts.source)
			pushMetrics(cfg, runner.Metrics(), opts.source)
			return err
		}

		if !opts.repeat {
			return runOnce(ctx)
		}

		interval := opts.interval
		if interval == 0 {
			interval = cfg.Schedule.Interval()
		}
		return runScheduled(ctx, cfg, interval, runOnce)
	})
}

// historyProvider hands every run its domain history. The postgres store is
// opened once and shared. The file store is read again before each run, since
// another instance may have rewritten the file while this one waited for the
// leader lock.
type historyProvider struct {
	cfg    config.Config
	shared history.Store
	close  func()
}

func newHistoryProvider(cfg config.Config) (*historyProvider, error) {
	p := &historyProvider{cfg: cfg, close: func() {}}
	if cfg.History.Backend != config.BackendPostgres {
		return p, nil
	}
	store, closeStore, err := openHistory(cfg)
	if err != nil {
		return nil, err
	}
	p.shared, p.close = store, closeStore
	return p, nil
}

func (p *historyProvider) Store() (history.Store, error) {
	if p.shared != nil {
		return p.shared, nil
	}
	store, _, err := openHistory(p.cfg)
	return store, err
}

func (p *historyProvider) Close() { p.close() }

func openHistory(cfg config.Config) (history.Store, func(), error) {
	switch cfg.History.Backend {
	case config.BackendPostgres:
		store, err := history.OpenSQLStore(
			history.WithPostgres(cfg.History.Postgres),
			history.WithAutoMigrate(cfg.History.AutoMigrate),
		)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using postgres domain history", "host", cfg.History.Postgres.Host, "database", cfg.History.Postgres.Name)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("closing history database", "error", err)
			}
		}, nil
	default:
		store, err := history.OpenFileStore(cfg.History.File)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using file domain history", "path", cfg.History.File, "domains", store.Len())
		return store, func() {}, nil
	}
}

func buildRunner(cfg config.Config, store history.Store, locator *geo.Locator, collector *metrics.Collector) (*pipeline.Runner, error) {
	monitorClient, err := monitor.NewClient(monitor.Options{
		BaseURL:   cfg.Monitor.BaseURL,
		Token:     cfg.Monitor.Token,
		EventPath: cfg.Monitor.EventPath,
		HTTP:      support.NewHTTPClient(cfg.HTTPTimeout(), cfg.Monitor.InsecureTLS),
	})
	if err != nil {
		return nil, err
	}

	reputationClient, err := reputation.NewClient(
		cfg.Investigate.BaseURL,
		cfg.Investigate.Token,
		support.NewHTTPClient(cfg.HTTPTimeout(), false),
	)
	if err != nil {
		return nil, err
	}

	policy, err := suppression.New(store, cfg.TimeBetweenQueries)
	if err != nil {
		return nil, err
	}
	log.Debug("Suppression policy ready", "cooldown", policy.Cooldown())

	return pipeline.New(pipeline.Config{
		Monitor:    monitorClient,
		Reputation: reputationClient,
		Policy:     policy,
		Period:     cfg.Period,
		Metrics:    collector,
		Geo:        locator,
	})
}

func pushMetrics(cfg config.Config, collector *metrics.Collector, source string) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), metricsPushTO)
	defer cancel()

	instance, _ := os.Hostname()
	if err := collector.Push(ctx, cfg.PushgatewayURL, metricsJob+"_"+source, instance); err != nil {
		log.Warn("metrics push failed", "error", err)
	}
}

// runScheduled repeats run every interval. With REDIS_URL set, only the
// instance holding the leader lock runs, so scheduled instances never write
// the history concurrently.
func runScheduled(ctx context.Context, cfg config.Config, interval time.Duration, run func(context.Context) error) error {
	if cfg.RedisURL == "" {
		return scheduleLoop(ctx, interval, run)
	}

	client, err := support.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer client.Close()

	lock, err := support.NewLeaderLock(client, leaderKey, support.DefaultLeadershipTTL)
	if err != nil {
		return err
	}
	return runAsLeader(ctx, lock, interval, run)
}

type leaderLock interface {
	Run(ctx context.Context, fn func(context.Context)) error
}

// runAsLeader runs the schedule during every term in which lock is held. A
// fatal run error ends the competition for the lock and is returned.
func runAsLeader(ctx context.Context, lock leaderLock, interval time.Duration, run func(context.Context) error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	err := lock.Run(ctx, func(leaderCtx context.Context) {
		log.Info("Acquired history writer lock, starting schedule", "interval", interval)
		if err := scheduleLoop(leaderCtx, interval, run); err != nil && leaderCtx.Err() == nil {
			cancel(err)
		}
	})
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// scheduleLoop runs immediately, then after every interval. A failed run is
// logged and retried on the next tick unless the history or the configuration
// is broken, which ends the loop.
func scheduleLoop(ctx context.Context, interval time.Duration, run func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if fatal(err) {
				return err
			}
			log.Error("Run failed, retrying on next schedule", "error", err, "next_in", interval)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func fatal(err error) bool {
	return errors.Is(err, history.ErrCorrupt) ||
		errors.Is(err, history.ErrNotFound) ||
		errors.Is(err, config.ErrInvalid)
}
