package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notifyhub/internal/eventbus"
	"notifyhub/internal/notification"
	"notifyhub/internal/observability/pprof"
	"notifyhub/internal/quota"
	"notifyhub/internal/scheduler"
	logx "notifyhub/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	notif  *notification.Service
	quotas *quota.Store
	poller *quota.Poller
	sched  *scheduler.Service
	pprof  *pprof.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	schedSvc := scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")), bus)

	notifSvc := notification.New(mapNotificationsConfig(cfg),
		log.With(logx.String("comp", "notifications")), bus)

	quotaStore := quota.NewStore(log.With(logx.String("comp", "quota")), bus)

	pollerCfg, err := mapQuotaPollerConfig(cfg)
	if err != nil {
		return nil, err
	}
	pollerSvc := quota.NewPoller(pollerCfg, quotaStore, schedSvc,
		log.With(logx.String("comp", "quota.poller")))

	pprofCfg, err := mapPprofConfig(cfg)
	if err != nil {
		return nil, err
	}
	pprofSvc := pprof.New(pprofCfg, log.With(logx.String("comp", "pprof")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		notif:   notifSvc,
		quotas:  quotaStore,
		poller:  pollerSvc,
		sched:   schedSvc,
		pprof:   pprofSvc,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(func(c context.Context, cfg *Config) error {
			if cfg.Scheduler.Workers < 0 {
				return fmt.Errorf("scheduler.workers must be >= 0")
			}
			if cfg.Scheduler.HistorySize < 0 {
				return fmt.Errorf("scheduler.history_size must be >= 0")
			}
			if cfg.Scheduler.RetryMax < 0 {
				return fmt.Errorf("scheduler.retry_max must be >= 0")
			}
			if _, err := parseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout); err != nil {
				return err
			}
			// duration/timezone validation (reject bad hot-reload)
			if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
				if _, err := time.LoadLocation(tz); err != nil {
					return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
				}
			}
			if cfg.Notifications != nil {
				if cfg.Notifications.MaxVisible < 0 {
					return fmt.Errorf("notifications.max_visible must be >= 0")
				}
				if cfg.Notifications.HistorySize < 0 {
					return fmt.Errorf("notifications.history_size must be >= 0")
				}
			}
			// quota poller validation (parse durations + basic bounds)
			if _, err := mapQuotaPollerConfig(cfg); err != nil {
				return err
			}
			// pprof validation (safe even when disabled)
			if _, err := mapPprofConfig(cfg); err != nil {
				return err
			}
			return nil
		})
	}

	// The quota store always runs; ad-hoc producers may raise warnings even
	// when the poller is disabled.
	a.quotas.Start(a.sup.Context())

	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}
	if a.poller.Enabled() {
		a.poller.Start(a.sup.Context())
	}
	if a.pprof != nil {
		a.pprof.SetStatusFunc(func() any { return a.Status() })
		if a.pprof.Enabled() {
			a.pprof.Start(a.sup.Context())
		}
	}

	// Optional: log events for observability/debug (components can also subscribe themselves).
	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					// Keep this debug-level to avoid noise for frequent pollers.
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		// Track last applied config to generate a safe diff summary for logx.
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections, attrs := SummarizeConfigChange(lastApplied, newCfg)
				if len(sections) > 0 {
					fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
					a.log.Debug("config change summary", fields...)
				} else {
					a.log.Debug("config reload received, but no effective changes detected")
				}
				lastApplied = newCfg

				a.applyConfig(c, newCfg)

				// Keep the final log line concise and human-friendly (details are in debug logs).
				if len(sections) > 0 {
					fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
					a.log.Info("config reloaded", fields...)
				} else {
					a.log.Info("config reloaded (no changes)")
				}
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated config into the live services, starting and
// stopping them as enable flags flip.
func (a *App) applyConfig(c context.Context, newCfg *Config) {
	// apply logging updates
	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
	})

	// apply scheduler updates (live)
	prevSchedEnabled := a.sched.Enabled()
	if schedCfg, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Any("err", err))
	} else {
		a.sched.Apply(schedCfg)
		if prevSchedEnabled && !schedCfg.Enabled {
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		} else if !prevSchedEnabled && schedCfg.Enabled {
			a.log.Info("scheduler enabled via config")
			a.sched.Start(c)
		}
	}

	// apply notification store updates (live)
	prevNotifEnabled := a.notif.Enabled()
	ncfg := mapNotificationsConfig(newCfg)
	a.notif.Apply(ncfg)
	if prevNotifEnabled && !ncfg.Enabled {
		a.log.Info("notification store disabled via config")
		stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
		a.notif.Stop(stopCtx)
		cancel()
	} else if !prevNotifEnabled && ncfg.Enabled {
		a.log.Info("notification store enabled via config")
		a.notif.Start(c)
	}

	// apply quota poller updates (live)
	prevPollEnabled := a.poller.Enabled()
	if pcfg, err := mapQuotaPollerConfig(newCfg); err != nil {
		a.log.Warn("invalid quota poller config; keeping previous", logx.Any("err", err))
	} else {
		a.poller.Apply(pcfg)
		if prevPollEnabled && !pcfg.Enabled {
			a.log.Info("quota poller disabled via config")
			stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
			a.poller.Stop(stopCtx)
			cancel()
		} else if !prevPollEnabled && pcfg.Enabled {
			a.log.Info("quota poller enabled via config")
			a.poller.Start(c)
		}
	}

	// apply pprof updates (live)
	if a.pprof != nil {
		if ppc, err := mapPprofConfig(newCfg); err != nil {
			a.log.Warn("invalid pprof config; keeping previous", logx.Any("err", err))
		} else {
			a.pprof.Reconfigure(c, ppc)
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// Contract: fn MUST honor stepCtx and return promptly. If it doesn't, log a leak signal.
			elapsed := time.Since(start)
			a.log.Warn(
				"stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Duration("elapsed", elapsed),
			)
			// Leak logging: observe when/if the step eventually finishes.
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.String("err", err.Error()), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Stop producers before the stores they feed.
	step("quota.poller", 2*time.Second, func(c context.Context) error { a.poller.Stop(c); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("pprof", 1*time.Second, func(c context.Context) error {
		if a.pprof != nil {
			a.pprof.Stop(c)
		}
		return nil
	})
	step("notifications", 1*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("quota.store", 1*time.Second, func(c context.Context) error { a.quotas.Stop(c); return nil })

	// Finally, wait for supervised goroutines (config watch/reload, eventbus log, etc.)
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func mapSchedulerConfig(cfg *Config) (scheduler.Config, error) {
	if cfg == nil {
		return scheduler.Config{}, nil
	}
	workers := cfg.Scheduler.Workers
	if workers <= 0 {
		workers = 2
	}
	historySize := cfg.Scheduler.HistorySize
	if historySize <= 0 {
		historySize = 200
	}
	retryMax := cfg.Scheduler.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}
	defTimeout, err := parseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Workers:        workers,
		DefaultTimeout: defTimeout,
		HistorySize:    historySize,
		Timezone:       cfg.Scheduler.Timezone,
		RetryMax:       retryMax,
	}, nil
}

func mapNotificationsConfig(cfg *Config) notification.Config {
	// Omitted section means the store runs with defaults.
	if cfg == nil || cfg.Notifications == nil {
		return notification.Config{Enabled: true}
	}
	return notification.Config{
		Enabled:     cfg.Notifications.Enabled,
		MaxVisible:  cfg.Notifications.MaxVisible,
		HistorySize: cfg.Notifications.HistorySize,
	}
}

func mapQuotaPollerConfig(cfg *Config) (quota.PollerConfig, error) {
	if cfg == nil || cfg.Quota == nil {
		return quota.PollerConfig{}, nil
	}
	q := cfg.Quota
	interval, err := parseDurationOrDefault("quota.poller.interval", q.Poller.Interval, 5*time.Minute)
	if err != nil {
		return quota.PollerConfig{}, err
	}
	reqTimeout, err := parseDurationOrDefault("quota.poller.request_timeout", q.Poller.RequestTimeout, 10*time.Second)
	if err != nil {
		return quota.PollerConfig{}, err
	}
	enabled := q.Enabled && q.Poller.Enabled
	if enabled && strings.TrimSpace(q.Poller.Endpoint) == "" {
		return quota.PollerConfig{}, fmt.Errorf("quota.poller.endpoint required when poller is enabled")
	}
	// The poller runs on scheduler ticks; without a running scheduler its
	// immediate kick and recurring runs would never fire.
	if enabled && !cfg.Scheduler.Enabled {
		return quota.PollerConfig{}, fmt.Errorf("quota.poller.enabled requires scheduler.enabled")
	}
	return quota.PollerConfig{
		Enabled:        enabled,
		Endpoint:       q.Poller.Endpoint,
		Token:          q.Poller.Token,
		TokenFile:      q.Poller.TokenFile,
		Interval:       interval,
		RequestTimeout: reqTimeout,
		RatePerSec:     float64(q.Poller.RatePerSec),
	}, nil
}

func mapPprofConfig(cfg *Config) (pprof.Config, error) {
	if cfg == nil {
		return pprof.Config{}, nil
	}
	rt, err := parseDurationField("pprof.read_timeout", cfg.Pprof.ReadTimeout)
	if err != nil {
		return pprof.Config{}, err
	}
	wt, err := parseDurationField("pprof.write_timeout", cfg.Pprof.WriteTimeout)
	if err != nil {
		return pprof.Config{}, err
	}
	it, err := parseDurationField("pprof.idle_timeout", cfg.Pprof.IdleTimeout)
	if err != nil {
		return pprof.Config{}, err
	}
	return pprof.Config{
		Enabled:       cfg.Pprof.Enabled,
		Addr:          cfg.Pprof.Addr,
		Prefix:        cfg.Pprof.Prefix,
		Token:         cfg.Pprof.Token,
		AllowInsecure: cfg.Pprof.AllowInsecure,
		ReadTimeout:   rt,
		WriteTimeout:  wt,
		IdleTimeout:   it,
	}, nil
}
