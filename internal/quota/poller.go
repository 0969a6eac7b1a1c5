package quota

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"notifyhub/internal/notification"
	"notifyhub/internal/scheduler"
	logx "notifyhub/pkg/logx"
)

const pollTaskName = "quota:poll"

// ErrPollThrottled is returned by PollNow when manual polls arrive faster
// than the configured rate.
var ErrPollThrottled = errors.New("quota poll throttled")

// PollerConfig controls the quota poller.
type PollerConfig struct {
	Enabled  bool
	Endpoint string
	// Token is the bearer token; TokenFile, when set, is re-read every cycle
	// so rotated credentials are picked up without a restart.
	Token          string
	TokenFile      string
	Interval       time.Duration // default 5m
	RequestTimeout time.Duration // default 10s
	RatePerSec     float64       // manual PollNow budget, default 1/s
}

// Poller periodically evaluates quota usage and feeds the warning store.
// Failures never surface to consumers: a cycle that cannot fetch or decode
// simply skips, and the next tick retries.
type Poller struct {
	mu sync.Mutex

	log   logx.Logger
	store *Store
	sched *scheduler.Service

	cfg     PollerConfig
	limiter *rate.Limiter
	running bool
}

func NewPoller(cfg PollerConfig, store *Store, sched *scheduler.Service, log logx.Logger) *Poller {
	p := &Poller{log: log, store: store, sched: sched}
	p.applyLocked(cfg)
	return p
}

func (p *Poller) Enabled() bool {
	p.mu.Lock()
	en := p.cfg.Enabled
	p.mu.Unlock()
	return en
}

func (p *Poller) Apply(cfg PollerConfig) {
	p.mu.Lock()
	oldInterval := p.cfg.Interval
	p.applyLocked(cfg)
	reschedule := p.running && p.cfg.Interval != oldInterval
	p.mu.Unlock()

	if reschedule {
		p.schedule()
	}
}

func (p *Poller) applyLocked(cfg PollerConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	p.cfg = cfg
	p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
}

// Start registers the recurring poll and kicks one immediate run.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running || !p.cfg.Enabled {
		p.mu.Unlock()
		return
	}
	p.running = true
	interval := p.cfg.Interval
	p.mu.Unlock()

	p.schedule()
	if !p.sched.RunNow(pollTaskName) {
		p.log.Error("immediate poll not dispatched; scheduler is not running")
	}
	p.log.Info("poller started", logx.Duration("interval", interval))
}

func (p *Poller) schedule() {
	p.mu.Lock()
	interval := p.cfg.Interval
	timeout := p.cfg.RequestTimeout
	p.mu.Unlock()

	_, err := p.sched.AddIntervalOpt(pollTaskName, interval, timeout+5*time.Second,
		scheduler.TaskOptions{Overlap: scheduler.OverlapSkipIfRunning},
		func(ctx context.Context) error {
			p.poll(ctx)
			return nil
		})
	if err != nil {
		p.log.Error("poll schedule failed", logx.Any("err", err))
	}
}

// Stop unschedules the recurring poll. In-flight cycles finish under the
// scheduler's run context, which the owning scope cancels on teardown.
func (p *Poller) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.sched.Remove(pollTaskName)
	p.log.Info("poller stopped")
}

// PollNow runs one evaluation immediately, subject to the manual-poll rate
// budget. Used by the status surface; the scheduled cadence is unaffected.
func (p *Poller) PollNow(ctx context.Context) error {
	p.mu.Lock()
	running := p.running
	lim := p.limiter
	p.mu.Unlock()
	if !running {
		return errors.New("quota poller not running")
	}
	if !lim.Allow() {
		return ErrPollThrottled
	}
	p.poll(ctx)
	return nil
}

// poll runs one evaluation cycle. Every failure path returns silently: no
// warning is emitted, nothing escapes to the scheduler as an error, and the
// next tick retries.
func (p *Poller) poll(ctx context.Context) {
	p.mu.Lock()
	cfg := p.cfg
	p.mu.Unlock()

	token := p.resolveToken(cfg)
	if token == "" {
		// No ambient credential: skip without even sending the request.
		p.log.Debug("no token; skipping quota poll")
		return
	}

	status, err := NewClient(cfg.Endpoint, token, cfg.RequestTimeout).QuotaStatus(ctx)
	if err != nil {
		p.log.Debug("quota poll skipped", logx.Any("err", err))
		return
	}

	raised := 0
	for quotaType, u := range status {
		w, ok := evaluate(quotaType, u)
		if !ok {
			// Below threshold. Existing warnings for this type stay live by
			// design; only a dismiss or a fresher over-threshold evaluation
			// replaces them.
			continue
		}
		if _, err := p.store.AddWarning(w); err != nil {
			p.log.Warn("quota warning rejected", logx.String("quota_type", quotaType), logx.Any("err", err))
			continue
		}
		raised++
	}
	p.log.Debug("quota poll completed", logx.Int("types", len(status)), logx.Int("raised", raised))
}

func (p *Poller) resolveToken(cfg PollerConfig) string {
	if cfg.TokenFile != "" {
		b, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			p.log.Debug("token file unreadable", logx.String("path", cfg.TokenFile), logx.Any("err", err))
			return ""
		}
		return strings.TrimSpace(string(b))
	}
	return strings.TrimSpace(cfg.Token)
}

// evaluate applies the emission thresholds to one quota type. It returns
// ok=false below 85%.
func evaluate(quotaType string, u TypeUsage) (Warning, bool) {
	pct := u.PercentageUsed
	unit := unitFor(quotaType)
	usage := &Usage{Current: u.CurrentUsage, Limit: u.Limit, Percentage: pct, Unit: unit}
	msg := fmt.Sprintf("You have used %.0f of %.0f %s (%.0f%%).", u.CurrentUsage, u.Limit, unit, pct)

	switch {
	case pct >= 95:
		return Warning{
			QuotaType: quotaType,
			Severity:  SeverityCritical,
			Title:     fmt.Sprintf("%s quota almost exhausted", quotaType),
			Message:   msg,
			Usage:     usage,
			Actions:   []notification.Action{{Label: "Upgrade Plan", Style: "primary"}},
		}, true
	case pct >= 85:
		return Warning{
			QuotaType: quotaType,
			Severity:  SeverityWarning,
			Title:     fmt.Sprintf("%s quota running low", quotaType),
			Message:   msg,
			Usage:     usage,
			Actions:   []notification.Action{{Label: "View Plans", Style: "secondary"}},
		}, true
	default:
		return Warning{}, false
	}
}

func unitFor(quotaType string) string {
	switch quotaType {
	case "upload":
		return "MB"
	case "token":
		return "tokens"
	default:
		return "searches"
	}
}
