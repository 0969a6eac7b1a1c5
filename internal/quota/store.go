package quota

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"notifyhub/internal/eventbus"
	logx "notifyhub/pkg/logx"
)

// ErrStopped is returned when a producer mutates the store outside an active
// lifecycle. Producer misuse must fail loudly, not silently no-op.
var ErrStopped = errors.New("quota store stopped")

// Store is the process-wide quota-warning store. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	log logx.Logger
	bus eventbus.Bus

	accepting bool
	warnings  []Warning
}

func NewStore(log logx.Logger, bus eventbus.Bus) *Store {
	return &Store{log: log, bus: bus}
}

func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	s.accepting = true
	s.mu.Unlock()
}

func (s *Store) Stop(ctx context.Context) {
	s.mu.Lock()
	s.accepting = false
	s.warnings = nil
	s.mu.Unlock()
}

// AddWarning assigns id and creation time, removes any existing entry with
// the same QuotaType, then appends. The replace keeps the invariant of at
// most one live warning per quota type; the append keeps insertion order for
// display (a replaced type moves to the end as the freshest entry).
func (s *Store) AddWarning(w Warning) (string, error) {
	now := time.Now()

	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return "", ErrStopped
	}

	w.ID = newWarningID(now)
	w.CreatedAt = now

	replaced := false
	for i := range s.warnings {
		if s.warnings[i].QuotaType == w.QuotaType {
			s.warnings = append(s.warnings[:i], s.warnings[i+1:]...)
			replaced = true
			break
		}
	}
	s.warnings = append(s.warnings, w)
	s.mu.Unlock()

	typ := "quota.warning.raised"
	if replaced {
		typ = "quota.warning.replaced"
	}
	s.publish(typ, Event{ID: w.ID, QuotaType: w.QuotaType, Severity: w.Severity})
	s.log.Debug("quota warning stored",
		logx.String("id", w.ID), logx.String("quota_type", w.QuotaType),
		logx.String("severity", string(w.Severity)), logx.Bool("replaced", replaced))
	return w.ID, nil
}

// RemoveWarning removes by id. Absent ids while running are an idempotent
// no-op; calling outside the active lifecycle returns ErrStopped.
func (s *Store) RemoveWarning(id string) (bool, error) {
	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return false, ErrStopped
	}
	idx := -1
	for i := range s.warnings {
		if s.warnings[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	w := s.warnings[idx]
	s.warnings = append(s.warnings[:idx], s.warnings[idx+1:]...)
	s.mu.Unlock()

	s.publish("quota.warning.removed", Event{ID: w.ID, QuotaType: w.QuotaType, Severity: w.Severity})
	return true, nil
}

// ClearWarnings drops every live warning. Calling outside the active
// lifecycle returns ErrStopped.
func (s *Store) ClearWarnings() error {
	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return ErrStopped
	}
	n := len(s.warnings)
	s.warnings = nil
	s.mu.Unlock()

	if n > 0 {
		s.publish("quota.warning.cleared", Event{})
		s.log.Debug("quota warnings cleared", logx.Int("count", n))
	}
	return nil
}

// Warning returns the live entry for a quota type, if any.
func (s *Store) Warning(quotaType string) (Warning, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.warnings {
		if w.QuotaType == quotaType {
			return w, true
		}
	}
	return Warning{}, false
}

// Snapshot returns the live warnings in insertion order.
func (s *Store) Snapshot() []Warning {
	s.mu.Lock()
	out := make([]Warning, len(s.warnings))
	copy(out, s.warnings)
	s.mu.Unlock()
	return out
}

// CriticalCount is derived on read, never stored.
func (s *Store) CriticalCount() int { return s.countSeverity(SeverityCritical) }

func (s *Store) WarningCount() int { return s.countSeverity(SeverityWarning) }

func (s *Store) countSeverity(sev Severity) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.warnings {
		if w.Severity == sev {
			n++
		}
	}
	return n
}

func (s *Store) publish(typ string, ev Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
}

var idMu sync.Mutex

func newWarningID(now time.Time) string {
	idMu.Lock()
	r := rand.Intn(1000)
	idMu.Unlock()
	return fmt.Sprintf("qw:%d-%03d", now.UnixNano(), r)
}
