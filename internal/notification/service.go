package notification

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

var (
	// ErrStopped is returned when a producer calls into the store outside an
	// active lifecycle (before Start or after Stop). This is a programming
	// error on the producer side and must surface loudly, not no-op.
	ErrStopped = errors.New("notification store stopped")
)

// Config controls the notification store.
type Config struct {
	Enabled bool
	// MaxVisible caps the live list; when exceeded the oldest non-persistent
	// entries are evicted. The cap never evicts the entry being added and may
	// overflow when every older entry is persistent. Zero means unbounded.
	MaxVisible  int
	HistorySize int
}

// Service is the process-wide notification store. It is safe for concurrent
// use; all mutation goes through its methods.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	bus eventbus.Bus
	cfg Config

	accepting bool
	items     []Notification
	// timers tracks the auto-removal timer per live non-persistent entry so
	// Remove can cancel its own timer. Clear deliberately does not touch
	// these (removal is idempotent by id).
	timers map[string]*time.Timer

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	return &Service{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		timers: map[string]*time.Timer{},
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	if !cfg.Enabled {
		s.accepting = false
	}
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if !s.cfg.Enabled || s.accepting {
		s.mu.Unlock()
		return
	}
	s.accepting = true
	s.mu.Unlock()
	s.log.Info("service started")
}

// Stop stops accepting producer calls and cancels all pending removal timers.
// Live entries are dropped; the store is empty after Stop.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	timers := s.timers
	s.timers = map[string]*time.Timer{}
	s.items = nil
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	s.log.Info("service stopped", logx.Int("timers_cancelled", len(timers)))
}

// Add assigns an id and creation time, fills kind defaults, appends the entry
// and schedules its auto-removal when it is not persistent. The explicit
// Timeout wins over the kind default.
func (s *Service) Add(n Notification) (string, error) {
	now := time.Now()

	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return "", ErrStopped
	}

	n.ID = newID(now)
	n.CreatedAt = now
	if n.Title == "" {
		n.Title = defaultTitle(n.Kind)
	}
	if !n.Persistent && n.Timeout <= 0 {
		n.Timeout = defaultTimeout(n.Kind)
	}
	// Evict before appending so the entry being added is never a candidate.
	// When every older entry is persistent the cap is allowed to overflow.
	var evicted []Notification
	if s.cfg.MaxVisible > 0 && len(s.items)+1 > s.cfg.MaxVisible {
		evicted = s.evictLocked(len(s.items) + 1 - s.cfg.MaxVisible)
	}
	s.items = append(s.items, n)

	if !n.Persistent {
		id := n.ID
		s.timers[id] = time.AfterFunc(n.Timeout, func() { s.expire(id) })
	}
	s.mu.Unlock()

	s.record(HistoryItem{ID: n.ID, Kind: n.Kind, Title: n.Title, At: now, Event: "added"})
	s.publish("notification.added", Event{ID: n.ID, Kind: n.Kind, Title: n.Title})
	for _, e := range evicted {
		s.publish("notification.removed", Event{ID: e.ID, Kind: e.Kind, Title: e.Title})
	}
	s.log.Debug("notification added",
		logx.String("id", n.ID), logx.String("kind", string(n.Kind)),
		logx.Bool("persistent", n.Persistent), logx.Duration("timeout", n.Timeout))
	return n.ID, nil
}

// evictLocked removes up to n of the oldest non-persistent entries. Their
// timers are cancelled. Call with s.mu held.
func (s *Service) evictLocked(n int) []Notification {
	var out []Notification
	for i := 0; i < len(s.items) && len(out) < n; {
		if s.items[i].Persistent {
			i++
			continue
		}
		e := s.items[i]
		s.items = append(s.items[:i], s.items[i+1:]...)
		if t, ok := s.timers[e.ID]; ok {
			t.Stop()
			delete(s.timers, e.ID)
		}
		out = append(out, e)
	}
	return out
}

// Remove deletes the entry with the given id and cancels its pending timer.
// Removing an absent id while running is an idempotent no-op (a timer firing
// after an explicit dismiss, or a dismiss after clear, must not fail). Calling
// outside the active lifecycle is producer misuse and returns ErrStopped.
func (s *Service) Remove(id string) (bool, error) {
	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return false, ErrStopped
	}
	s.mu.Unlock()
	return s.remove(id, "removed", "notification.removed"), nil
}

func (s *Service) expire(id string) {
	s.remove(id, "expired", "notification.expired")
}

func (s *Service) remove(id, histEvent, busType string) bool {
	s.mu.Lock()
	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	n := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.record(HistoryItem{ID: n.ID, Kind: n.Kind, Title: n.Title, At: time.Now(), Event: histEvent})
	s.publish(busType, Event{ID: n.ID, Kind: n.Kind, Title: n.Title})
	return true
}

// Clear empties the live list. Pending timers keep running and fire against
// absent ids, which removal treats as a no-op. Calling outside the active
// lifecycle returns ErrStopped.
func (s *Service) Clear() error {
	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return ErrStopped
	}
	n := len(s.items)
	s.items = nil
	s.mu.Unlock()

	if n > 0 {
		s.publish("notification.cleared", Event{})
		s.log.Debug("notifications cleared", logx.Int("count", n))
	}
	return nil
}

// InvokeAction runs the idx-th action of the given notification. The entry is
// dismissed afterwards unless the action sets KeepOpen.
func (s *Service) InvokeAction(id string, idx int) error {
	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return ErrStopped
	}
	var fn func()
	keep := false
	found := false
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if idx < 0 || idx >= len(s.items[i].Actions) {
			s.mu.Unlock()
			return fmt.Errorf("action index %d out of range", idx)
		}
		a := s.items[i].Actions[idx]
		fn = a.OnInvoke
		keep = a.KeepOpen
		found = true
		break
	}
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("notification %q not found", id)
	}
	if fn != nil {
		fn()
	}
	if !keep {
		s.remove(id, "removed", "notification.removed")
	}
	return nil
}

// Snapshot returns the live entries in insertion order.
func (s *Service) Snapshot() []Notification {
	s.mu.Lock()
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	s.mu.Unlock()
	return out
}

func (s *Service) Len() int {
	s.mu.Lock()
	n := len(s.items)
	s.mu.Unlock()
	return n
}

func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	s.hmu.Unlock()
	return out
}

func (s *Service) record(it HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()
	if size <= 0 {
		size = 100
	}

	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}

func (s *Service) publish(typ string, ev Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
}

var idMu sync.Mutex

// newID builds "ntf:<unixnano>-<rand>"; the random suffix breaks ties when
// two adds land on the same nanosecond tick.
func newID(now time.Time) string {
	idMu.Lock()
	r := rand.Intn(1000)
	idMu.Unlock()
	return fmt.Sprintf("ntf:%d-%03d", now.UnixNano(), r)
}
