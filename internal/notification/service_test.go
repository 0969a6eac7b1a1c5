package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"notifyhub/internal/eventbus"
	logx "notifyhub/pkg/logx"
)

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	cfg.Enabled = true
	s := New(cfg, logx.Nop(), eventbus.New())
	s.Start(context.Background())
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func TestAddOutsideLifecycleFailsLoudly(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)
	if _, err := s.Add(Notification{Kind: KindInfo}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Add before Start: err = %v, want ErrStopped", err)
	}

	s.Start(context.Background())
	if _, err := s.Add(Notification{Kind: KindInfo}); err != nil {
		t.Fatalf("Add while running: %v", err)
	}
	s.Stop(context.Background())
	if _, err := s.Add(Notification{Kind: KindInfo}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Add after Stop: err = %v, want ErrStopped", err)
	}
}

func TestMutatorsOutsideLifecycleFailLoudly(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)

	if _, err := s.Remove("ntf:x"); !errors.Is(err, ErrStopped) {
		t.Fatalf("Remove before Start: err = %v, want ErrStopped", err)
	}
	if err := s.Clear(); !errors.Is(err, ErrStopped) {
		t.Fatalf("Clear before Start: err = %v, want ErrStopped", err)
	}
	if err := s.InvokeAction("ntf:x", 0); !errors.Is(err, ErrStopped) {
		t.Fatalf("InvokeAction before Start: err = %v, want ErrStopped", err)
	}

	s.Start(context.Background())
	id, _ := s.Add(Notification{Kind: KindInfo, Persistent: true})
	s.Stop(context.Background())

	if _, err := s.Remove(id); !errors.Is(err, ErrStopped) {
		t.Fatalf("Remove after Stop: err = %v, want ErrStopped", err)
	}
	if err := s.Clear(); !errors.Is(err, ErrStopped) {
		t.Fatalf("Clear after Stop: err = %v, want ErrStopped", err)
	}
}

func TestKindDefaults(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{})

	tests := []struct {
		kind    Kind
		title   string
		timeout time.Duration
	}{
		{KindError, "Error", 8 * time.Second},
		{KindWarning, "Warning", 6 * time.Second},
		{KindSuccess, "Success", 4 * time.Second},
		{KindInfo, "Info", 5 * time.Second},
		{Kind("bogus"), "Info", 5 * time.Second},
	}
	for _, tt := range tests {
		id, err := s.Add(Notification{Kind: tt.kind})
		if err != nil {
			t.Fatalf("Add(%s): %v", tt.kind, err)
		}
		var got Notification
		for _, n := range s.Snapshot() {
			if n.ID == id {
				got = n
			}
		}
		if got.ID == "" {
			t.Fatalf("Add(%s): entry not in snapshot", tt.kind)
		}
		if got.Title != tt.title {
			t.Errorf("kind %s: Title = %q, want %q", tt.kind, got.Title, tt.title)
		}
		if got.Timeout != tt.timeout {
			t.Errorf("kind %s: Timeout = %v, want %v", tt.kind, got.Timeout, tt.timeout)
		}
		if got.CreatedAt.IsZero() {
			t.Errorf("kind %s: CreatedAt not set", tt.kind)
		}
	}
}

func TestExplicitTimeoutWinsOverDefault(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{})
	id, err := s.Add(Notification{Kind: KindError, Timeout: 30 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !contains(s.Snapshot(), id) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("entry not auto-removed after explicit timeout")
}

func TestPersistentNeverAutoRemoved(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{})
	id, err := s.Add(Notification{Kind: KindInfo, Persistent: true, Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	if !contains(s.Snapshot(), id) {
		t.Fatal("persistent entry was auto-removed")
	}
}

func TestRemoveIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{})
	id, _ := s.Add(Notification{Kind: KindInfo, Persistent: true})

	if ok, err := s.Remove(id); err != nil || !ok {
		t.Fatalf("first Remove = (%v, %v), want (true, nil)", ok, err)
	}
	if ok, err := s.Remove(id); err != nil || ok {
		t.Fatalf("second Remove = (%v, %v), want (false, nil)", ok, err)
	}
	if ok, err := s.Remove("ntf:absent"); err != nil || ok {
		t.Fatalf("Remove of unknown id = (%v, %v), want (false, nil)", ok, err)
	}
	if got := s.Len(); got != 0 {
		t.Fatalf("Len = %d, want 0", got)
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{})
	a, _ := s.Add(Notification{Kind: KindInfo, Persistent: true, Message: "a"})
	b, _ := s.Add(Notification{Kind: KindInfo, Persistent: true, Message: "b"})

	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].ID != a || snap[1].ID != b {
		t.Fatalf("unexpected order: %+v", snap)
	}
}

func TestClearLeavesTimersRunning(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{})
	s.Add(Notification{Kind: KindInfo, Timeout: 20 * time.Millisecond})
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear while running: %v", err)
	}
	if got := s.Len(); got != 0 {
		t.Fatalf("Len after Clear = %d, want 0", got)
	}

	// The pending timer fires against an absent id; store added to afterwards
	// must be untouched.
	id, _ := s.Add(Notification{Kind: KindInfo, Persistent: true})
	time.Sleep(80 * time.Millisecond)
	if !contains(s.Snapshot(), id) {
		t.Fatal("late timer fire removed an unrelated entry")
	}
}

func TestMaxVisibleEvictsOldestNonPersistent(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{MaxVisible: 2})
	keep, _ := s.Add(Notification{Kind: KindInfo, Persistent: true, Message: "pinned"})
	old, _ := s.Add(Notification{Kind: KindInfo, Message: "old"})
	fresh, _ := s.Add(Notification{Kind: KindInfo, Message: "fresh"})

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Len = %d, want 2", len(snap))
	}
	if contains(snap, old) {
		t.Fatal("oldest non-persistent entry not evicted")
	}
	if !contains(snap, keep) || !contains(snap, fresh) {
		t.Fatalf("unexpected survivors: %+v", snap)
	}
}

func TestMaxVisibleNeverEvictsNewest(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{MaxVisible: 2})
	a, _ := s.Add(Notification{Kind: KindInfo, Persistent: true, Message: "pinned-a"})
	b, _ := s.Add(Notification{Kind: KindInfo, Persistent: true, Message: "pinned-b"})
	fresh, _ := s.Add(Notification{Kind: KindInfo, Message: "fresh"})

	// Every older entry is persistent, so the cap overflows rather than
	// evicting the entry just added.
	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Len = %d, want 3", len(snap))
	}
	if !contains(snap, a) || !contains(snap, b) || !contains(snap, fresh) {
		t.Fatalf("unexpected survivors: %+v", snap)
	}
}

func TestInvokeActionDismissesByDefault(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{})

	invoked := false
	id, _ := s.Add(Notification{
		Kind:       KindQuota,
		Persistent: true,
		Actions:    []Action{{Label: "Upgrade Plan", OnInvoke: func() { invoked = true }}},
	})
	if err := s.InvokeAction(id, 0); err != nil {
		t.Fatal(err)
	}
	if !invoked {
		t.Fatal("action callback not invoked")
	}
	if contains(s.Snapshot(), id) {
		t.Fatal("entry not dismissed after invoke")
	}

	id2, _ := s.Add(Notification{
		Kind:       KindQuota,
		Persistent: true,
		Actions:    []Action{{Label: "View Plans", KeepOpen: true}},
	})
	if err := s.InvokeAction(id2, 0); err != nil {
		t.Fatal(err)
	}
	if !contains(s.Snapshot(), id2) {
		t.Fatal("KeepOpen action dismissed the entry")
	}

	if err := s.InvokeAction(id2, 5); err == nil {
		t.Fatal("expected error for out-of-range action index")
	}
	if err := s.InvokeAction("ntf:absent", 0); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func contains(items []Notification, id string) bool {
	for _, n := range items {
		if n.ID == id {
			return true
		}
	}
	return false
}
