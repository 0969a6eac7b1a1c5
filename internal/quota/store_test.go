package quota

import (
	"context"
	"errors"
	"testing"

	"notifyhub/internal/eventbus"
	logx "notifyhub/pkg/logx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(logx.Nop(), eventbus.New())
	s.Start(context.Background())
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func TestAddWarningOutsideLifecycleFailsLoudly(t *testing.T) {
	t.Parallel()
	s := NewStore(logx.Nop(), nil)
	if _, err := s.AddWarning(Warning{QuotaType: "upload"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("AddWarning before Start: err = %v, want ErrStopped", err)
	}
	s.Start(context.Background())
	if _, err := s.AddWarning(Warning{QuotaType: "upload"}); err != nil {
		t.Fatalf("AddWarning while running: %v", err)
	}
	s.Stop(context.Background())
	if _, err := s.AddWarning(Warning{QuotaType: "upload"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("AddWarning after Stop: err = %v, want ErrStopped", err)
	}
}

func TestDedupByQuotaType(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		sev := SeverityWarning
		if i == 4 {
			sev = SeverityCritical
		}
		if _, err := s.AddWarning(Warning{QuotaType: "upload", Severity: sev, Message: "v"}); err != nil {
			t.Fatal(err)
		}
	}

	snap := s.Snapshot()
	count := 0
	var last Warning
	for _, w := range snap {
		if w.QuotaType == "upload" {
			count++
			last = w
		}
	}
	if count != 1 {
		t.Fatalf("entries for quota type = %d, want 1", count)
	}
	// The surviving entry carries the last call's fields.
	if last.Severity != SeverityCritical {
		t.Fatalf("Severity = %s, want critical", last.Severity)
	}
}

func TestDedupKeepsOtherTypes(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	s.AddWarning(Warning{QuotaType: "upload", Severity: SeverityWarning})
	s.AddWarning(Warning{QuotaType: "token", Severity: SeverityWarning})
	s.AddWarning(Warning{QuotaType: "upload", Severity: SeverityCritical})

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Len = %d, want 2", len(snap))
	}
	// Insertion order: token kept its slot, the replaced upload moved to the end.
	if snap[0].QuotaType != "token" || snap[1].QuotaType != "upload" {
		t.Fatalf("unexpected order: %s, %s", snap[0].QuotaType, snap[1].QuotaType)
	}
}

func TestRemoveWarningIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	id, _ := s.AddWarning(Warning{QuotaType: "search", Severity: SeverityWarning})

	if ok, err := s.RemoveWarning(id); err != nil || !ok {
		t.Fatalf("first RemoveWarning = (%v, %v), want (true, nil)", ok, err)
	}
	if ok, err := s.RemoveWarning(id); err != nil || ok {
		t.Fatalf("second RemoveWarning = (%v, %v), want (false, nil)", ok, err)
	}
	if ok, err := s.RemoveWarning("qw:absent"); err != nil || ok {
		t.Fatalf("RemoveWarning of unknown id = (%v, %v), want (false, nil)", ok, err)
	}
	if len(s.Snapshot()) != 0 {
		t.Fatal("store not empty")
	}
}

func TestSeverityCounts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	s.AddWarning(Warning{QuotaType: "a", Severity: SeverityCritical})
	s.AddWarning(Warning{QuotaType: "b", Severity: SeverityWarning})
	s.AddWarning(Warning{QuotaType: "c", Severity: SeverityCritical})

	if got := s.CriticalCount(); got != 2 {
		t.Fatalf("CriticalCount = %d, want 2", got)
	}
	if got := s.WarningCount(); got != 1 {
		t.Fatalf("WarningCount = %d, want 1", got)
	}
}

func TestClearWarnings(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	s.AddWarning(Warning{QuotaType: "a", Severity: SeverityInfo})
	s.AddWarning(Warning{QuotaType: "b", Severity: SeverityInfo})
	if err := s.ClearWarnings(); err != nil {
		t.Fatalf("ClearWarnings while running: %v", err)
	}
	if len(s.Snapshot()) != 0 {
		t.Fatal("store not empty after ClearWarnings")
	}
}

func TestMutatorsOutsideLifecycleFailLoudly(t *testing.T) {
	t.Parallel()
	s := NewStore(logx.Nop(), nil)

	if _, err := s.RemoveWarning("qw:x"); !errors.Is(err, ErrStopped) {
		t.Fatalf("RemoveWarning before Start: err = %v, want ErrStopped", err)
	}
	if err := s.ClearWarnings(); !errors.Is(err, ErrStopped) {
		t.Fatalf("ClearWarnings before Start: err = %v, want ErrStopped", err)
	}

	s.Start(context.Background())
	id, _ := s.AddWarning(Warning{QuotaType: "upload", Severity: SeverityCritical})
	s.Stop(context.Background())

	if _, err := s.RemoveWarning(id); !errors.Is(err, ErrStopped) {
		t.Fatalf("RemoveWarning after Stop: err = %v, want ErrStopped", err)
	}
	if err := s.ClearWarnings(); !errors.Is(err, ErrStopped) {
		t.Fatalf("ClearWarnings after Stop: err = %v, want ErrStopped", err)
	}
}
