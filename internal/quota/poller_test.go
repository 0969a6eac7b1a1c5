package quota

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"notifyhub/internal/eventbus"
	logx "notifyhub/pkg/logx"
)

func newTestPoller(t *testing.T, cfg PollerConfig) (*Poller, *Store) {
	t.Helper()
	store := NewStore(logx.Nop(), eventbus.New())
	store.Start(context.Background())
	t.Cleanup(func() { store.Stop(context.Background()) })
	cfg.Enabled = true
	p := NewPoller(cfg, store, nil, logx.Nop())
	return p, store
}

func quotaServer(t *testing.T, requests *int, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			*requests++
		}
		if r.URL.Path != "/api/v1/subscription/quota-status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPollCriticalThreshold(t *testing.T) {
	t.Parallel()
	srv := quotaServer(t, nil, http.StatusOK,
		`{"upload":{"current_usage":96,"limit":100,"percentage_used":96}}`)
	p, store := newTestPoller(t, PollerConfig{Endpoint: srv.URL, Token: "tok"})

	p.poll(context.Background())

	snap := store.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("warnings = %d, want 1", len(snap))
	}
	w := snap[0]
	if w.Severity != SeverityCritical {
		t.Fatalf("Severity = %s, want critical", w.Severity)
	}
	if w.Usage == nil || w.Usage.Unit != "MB" {
		t.Fatalf("Usage = %+v, want unit MB", w.Usage)
	}
	if len(w.Actions) != 1 || w.Actions[0].Label != "Upgrade Plan" {
		t.Fatalf("Actions = %+v, want single Upgrade Plan", w.Actions)
	}
}

func TestPollWarningThreshold(t *testing.T) {
	t.Parallel()
	srv := quotaServer(t, nil, http.StatusOK,
		`{"token":{"current_usage":90000,"limit":100000,"percentage_used":90}}`)
	p, store := newTestPoller(t, PollerConfig{Endpoint: srv.URL, Token: "tok"})

	p.poll(context.Background())

	snap := store.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("warnings = %d, want 1", len(snap))
	}
	w := snap[0]
	if w.Severity != SeverityWarning {
		t.Fatalf("Severity = %s, want warning", w.Severity)
	}
	if w.Usage == nil || w.Usage.Unit != "tokens" {
		t.Fatalf("Usage = %+v, want unit tokens", w.Usage)
	}
	if len(w.Actions) != 1 || w.Actions[0].Label != "View Plans" {
		t.Fatalf("Actions = %+v, want single View Plans", w.Actions)
	}
}

func TestPollBelowThresholdEmitsNothing(t *testing.T) {
	t.Parallel()
	srv := quotaServer(t, nil, http.StatusOK,
		`{"search":{"current_usage":50,"limit":100,"percentage_used":50}}`)
	p, store := newTestPoller(t, PollerConfig{Endpoint: srv.URL, Token: "tok"})

	p.poll(context.Background())

	if n := len(store.Snapshot()); n != 0 {
		t.Fatalf("warnings = %d, want 0", n)
	}
}

// Once usage drops back under the thresholds, existing warnings stay live;
// only a dismiss or a fresher over-threshold evaluation replaces them.
func TestStaleWarningPersistsAfterUsageDrops(t *testing.T) {
	t.Parallel()
	srv := quotaServer(t, nil, http.StatusOK,
		`{"upload":{"current_usage":50,"limit":100,"percentage_used":50}}`)
	p, store := newTestPoller(t, PollerConfig{Endpoint: srv.URL, Token: "tok"})

	id, err := store.AddWarning(Warning{QuotaType: "upload", Severity: SeverityCritical})
	if err != nil {
		t.Fatal(err)
	}

	p.poll(context.Background())

	snap := store.Snapshot()
	if len(snap) != 1 || snap[0].ID != id {
		t.Fatalf("stale warning was retracted: %+v", snap)
	}
}

func TestPollServerErrorSkipsCycle(t *testing.T) {
	t.Parallel()
	srv := quotaServer(t, nil, http.StatusInternalServerError, `boom`)
	p, store := newTestPoller(t, PollerConfig{Endpoint: srv.URL, Token: "tok"})

	p.poll(context.Background())

	if n := len(store.Snapshot()); n != 0 {
		t.Fatalf("warnings after HTTP 500 = %d, want 0", n)
	}
}

func TestPollMalformedBodySkipsCycle(t *testing.T) {
	t.Parallel()
	srv := quotaServer(t, nil, http.StatusOK, `{"upload":`)
	p, store := newTestPoller(t, PollerConfig{Endpoint: srv.URL, Token: "tok"})

	p.poll(context.Background())

	if n := len(store.Snapshot()); n != 0 {
		t.Fatalf("warnings after malformed body = %d, want 0", n)
	}
}

func TestPollWithoutTokenSendsNoRequest(t *testing.T) {
	t.Parallel()
	requests := 0
	srv := quotaServer(t, &requests, http.StatusOK, `{}`)
	p, store := newTestPoller(t, PollerConfig{Endpoint: srv.URL})

	p.poll(context.Background())

	if requests != 0 {
		t.Fatalf("requests = %d, want 0 when token absent", requests)
	}
	if n := len(store.Snapshot()); n != 0 {
		t.Fatalf("warnings = %d, want 0", n)
	}
}

func TestPollTokenFromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("tok\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	srv := quotaServer(t, nil, http.StatusOK,
		`{"upload":{"current_usage":99,"limit":100,"percentage_used":99}}`)
	p, store := newTestPoller(t, PollerConfig{Endpoint: srv.URL, TokenFile: path})

	p.poll(context.Background())

	if n := len(store.Snapshot()); n != 1 {
		t.Fatalf("warnings = %d, want 1", n)
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		pct  float64
		sev  Severity
		emit bool
	}{
		{94.9, SeverityWarning, true},
		{95, SeverityCritical, true},
		{85, SeverityWarning, true},
		{84.9, "", false},
	}
	for _, tt := range tests {
		w, ok := evaluate("search", TypeUsage{PercentageUsed: tt.pct, CurrentUsage: tt.pct, Limit: 100})
		if ok != tt.emit {
			t.Errorf("pct %v: emit = %v, want %v", tt.pct, ok, tt.emit)
			continue
		}
		if ok && w.Severity != tt.sev {
			t.Errorf("pct %v: severity = %s, want %s", tt.pct, w.Severity, tt.sev)
		}
	}
}

func TestPollNowThrottled(t *testing.T) {
	t.Parallel()
	srv := quotaServer(t, nil, http.StatusOK, `{}`)
	p, _ := newTestPoller(t, PollerConfig{Endpoint: srv.URL, Token: "tok", RatePerSec: 0.001})
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	if err := p.PollNow(context.Background()); err != nil {
		t.Fatalf("first PollNow: %v", err)
	}
	if err := p.PollNow(context.Background()); err != ErrPollThrottled {
		t.Fatalf("second PollNow: err = %v, want ErrPollThrottled", err)
	}
}
