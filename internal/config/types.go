package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Pprof     PprofConfig     `json:"pprof,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Notifications controls the in-memory notification store.
	// If the whole section is omitted, the store defaults to enabled.
	Notifications *NotificationsConfig `json:"notifications,omitempty"`

	// Quota controls the quota-warning store and the usage poller.
	Quota *QuotaConfig `json:"quota,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// NotificationsConfig controls the ephemeral notification store.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotificationsConfig struct {
	Enabled bool `json:"enabled"`

	// MaxVisible caps the number of concurrently held notifications.
	// When exceeded, the oldest non-persistent entry is evicted first.
	// 0 means the default cap.
	MaxVisible int `json:"max_visible,omitempty"`

	// HistorySize bounds the ring of recently dismissed/expired entries
	// kept for the status surface. 0 means the default.
	HistorySize int `json:"history_size,omitempty"`
}

// QuotaConfig controls quota warnings and the usage poller.
//
// The poller calls GET {endpoint}/api/v1/subscription/quota-status with a
// bearer token. Token may be set inline or read from token_file; when both
// are empty the poller skips its cycle without sending a request.
type QuotaConfig struct {
	Enabled bool `json:"enabled"`

	Poller QuotaPollerConfig `json:"poller"`
}

type QuotaPollerConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
	Token    string `json:"token,omitempty"`
	// TokenFile is read on every cycle so rotated credentials are picked up
	// without a reload.
	TokenFile string `json:"token_file,omitempty"`

	// Interval is a Go duration string. Default: "5m".
	Interval string `json:"interval,omitempty"`
	// RequestTimeout bounds a single status fetch. Default: "10s".
	RequestTimeout string `json:"request_timeout,omitempty"`

	// RatePerSec bounds manual PollNow triggers. Default: 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// SchedulerConfig controls the recurring-task service that hosts the quota
// poll tick (and any other periodic maintenance).
//
// All durations are Go duration strings (e.g. "10s", "1m").
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	Workers int  `json:"workers,omitempty"`

	// DefaultTimeout applies per task run when the task doesn't set its own.
	// Use "0s" to disable a global default timeout.
	DefaultTimeout string `json:"default_timeout,omitempty"`

	HistorySize int `json:"history_size,omitempty"`
	RetryMax    int `json:"retry_max,omitempty"`

	// Trigger timezone (IANA name, e.g. "Asia/Jakarta").
	Timezone string `json:"timezone,omitempty"`
}

// PprofConfig controls the optional pprof HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	Token         string `json:"token,omitempty"`  // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0 (disabled)
	// so /profile (which can take 30s+) works reliably.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
