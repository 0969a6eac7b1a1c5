package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration-valued config fields (scheduler.default_timeout,
// quota.poller.interval, quota.poller.request_timeout, the pprof timeouts)
// are Go duration strings such as "10s" or "5m". They stay strings in the
// JSON schema so a bad value can be reported with its field path instead of
// failing deep inside json.Unmarshal.

// ParseDurationField parses one such field. Empty means unset and maps to 0;
// negative durations are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback for unset
// fields, used for the poll interval and request timeout defaults.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
