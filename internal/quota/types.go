package quota

import (
	"time"

	"notifyhub/internal/notification"
)

// Severity is the escalation level of a warning.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Usage is the measured consumption for one quota type.
type Usage struct {
	Current    float64
	Limit      float64
	Percentage float64
	Unit       string // "MB" | "tokens" | "searches"
}

// Warning is one live entry in the quota-warning store. QuotaType is the
// dedup key: the store holds at most one Warning per QuotaType.
type Warning struct {
	ID        string
	QuotaType string
	Severity  Severity
	Title     string
	Message   string
	Usage     *Usage
	Actions   []notification.Action
	CreatedAt time.Time
}

// Event is the bus payload for "quota.warning.*" events.
type Event struct {
	ID        string
	QuotaType string
	Severity  Severity
}
