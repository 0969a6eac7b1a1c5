package notification

import "time"

// Kind classifies a notification and selects its default title and
// auto-removal timeout.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
	KindQuota   Kind = "quota"
)

// Action is an affordance attached to a notification. Invoking an action
// dismisses the owning notification unless KeepOpen is set (dismiss-on-invoke
// is the default).
type Action struct {
	Label    string
	Style    string // "primary" | "secondary" | "" (consumer styling hint)
	OnInvoke func()
	KeepOpen bool
}

type Notification struct {
	ID         string
	Kind       Kind
	Title      string
	Message    string
	Persistent bool
	// Timeout is the effective auto-removal delay for non-persistent entries.
	// Zero on input means "use the kind default".
	Timeout   time.Duration
	Actions   []Action
	Progress  *int // 0..100 when set
	CreatedAt time.Time
}

// HistoryItem records a store mutation for the status surface.
type HistoryItem struct {
	ID    string
	Kind  Kind
	Title string
	At    time.Time
	Event string // "added" | "removed" | "expired"
}

// Event is the bus payload for "notification.*" events.
type Event struct {
	ID    string
	Kind  Kind
	Title string
}

func defaultTitle(k Kind) string {
	switch k {
	case KindSuccess:
		return "Success"
	case KindError:
		return "Error"
	case KindWarning:
		return "Warning"
	case KindQuota:
		return "Quota"
	case KindInfo:
		return "Info"
	default:
		return "Info"
	}
}

func defaultTimeout(k Kind) time.Duration {
	switch k {
	case KindError:
		return 8 * time.Second
	case KindWarning:
		return 6 * time.Second
	case KindSuccess:
		return 4 * time.Second
	case KindInfo, KindQuota:
		return 5 * time.Second
	default:
		return 5 * time.Second
	}
}
