package app

import (
	"time"

	"notifyhub/internal/quota"
	"notifyhub/internal/scheduler"
)

// Status is the aggregate snapshot served at /statusz and used by
// operational tooling.
type Status struct {
	Time time.Time `json:"time"`

	Notifications NotificationStatus `json:"notifications"`
	Quota         QuotaStatus        `json:"quota"`
	Scheduler     scheduler.Snapshot `json:"scheduler"`
	Goroutines    SupervisorCounters `json:"goroutines"`
}

type NotificationStatus struct {
	Live    int `json:"live"`
	History int `json:"history"`
}

type QuotaStatus struct {
	Warnings      []quota.Warning `json:"warnings"`
	CriticalCount int             `json:"critical_count"`
	WarningCount  int             `json:"warning_count"`
	// OverallTier is the maximum display tier across live warnings.
	OverallTier string `json:"overall_tier"`
}

func (a *App) Status() Status {
	warnings := a.quotas.Snapshot()
	tiers := make([]quota.Tier, 0, len(warnings))
	for _, w := range warnings {
		tiers = append(tiers, quota.TierForSeverity(w.Severity))
	}

	st := Status{
		Time: time.Now(),
		Notifications: NotificationStatus{
			Live:    a.notif.Len(),
			History: len(a.notif.History()),
		},
		Quota: QuotaStatus{
			Warnings:      warnings,
			CriticalCount: a.quotas.CriticalCount(),
			WarningCount:  a.quotas.WarningCount(),
			OverallTier:   quota.MaxTier(tiers...).String(),
		},
		Scheduler: a.sched.Snapshot(),
	}
	if a.sup != nil {
		st.Goroutines = a.sup.Stats()
	}
	return st
}
