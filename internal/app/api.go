package app

import (
	"context"

	"notifyhub/internal/notification"
	"notifyhub/internal/quota"
)

// Producer surface exposed to the rest of the application (upload flow, chat
// flow, operational tooling). All mutation of the two stores goes through
// these methods.

func (a *App) AddNotification(n notification.Notification) (string, error) {
	return a.notif.Add(n)
}

func (a *App) RemoveNotification(id string) (bool, error) {
	return a.notif.Remove(id)
}

func (a *App) ClearNotifications() error {
	return a.notif.Clear()
}

func (a *App) AddQuotaWarning(w quota.Warning) (string, error) {
	return a.quotas.AddWarning(w)
}

func (a *App) RemoveQuotaWarning(id string) (bool, error) {
	return a.quotas.RemoveWarning(id)
}

func (a *App) ClearQuotaWarnings() error {
	return a.quotas.ClearWarnings()
}

// Notifications returns the live notification list in insertion order.
func (a *App) Notifications() []notification.Notification {
	return a.notif.Snapshot()
}

// QuotaWarnings returns the live quota warnings in insertion order.
func (a *App) QuotaWarnings() []quota.Warning {
	return a.quotas.Snapshot()
}

// PollQuotaNow triggers one immediate quota evaluation, subject to the
// manual-poll rate budget.
func (a *App) PollQuotaNow(ctx context.Context) error {
	return a.poller.PollNow(ctx)
}
