package config

import (
	"reflect"
	"strings"

	logx "notifyhub/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes secrets like tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Pprof (never log token)
	if oldCfg.Pprof.Enabled != newCfg.Pprof.Enabled ||
		strings.TrimSpace(oldCfg.Pprof.Addr) != strings.TrimSpace(newCfg.Pprof.Addr) ||
		strings.TrimSpace(oldCfg.Pprof.Prefix) != strings.TrimSpace(newCfg.Pprof.Prefix) ||
		oldCfg.Pprof.AllowInsecure != newCfg.Pprof.AllowInsecure ||
		strings.TrimSpace(oldCfg.Pprof.ReadTimeout) != strings.TrimSpace(newCfg.Pprof.ReadTimeout) ||
		strings.TrimSpace(oldCfg.Pprof.WriteTimeout) != strings.TrimSpace(newCfg.Pprof.WriteTimeout) ||
		strings.TrimSpace(oldCfg.Pprof.IdleTimeout) != strings.TrimSpace(newCfg.Pprof.IdleTimeout) ||
		(strings.TrimSpace(oldCfg.Pprof.Token) != "") != (strings.TrimSpace(newCfg.Pprof.Token) != "") {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", strings.TrimSpace(newCfg.Pprof.Addr)),
			logx.Bool("pprof.token_set", strings.TrimSpace(newCfg.Pprof.Token) != ""),
			logx.Bool("pprof.allow_insecure", newCfg.Pprof.AllowInsecure),
		)
	}

	// Scheduler
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.Int("scheduler.workers", newCfg.Scheduler.Workers),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}

	// Notifications
	oN := derefNotifications(oldCfg.Notifications)
	nN := derefNotifications(newCfg.Notifications)
	if (oldCfg.Notifications != nil) != (newCfg.Notifications != nil) || oN != nN {
		changed = append(changed, "notifications")
		attrs = append(attrs,
			logx.Bool("notifications.enabled", nN.Enabled),
			logx.Int("notifications.max_visible", nN.MaxVisible),
		)
	}

	// Quota (never log token; surface only whether one is set)
	oQ := derefQuota(oldCfg.Quota)
	nQ := derefQuota(newCfg.Quota)
	if (oldCfg.Quota != nil) != (newCfg.Quota != nil) || oQ != nQ {
		changed = append(changed, "quota")
		attrs = append(attrs,
			logx.Bool("quota.enabled", nQ.Enabled),
			logx.Bool("quota.poller_enabled", nQ.Poller.Enabled),
			logx.String("quota.poller_interval", strings.TrimSpace(nQ.Poller.Interval)),
			logx.Bool("quota.token_set", strings.TrimSpace(nQ.Poller.Token) != "" || strings.TrimSpace(nQ.Poller.TokenFile) != ""),
		)
	}

	return changed, attrs
}

func derefNotifications(c *NotificationsConfig) NotificationsConfig {
	if c == nil {
		return NotificationsConfig{}
	}
	return *c
}

func derefQuota(c *QuotaConfig) QuotaConfig {
	if c == nil {
		return QuotaConfig{}
	}
	return *c
}
