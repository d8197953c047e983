package config

import (
	"sort"
	"strings"

	logx "homeworkbot/pkg/logx"
)

// SummarizeSettingsChange returns the changed sections and safe structured
// attrs for logging.
func SummarizeSettingsChange(oldCfg, newCfg *Settings) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = DefaultSettings()
	}
	if newCfg == nil {
		newCfg = DefaultSettings()
	}

	changed := make([]string, 0, 2)
	attrs := make([]logx.Field, 0, 8)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.String("logging.file_path", strings.TrimSpace(newCfg.Logging.File.Path)),
		)
	}

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.String("notifier.send_timeout", strings.TrimSpace(newCfg.Notifier.SendTimeout)),
			logx.String("notifier.dedup_window", strings.TrimSpace(newCfg.Notifier.DedupWindow)),
			logx.Int("notifier.history_size", newCfg.Notifier.HistorySize),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
