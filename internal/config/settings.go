package config

import (
	"fmt"
	"strings"
	"time"

	logx "homeworkbot/pkg/logx"
)

// ParseDurationField parses a Go duration string; empty means 0.
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

// ParseDurationOrDefault is ParseDurationField with def substituted for 0.
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

// Validate rejects settings that would be applied with surprising effects.
// It is used both at startup and before committing a hot reload.
func (s *Settings) Validate() error {
	if s == nil {
		return fmt.Errorf("settings are nil")
	}
	if lvl := strings.TrimSpace(s.Logging.Level); lvl != "" {
		if !logx.ValidLevel(lvl) {
			return fmt.Errorf("logging.level: unknown level %q", lvl)
		}
	}
	if s.Notifier.RatePerSec < 0 {
		return fmt.Errorf("notifier.rate_per_sec must be >= 0")
	}
	if s.Notifier.DedupMaxEntries < 0 {
		return fmt.Errorf("notifier.dedup_max_entries must be >= 0")
	}
	if s.Notifier.HistorySize < 0 {
		return fmt.Errorf("notifier.history_size must be >= 0")
	}
	if _, err := ParseDurationField("notifier.send_timeout", s.Notifier.SendTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("notifier.dedup_window", s.Notifier.DedupWindow); err != nil {
		return err
	}
	return nil
}

// LogConfig maps the logging section onto the logx service config.
func (s *Settings) LogConfig() logx.Config {
	return logx.Config{
		Level:   s.Logging.Level,
		Console: s.Logging.Console,
		File: logx.FileConfig{
			Enabled: s.Logging.File.Enabled,
			Path:    s.Logging.File.Path,
		},
	}
}
