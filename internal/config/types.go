package config

// Settings holds the non-secret, hot-reloadable part of the configuration.
// It is read from an optional JSON or YAML file; omitted fields keep the
// values from DefaultSettings.
type Settings struct {
	Logging  LoggingConfig  `json:"logging"`
	Notifier NotifierConfig `json:"notifier"`
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

// NotifierConfig controls chat delivery.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// DedupWindow "0s" (the default) disables duplicate suppression.
type NotifierConfig struct {
	RatePerSec      int    `json:"rate_per_sec"`
	SendTimeout     string `json:"send_timeout"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	HistorySize     int    `json:"history_size"`
}

// DefaultSettings is used when no settings file is given, and as the base
// that a settings file is decoded onto.
func DefaultSettings() *Settings {
	return &Settings{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    LoggingFile{Enabled: true, Path: "program.log"},
		},
		Notifier: NotifierConfig{
			RatePerSec:      3,
			SendTimeout:     "10s",
			DedupWindow:     "0s",
			DedupMaxEntries: 2000,
			HistorySize:     300,
		},
	}
}
