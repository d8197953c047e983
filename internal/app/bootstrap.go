package app

import (
	"strings"
	"time"

	"homeworkbot/internal/config"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/practicum"
	telegram "homeworkbot/internal/transport/telegram/adapter"
)

// ---- Settings mapping ----

func mapNotifierConfig(cfg *config.Settings) (notifier.Config, error) {
	if cfg == nil {
		cfg = config.DefaultSettings()
	}
	sendTimeout, err := config.ParseDurationOrDefault("notifier.send_timeout", cfg.Notifier.SendTimeout, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	dedupWindow, err := config.ParseDurationField("notifier.dedup_window", cfg.Notifier.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		RatePerSec:      cfg.Notifier.RatePerSec,
		SendTimeout:     sendTimeout,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: cfg.Notifier.DedupMaxEntries,
		HistorySize:     cfg.Notifier.HistorySize,
	}, nil
}

// ---- Environment mapping ----

func mapPracticumConfig(env *config.Env) practicum.Config {
	return practicum.Config{
		Endpoint: strings.TrimSpace(env.APIEndpoint),
		Token:    env.APIToken,
		Timeout:  env.HTTPTimeout,
	}
}

// sendTimeout becomes the Bot API HTTP client timeout. It is fixed for the
// life of the process; reloading notifier.send_timeout only moves the
// per-message deadline.
func mapTelegramConfig(env *config.Env, sendTimeout time.Duration) telegram.Config {
	return telegram.Config{
		Token:   env.BotToken,
		APIURL:  env.TelegramAPIURL,
		Timeout: sendTimeout,
	}
}

func mapPollerConfig(env *config.Env) (poller.Config, poller.ParsedSpec, error) {
	sched, spec, err := poller.BuildSchedule(env.PollSchedule)
	if err != nil {
		return poller.Config{}, poller.ParsedSpec{}, &config.ConfigurationError{Err: err}
	}
	return poller.Config{ChatID: env.ChatID, Schedule: sched}, spec, nil
}
