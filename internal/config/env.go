package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env is the process environment contract. The three credentials are required;
// everything else has a default.
type Env struct {
	APIToken string `env:"API_TOKEN"`
	BotToken string `env:"BOT_TOKEN"`
	ChatID   string `env:"CHAT_ID"`

	APIEndpoint    string        `env:"API_ENDPOINT" envDefault:"https://practicum.yandex.ru/api/user_api/homework_statuses/"`
	PollSchedule   string        `env:"POLL_SCHEDULE" envDefault:"600s"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	TelegramAPIURL string        `env:"TELEGRAM_API_URL"`
}

// LoadEnv loads dotenv files (missing files are skipped; variables already set
// in the process win) and binds the process environment.
func LoadEnv(dotenvFiles ...string) (*Env, error) {
	for _, f := range dotenvFiles {
		if strings.TrimSpace(f) == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigurationError{Err: err}
		}
	}
	return parseEnv(env.Options{})
}

// ParseEnv binds an explicit environment map instead of the process environment.
func ParseEnv(environ map[string]string) (*Env, error) {
	return parseEnv(env.Options{Environment: environ})
}

func parseEnv(opts env.Options) (*Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate reports every missing credential at once.
func (e *Env) Validate() error {
	e.APIToken = strings.TrimSpace(e.APIToken)
	e.BotToken = strings.TrimSpace(e.BotToken)
	e.ChatID = strings.TrimSpace(e.ChatID)

	var missing []string
	if e.APIToken == "" {
		missing = append(missing, "API_TOKEN")
	}
	if e.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if e.ChatID == "" {
		missing = append(missing, "CHAT_ID")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	if e.HTTPTimeout < 0 {
		return &ConfigurationError{Err: errors.New("HTTP_TIMEOUT must be >= 0")}
	}
	return nil
}
