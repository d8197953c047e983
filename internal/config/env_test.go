package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestParseEnvDefaults(t *testing.T) {
	e, err := ParseEnv(map[string]string{
		"API_TOKEN": "api",
		"BOT_TOKEN": "bot",
		"CHAT_ID":   " 123 ",
	})
	if err != nil {
		t.Fatalf("ParseEnv: %v", err)
	}
	if e.ChatID != "123" {
		t.Fatalf("ChatID = %q", e.ChatID)
	}
	if e.PollSchedule != "600s" {
		t.Fatalf("PollSchedule = %q", e.PollSchedule)
	}
	if e.HTTPTimeout != 30*time.Second {
		t.Fatalf("HTTPTimeout = %v", e.HTTPTimeout)
	}
	if e.APIEndpoint != "https://practicum.yandex.ru/api/user_api/homework_statuses/" {
		t.Fatalf("APIEndpoint = %q", e.APIEndpoint)
	}
}

func TestParseEnvMissingCredentials(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		missing []string
	}{
		{"all", map[string]string{}, []string{"API_TOKEN", "BOT_TOKEN", "CHAT_ID"}},
		{"api token", map[string]string{"BOT_TOKEN": "b", "CHAT_ID": "1"}, []string{"API_TOKEN"}},
		{"bot token", map[string]string{"API_TOKEN": "a", "CHAT_ID": "1"}, []string{"BOT_TOKEN"}},
		{"chat id blank", map[string]string{"API_TOKEN": "a", "BOT_TOKEN": "b", "CHAT_ID": "   "}, []string{"CHAT_ID"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnv(tt.environ)
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if !reflect.DeepEqual(ce.Missing, tt.missing) {
				t.Fatalf("Missing = %v, want %v", ce.Missing, tt.missing)
			}
		})
	}
}

func TestParseEnvBadDuration(t *testing.T) {
	_, err := ParseEnv(map[string]string{
		"API_TOKEN":    "a",
		"BOT_TOKEN":    "b",
		"CHAT_ID":      "1",
		"HTTP_TIMEOUT": "soon",
	})
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if ce.Err == nil {
		t.Fatal("expected wrapped parse error")
	}
}

// unsetForTest clears key for the duration of the test and restores it afterwards.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unsetenv %s: %v", key, err)
	}
}

func TestLoadEnvDotenvDoesNotOverride(t *testing.T) {
	t.Setenv("API_TOKEN", "from-process")
	t.Setenv("BOT_TOKEN", "bot")
	t.Setenv("CHAT_ID", "1")
	unsetForTest(t, "POLL_SCHEDULE")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("API_TOKEN=from-file\nPOLL_SCHEDULE=5m\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	e, err := LoadEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if e.APIToken != "from-process" {
		t.Fatalf("APIToken = %q, process env must win", e.APIToken)
	}
	if e.PollSchedule != "5m" {
		t.Fatalf("PollSchedule = %q", e.PollSchedule)
	}
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Missing: []string{"API_TOKEN", "CHAT_ID"}}
	if got := err.Error(); got != "missing required environment variables: API_TOKEN, CHAT_ID" {
		t.Fatalf("Error() = %q", got)
	}
	cause := errors.New("bad")
	if !errors.Is(&ConfigurationError{Err: cause}, cause) {
		t.Fatal("ConfigurationError must unwrap its cause")
	}
}
