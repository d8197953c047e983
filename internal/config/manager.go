package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "homeworkbot/pkg/logx"
)

// SettingsManager loads the optional settings file and republishes it on change.
// With an empty path it serves DefaultSettings and Watch is a no-op.
type SettingsManager struct {
	path string

	mu  sync.RWMutex
	cfg *Settings

	// subsMu guards the subscriber list and ensures we never send on a channel
	// that is concurrently being closed in Unsubscribe().
	subsMu sync.Mutex
	subs   []chan *Settings

	log       logx.Logger
	validator func(ctx context.Context, cfg *Settings) error

	// lastHash tracks the last committed content so editor write bursts
	// without a content change are not republished.
	lastHash uint64

	debounce time.Duration
}

func NewSettingsManager(path string) *SettingsManager {
	return &SettingsManager{path: strings.TrimSpace(path), debounce: 250 * time.Millisecond}
}

func (m *SettingsManager) Path() string { return m.path }

func (m *SettingsManager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs a validation hook used by Watch() before committing/publishing.
func (m *SettingsManager) SetValidator(fn func(ctx context.Context, cfg *Settings) error) {
	m.validator = fn
}

// Parse reads the settings file onto DefaultSettings. Unknown keys are rejected.
func (m *SettingsManager) Parse() (*Settings, error) {
	cfg := DefaultSettings()
	if m.path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, err := coerceToJSONBytes(m.path, b)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("%s: trailing data", m.path)
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *SettingsManager) Commit(cfg *Settings) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashSettings(cfg)
	m.mu.Unlock()
}

func hashSettings(cfg *Settings) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil || len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

func (m *SettingsManager) Load() (*Settings, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *SettingsManager) Get() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *SettingsManager) Subscribe(buffer int) chan *Settings {
	ch := make(chan *Settings, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *SettingsManager) Unsubscribe(ch chan *Settings) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

func (m *SettingsManager) publish(cfg *Settings) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		// Always deliver the latest: if the buffer is full, drop one oldest item.
		select {
		case ch <- cfg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
				m.log.Debug("settings update dropped (subscriber slow)", logx.Int("queue_cap", cap(ch)))
			}
		}
	}
}

// reload parses, validates, commits and publishes. It reports whether a new
// value was published.
func (m *SettingsManager) reload(ctx context.Context) bool {
	cfg, err := m.Parse()
	if err != nil {
		m.log.Warn("settings parse failed", logx.String("path", m.path), logx.Err(err))
		return false
	}

	h := hashSettings(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		m.log.Debug("settings unchanged; skipping publish", logx.String("path", m.path))
		return false
	}

	if m.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.validator(vctx, cfg)
		cancel()
		if err != nil {
			m.log.Warn("settings rejected", logx.String("path", m.path), logx.Err(err))
			return false
		}
	}

	m.Commit(cfg)
	m.publish(cfg)
	m.log.Debug("settings published", logx.String("path", m.path), logx.String("hash", fmt.Sprintf("%x", h)))
	return true
}

// Watch follows the settings file until ctx is done. The parent directory is
// watched so editors that replace the file atomically are handled.
func (m *SettingsManager) Watch(ctx context.Context) error {
	if m.path == "" {
		<-ctx.Done()
		return nil
	}
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	// A broken watcher (closed channels, backend errors) is recreated with a
	// small jittered exponential backoff.
	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	nextWait := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff *= 2
			if backoff > restartBackoffMax {
				backoff = restartBackoffMax
			}
		}
		return wait
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		m.log.Debug("settings change detected; scheduling reload", logx.String("path", m.path))
		timer = time.AfterFunc(m.debounce, func() { m.reload(ctx) })
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			m.log.Warn("settings watch init failed", logx.Err(err), logx.String("dir", dir))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(nextWait()):
				continue
			}
		}

		backoff = restartBackoffBase
		m.log.Debug("settings watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				// Overflow means we may have missed events; reload once and keep going.
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					m.log.Warn("settings watch overflow; forcing reload", logx.Err(err))
					debounce()
					continue
				}
				m.log.Warn("settings watch error", logx.Err(err), logx.String("dir", dir))
			}
		}

		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		wait := nextWait()
		m.log.Warn("settings watcher stopped; restarting", logx.String("dir", dir), logx.Duration("backoff", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
