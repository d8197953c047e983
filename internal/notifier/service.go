package notifier

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

// Service sends notifications through a transport.Sender.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender kit.Sender

	cfg     Config
	limiter *rate.Limiter

	// In-memory dedup cache: key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem

	now func() time.Time
}

func New(cfg Config, sender kit.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		sender: sender,
		log:    log,
		dedup:  map[string]time.Time{},
		now:    time.Now,
	}
	s.applyLocked(cfg)
	return s
}

// Apply swaps delivery policies at runtime.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 300
	}

	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Deliver sends text to chatID and logs the outcome.
//
// A transport failure is returned as *DeliveryError; it is never retried.
// A message suppressed by dedup returns nil.
func (s *Service) Deliver(ctx context.Context, chatID, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sender := s.sender
	s.mu.Unlock()

	if sender == nil {
		return &DeliveryError{ChatID: chatID, Err: fmt.Errorf("no transport configured")}
	}

	var key string
	if cfg.DedupWindow > 0 {
		key = dedupKey(chatID, text)
		if s.dedupSeen(key) {
			s.log.Debug("notification suppressed (duplicate)", logx.String("chat_id", chatID), logx.String("key", key))
			return nil
		}
	}

	if err := lim.Wait(ctx); err != nil {
		s.log.Error("message delivery failed", logx.String("chat_id", chatID), logx.Err(err))
		return &DeliveryError{ChatID: chatID, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	ref, err := sender.SendText(callCtx, kit.ChatTarget{ChatID: chatID}, text, &kit.SendOptions{DisablePreview: true})
	cancel()
	if err != nil {
		s.log.Error("message delivery failed", logx.String("chat_id", chatID), logx.Err(err))
		return &DeliveryError{ChatID: chatID, Err: err}
	}

	// Only sent messages count as duplicates, so a failed send can be retried.
	if key != "" {
		s.dedupRecord(key, cfg.DedupWindow, cfg.DedupMaxEntries)
	}
	s.appendHistory(chatID, text, cfg.HistorySize)
	s.log.Info("message delivered", logx.String("chat_id", chatID), logx.Int("message_id", ref.MessageID))
	return nil
}

func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(chatID, text string, max int) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: s.now(), ChatID: chatID, Text: text})
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.hmu.Unlock()
}

func dedupKey(chatID, text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(chatID))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) dedupSeen(key string) bool {
	now := s.now()

	s.dmu.Lock()
	defer s.dmu.Unlock()

	until, ok := s.dedup[key]
	return ok && now.Before(until)
}

func (s *Service) dedupRecord(key string, window time.Duration, max int) {
	now := s.now()

	s.dmu.Lock()
	defer s.dmu.Unlock()

	s.dedup[key] = now.Add(window)

	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	// Over cap: evict earliest expiry first.
	for len(s.dedup) > max {
		var (
			minKey string
			minT   time.Time
		)
		for k, t := range s.dedup {
			if minKey == "" || t.Before(minT) {
				minKey, minT = k, t
			}
		}
		delete(s.dedup, minKey)
	}
}
