package notifier

import "time"

// Config controls delivery policies.
type Config struct {
	// RatePerSec is the token bucket rate (and burst). Default 3.
	RatePerSec int
	// SendTimeout bounds a single transport call. Default 10s.
	SendTimeout time.Duration
	// DedupWindow suppresses identical text to the same chat. 0 disables.
	DedupWindow     time.Duration
	DedupMaxEntries int
	// HistorySize caps the in-memory history. Default 300.
	HistorySize int
}

type HistoryItem struct {
	At     time.Time
	ChatID string
	Text   string
}
