package transport

import "context"

// ChatTarget addresses a chat. ChatID is either a numeric id ("-100123")
// or a public username ("@channel").
type ChatTarget struct {
	ChatID   string
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    string
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender is the messaging capability the notifier depends on.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
