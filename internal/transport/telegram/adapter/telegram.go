package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API base URL (default https://api.telegram.org).
	APIURL string
	// Timeout bounds a single Bot API call.
	Timeout time.Duration
}

// Adapter is a send-only Telegram transport. It never polls for updates.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		URL:    strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Client: &http.Client{Timeout: timeout},
		// Skip getMe at construction: startup must not touch the network.
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// recipient lets telebot address chats by numeric id or @username alike.
type recipient string

func (r recipient) Recipient() string { return string(r) }

const telegramTextLimit = 4000

// splitTelegramText splits long messages into chunks that are safe to send to Telegram.
// It prefers newline boundaries and (best-effort) avoids splitting inside HTML tags when ParseMode is HTML.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		// Prefer a newline near the end of the window, but not a tiny chunk.
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, "HTML") && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

// SendText delivers text to a chat, splitting it when it exceeds the Telegram limit.
// The returned ref points at the first message sent.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chatID := strings.TrimSpace(to.ChatID)
	if chatID == "" {
		return kit.MessageRef{}, errors.New("telegram chat id is empty")
	}

	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	rcpt := recipient(chatID)

	var first kit.MessageRef
	for i, chunk := range chunks {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return first, err
			}
		}

		msg, err := a.bot.Send(rcpt, chunk, &tele.SendOptions{
			ParseMode:             tele.ParseMode(opt.ParseMode),
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}

		if i == 0 {
			first = kit.MessageRef{ChatID: chatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
		if len(chunks) > 1 {
			a.log.Debug("sent message chunk", logx.Int("index", i), logx.Int("total", len(chunks)))
		}
	}

	return first, nil
}
