package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"homeworkbot/internal/eventbus"
	"homeworkbot/internal/homework"
	"homeworkbot/internal/practicum"
	logx "homeworkbot/pkg/logx"
	"homeworkbot/pkg/systemd"
)

// FailurePrefix starts every failure notice sent to the chat.
const FailurePrefix = "Сбой в работе программы: "

// Fetcher returns the decoded status response for changes since the given
// Unix timestamp.
type Fetcher interface {
	Fetch(ctx context.Context, since int64) (any, error)
}

// Deliverer sends one text to one chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID, text string) error
}

type State int32

const (
	StateIdle State = iota
	StatePolling
	StateValidating
	StateNotifying
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateValidating:
		return "validating"
	case StateNotifying:
		return "notifying"
	case StateSleeping:
		return "sleeping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Config struct {
	ChatID string
	// Schedule decides when the next poll starts. Nil means every DefaultInterval.
	Schedule cron.Schedule
}

// Loop polls the review service and reports every status change to one chat.
//
// The cursor is written only by the goroutine running Run/Iterate; Cursor and
// State may be read from anywhere.
type Loop struct {
	cfg     Config
	fetcher Fetcher
	notify  Deliverer
	log     logx.Logger
	bus     eventbus.Bus

	now      func() time.Time
	wait     func(ctx context.Context, d time.Duration) error
	sdNotify func(state string)

	cursor     atomic.Int64
	state      atomic.Int32
	iterations atomic.Uint64
	failures   atomic.Uint64
}

type Option func(*Loop)

// WithClock replaces time.Now. The initial cursor is taken from it.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithWait replaces the sleep between iterations.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) {
		if wait != nil {
			l.wait = wait
		}
	}
}

// WithSystemdNotify replaces the sd_notify hook.
func WithSystemdNotify(fn func(state string)) Option {
	return func(l *Loop) {
		if fn != nil {
			l.sdNotify = fn
		}
	}
}

// WithEventBus publishes a poll.done or poll.failed event after every iteration.
func WithEventBus(bus eventbus.Bus) Option {
	return func(l *Loop) { l.bus = bus }
}

func New(cfg Config, fetcher Fetcher, notify Deliverer, log logx.Logger, opts ...Option) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Schedule == nil {
		cfg.Schedule = cron.Every(DefaultInterval)
	}
	l := &Loop{
		cfg:     cfg,
		fetcher: fetcher,
		notify:  notify,
		log:     log,
		now:     time.Now,
		wait:    sleepCtx,
	}
	l.sdNotify = l.systemdNotify
	for _, o := range opts {
		o(l)
	}
	l.cursor.Store(l.now().Unix())
	return l
}

func (l *Loop) Cursor() int64 { return l.cursor.Load() }

func (l *Loop) State() State { return State(l.state.Load()) }

// Iterations reports how many iterations have run and how many of them failed.
func (l *Loop) Iterations() (total, failed uint64) {
	return l.iterations.Load(), l.failures.Load()
}

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

// Run polls immediately and then on every schedule tick until ctx is done.
// Iteration failures never stop it; it returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	l.sdNotify(systemd.StateReady)
	defer l.sdNotify(systemd.StateStopping)
	defer l.setState(StateIdle)

	l.log.Info("poll loop started", logx.String("chat_id", l.cfg.ChatID), logx.Int64("cursor", l.Cursor()))
	for {
		_ = l.Iterate(ctx)
		l.sdNotify(systemd.StateWatchdog)
		if ctx.Err() != nil {
			break
		}

		l.setState(StateSleeping)
		now := l.now()
		next := l.cfg.Schedule.Next(now)
		d := next.Sub(now)
		if next.IsZero() || d <= 0 {
			l.log.Warn("schedule has no next run; falling back to default interval",
				logx.Duration("interval", DefaultInterval))
			next, d = now.Add(DefaultInterval), DefaultInterval
		}
		l.log.Debug("sleeping until next poll", logx.Time("next", next), logx.Duration("in", d))
		if err := l.wait(ctx, d); err != nil {
			break
		}
	}
	l.log.Info("poll loop stopped", logx.Int64("cursor", l.Cursor()))
	return nil
}

// Iterate runs one poll: fetch, validate, render every record, then deliver.
//
// Rendering is all-or-nothing: if any record cannot be rendered nothing from
// the batch is sent and the cursor stays put, so the next poll asks again.
// Failed record deliveries are logged only. The returned error has already
// been logged and reported to the chat.
func (l *Loop) Iterate(ctx context.Context) (err error) {
	l.iterations.Add(1)
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("poll iteration panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = l.fail(ctx, fmt.Errorf("panic: %v", r))
		}
	}()

	l.setState(StatePolling)
	since := l.Cursor()
	resp, err := l.fetcher.Fetch(ctx, since)
	if err != nil {
		return l.fail(ctx, err)
	}

	l.setState(StateValidating)
	records, err := homework.Validate(resp)
	if err != nil {
		return l.fail(ctx, err)
	}
	messages := make([]string, 0, len(records))
	for i, rec := range records {
		msg, err := homework.Render(rec)
		if err != nil {
			l.log.Debug("record rejected", logx.Int("index", i), logx.Int("batch", len(records)))
			return l.fail(ctx, err)
		}
		messages = append(messages, msg)
	}

	l.setState(StateNotifying)
	if len(messages) == 0 {
		l.log.Debug("no new statuses", logx.Int64("from_date", since))
	}
	for _, msg := range messages {
		if err := l.notify.Deliver(ctx, l.cfg.ChatID, msg); err != nil {
			l.log.Warn("status notification not delivered", logx.Err(err))
		}
	}

	l.cursor.Store(l.now().Unix())
	l.log.Info("poll iteration done", logx.Int("statuses", len(messages)), logx.Int64("cursor", l.Cursor()))
	l.publish(eventbus.TypePollDone, eventbus.PollDone{Since: since, Cursor: l.Cursor(), Statuses: len(messages)})
	return nil
}

// fail logs err and sends the failure notice. Shutdown interruptions are not
// reported.
func (l *Loop) fail(ctx context.Context, err error) error {
	l.failures.Add(1)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		l.log.Debug("poll iteration interrupted", logx.Err(err))
		return err
	}

	msg := FailurePrefix + err.Error()
	kind := errorKind(err)
	l.log.Error(msg, logx.Err(err), logx.String("kind", kind))
	l.publish(eventbus.TypePollFailed, eventbus.PollFailed{Since: l.Cursor(), Kind: kind, Err: err.Error()})
	if derr := l.notify.Deliver(ctx, l.cfg.ChatID, msg); derr != nil {
		l.log.Warn("failure notice not delivered", logx.Err(derr))
	}
	return err
}

func (l *Loop) publish(typ string, data any) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(eventbus.Event{Type: typ, Time: l.now(), Data: data})
}

func (l *Loop) systemdNotify(state string) {
	sent, err := systemd.Notify(state)
	if err != nil {
		l.log.Warn("sd_notify failed", logx.String("state", strings.TrimSpace(state)), logx.Err(err))
		return
	}
	if sent {
		l.log.Trace("sd_notify sent", logx.String("state", strings.TrimSpace(state)))
	}
}

func errorKind(err error) string {
	var (
		missing  *homework.MissingKeyError
		mismatch *homework.TypeMismatchError
		unknown  *homework.UnknownStatusError
		conn     *practicum.ConnectionError
		status   *practicum.HTTPStatusError
		parse    *practicum.ParseError
	)
	switch {
	case errors.As(err, &missing), errors.As(err, &mismatch), errors.As(err, &unknown):
		return "validation"
	case errors.As(err, &conn), errors.As(err, &status), errors.As(err, &parse):
		return "transport"
	default:
		return "internal"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
