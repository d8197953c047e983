package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"homeworkbot/internal/eventbus"
	"homeworkbot/internal/homework"
	"homeworkbot/internal/practicum"
	logx "homeworkbot/pkg/logx"
	"homeworkbot/pkg/systemd"
)

const testChat = "42"

type fakeFetcher struct {
	resp  any
	err   error
	panic bool
	calls []int64
}

func (f *fakeFetcher) Fetch(ctx context.Context, since int64) (any, error) {
	f.calls = append(f.calls, since)
	if f.panic {
		panic("decoder exploded")
	}
	return f.resp, f.err
}

type delivery struct {
	chatID string
	text   string
}

type fakeDeliverer struct {
	mu     sync.Mutex
	sent   []delivery
	failOn func(text string) error
}

func (d *fakeDeliverer) Deliver(ctx context.Context, chatID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, delivery{chatID: chatID, text: text})
	if d.failOn != nil {
		return d.failOn(text)
	}
	return nil
}

func (d *fakeDeliverer) texts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.sent))
	for _, s := range d.sent {
		out = append(out, s.text)
	}
	return out
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestLoop(t *testing.T, f Fetcher, d Deliverer, opts ...Option) (*Loop, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	opts = append([]Option{WithClock(clock.now), WithSystemdNotify(func(string) {})}, opts...)
	return New(Config{ChatID: testChat}, f, d, logx.Nop(), opts...), clock
}

func record(name, status string) map[string]any {
	return map[string]any{homework.KeyName: name, homework.KeyStatus: status}
}

func response(records ...any) map[string]any {
	return map[string]any{homework.KeyHomeworks: records}
}

func TestIterateEmptyBatchAdvancesCursor(t *testing.T) {
	f := &fakeFetcher{resp: response()}
	d := &fakeDeliverer{}
	l, clock := newTestLoop(t, f, d)

	start := l.Cursor()
	clock.t = clock.t.Add(10 * time.Minute)
	if err := l.Iterate(context.Background()); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(d.sent) != 0 {
		t.Fatalf("expected no notifications, got %v", d.texts())
	}
	if f.calls[0] != start {
		t.Fatalf("fetched from %d, want %d", f.calls[0], start)
	}
	if l.Cursor() != clock.t.Unix() {
		t.Fatalf("cursor = %d, want %d", l.Cursor(), clock.t.Unix())
	}
	if l.State() != StateNotifying {
		t.Fatalf("state = %s", l.State())
	}
}

func TestIterateDeliversInResponseOrder(t *testing.T) {
	f := &fakeFetcher{resp: response(record("hw1", "approved"), record("hw2", "rejected"), record("hw3", "reviewing"))}
	d := &fakeDeliverer{}
	l, _ := newTestLoop(t, f, d)

	if err := l.Iterate(context.Background()); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	want := []string{
		`Изменился статус проверки работы "hw1". Работа проверена: ревьюеру всё понравилось. Ура!`,
		`Изменился статус проверки работы "hw2". Работа проверена: у ревьюера есть замечания.`,
		`Изменился статус проверки работы "hw3". Работа взята на проверку ревьюером.`,
	}
	got := d.texts()
	if len(got) != len(want) {
		t.Fatalf("got %d notifications, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notification %d = %q, want %q", i, got[i], want[i])
		}
		if d.sent[i].chatID != testChat {
			t.Fatalf("notification %d sent to %q", i, d.sent[i].chatID)
		}
	}
}

func TestIterateBatchIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		resp  any
		check func(error) bool
	}{
		{
			name: "missing status",
			resp: response(record("hw1", "approved"), map[string]any{homework.KeyName: "hw2"}),
			check: func(err error) bool {
				var e *homework.MissingKeyError
				return errors.As(err, &e) && e.Key == homework.KeyStatus
			},
		},
		{
			name: "missing name",
			resp: response(map[string]any{homework.KeyStatus: "approved"}),
			check: func(err error) bool {
				var e *homework.MissingKeyError
				return errors.As(err, &e) && e.Key == homework.KeyName
			},
		},
		{
			name: "unknown status",
			resp: response(record("hw1", "approved"), record("hw2", "lost")),
			check: func(err error) bool {
				var e *homework.UnknownStatusError
				return errors.As(err, &e) && e.Status == "lost"
			},
		},
		{
			name: "homeworks is an object",
			resp: map[string]any{homework.KeyHomeworks: map[string]any{"a": 1}},
			check: func(err error) bool {
				var e *homework.TypeMismatchError
				return errors.As(err, &e)
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDeliverer{}
			l, clock := newTestLoop(t, &fakeFetcher{resp: tt.resp}, d)
			start := l.Cursor()
			clock.t = clock.t.Add(time.Hour)

			err := l.Iterate(context.Background())
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			got := d.texts()
			if len(got) != 1 || got[0] != FailurePrefix+err.Error() {
				t.Fatalf("expected only the failure notice, got %v", got)
			}
			if l.Cursor() != start {
				t.Fatalf("cursor advanced to %d", l.Cursor())
			}
			if total, failed := l.Iterations(); total != 1 || failed != 1 {
				t.Fatalf("iterations = %d/%d", total, failed)
			}
		})
	}
}

func TestIterateHTTPStatusSkipsValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := practicum.New(practicum.Config{Endpoint: srv.URL, Token: "t", Timeout: time.Second}, logx.Nop())
	d := &fakeDeliverer{}
	l, _ := newTestLoop(t, client, d)
	start := l.Cursor()

	err := l.Iterate(context.Background())
	var se *practicum.HTTPStatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected HTTPStatusError 404, got %v", err)
	}
	if l.State() != StatePolling {
		t.Fatalf("validator must not be reached, state = %s", l.State())
	}
	got := d.texts()
	if len(got) != 1 || !strings.HasPrefix(got[0], FailurePrefix) {
		t.Fatalf("expected failure notice, got %v", got)
	}
	if l.Cursor() != start {
		t.Fatal("cursor must not advance on transport failure")
	}
}

func TestIterateDeliveryFailureDoesNotBlockCursor(t *testing.T) {
	d := &fakeDeliverer{failOn: func(string) error { return errors.New("telegram down") }}
	l, clock := newTestLoop(t, &fakeFetcher{resp: response(record("hw1", "approved"))}, d)
	clock.t = clock.t.Add(time.Minute)

	if err := l.Iterate(context.Background()); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if l.Cursor() != clock.t.Unix() {
		t.Fatal("cursor must advance when only delivery failed")
	}
}

func TestIterateFailureNoticeDeliveryFailureIsSwallowed(t *testing.T) {
	boom := errors.New("endpoint unreachable")
	d := &fakeDeliverer{failOn: func(string) error { return errors.New("telegram down") }}
	l, _ := newTestLoop(t, &fakeFetcher{err: boom}, d)

	if err := l.Iterate(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Iterate() = %v, want %v", err, boom)
	}
	if got := d.texts(); len(got) != 1 || got[0] != "Сбой в работе программы: endpoint unreachable" {
		t.Fatalf("unexpected notices: %v", got)
	}
}

func TestIterateRecoversPanic(t *testing.T) {
	d := &fakeDeliverer{}
	l, _ := newTestLoop(t, &fakeFetcher{panic: true}, d)

	err := l.Iterate(context.Background())
	if err == nil || !strings.Contains(err.Error(), "decoder exploded") {
		t.Fatalf("Iterate() = %v", err)
	}
	if got := d.texts(); len(got) != 1 || !strings.HasPrefix(got[0], FailurePrefix) {
		t.Fatalf("expected failure notice, got %v", got)
	}
}

func TestIterateInterruptedIsNotReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &fakeDeliverer{}
	l, _ := newTestLoop(t, &fakeFetcher{err: &practicum.ConnectionError{Endpoint: "x", Err: context.Canceled}}, d)

	if err := l.Iterate(ctx); err == nil {
		t.Fatal("expected error")
	}
	if len(d.sent) != 0 {
		t.Fatalf("shutdown must not be reported, got %v", d.texts())
	}
}

func TestRunSleepsOnScheduleUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		waits  []time.Duration
		states []string
	)
	wait := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		if len(waits) == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	notify := func(state string) { states = append(states, state) }

	f := &fakeFetcher{resp: response()}
	l, _ := newTestLoop(t, f, &fakeDeliverer{}, WithWait(wait), WithSystemdNotify(notify))

	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(f.calls) != 2 {
		t.Fatalf("fetches = %d, want 2", len(f.calls))
	}
	for _, d := range waits {
		if d != DefaultInterval {
			t.Fatalf("wait = %v, want %v", d, DefaultInterval)
		}
	}
	want := []string{systemd.StateReady, systemd.StateWatchdog, systemd.StateWatchdog, systemd.StateStopping}
	if len(states) != len(want) {
		t.Fatalf("sd_notify states = %q", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("sd_notify[%d] = %q, want %q", i, states[i], want[i])
		}
	}
	if l.State() != StateIdle {
		t.Fatalf("state after Run = %s", l.State())
	}
}

func TestSleepCtx(t *testing.T) {
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepCtx: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("sleepCtx() = %v", err)
	}
}

func TestIteratePublishesEvents(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	f := &fakeFetcher{resp: response(record("hw1", "approved"))}
	l, _ := newTestLoop(t, f, &fakeDeliverer{}, WithEventBus(bus))
	if err := l.Iterate(context.Background()); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	f.resp = response(record("hw1", "lost"))
	_ = l.Iterate(context.Background())

	e := <-events
	done, ok := e.Data.(eventbus.PollDone)
	if e.Type != eventbus.TypePollDone || !ok || done.Statuses != 1 {
		t.Fatalf("unexpected event %+v", e)
	}
	e = <-events
	failed, ok := e.Data.(eventbus.PollFailed)
	if e.Type != eventbus.TypePollFailed || !ok || failed.Kind != "validation" {
		t.Fatalf("unexpected event %+v", e)
	}
}

// neverSchedule mimics a cron spec for a date that does not exist.
type neverSchedule struct{}

func (neverSchedule) Next(time.Time) time.Time { return time.Time{} }

func TestRunFallsBackWhenScheduleNeverFires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration
	wait := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		cancel()
		return ctx.Err()
	}

	f := &fakeFetcher{resp: response()}
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	l := New(Config{ChatID: testChat, Schedule: neverSchedule{}}, f, &fakeDeliverer{}, logx.Nop(),
		WithClock(clock.now), WithWait(wait), WithSystemdNotify(func(string) {}))

	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(f.calls) != 1 {
		t.Fatalf("fetches = %d, want 1", len(f.calls))
	}
	if len(waits) != 1 || waits[0] != DefaultInterval {
		t.Fatalf("waits = %v, want [%v]", waits, DefaultInterval)
	}
}
