package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"homeworkbot/internal/config"
	"homeworkbot/internal/eventbus"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/practicum"
	"homeworkbot/internal/runtime/supervisor"
	kit "homeworkbot/internal/transport"
	telegram "homeworkbot/internal/transport/telegram/adapter"
	logx "homeworkbot/pkg/logx"
	"homeworkbot/pkg/systemd"
)

type App struct {
	env  *config.Env
	cfgm *config.SettingsManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	sender kit.Sender
	client *practicum.Client
	notif  *notifier.Service
	loop   *poller.Loop
	spec   poller.ParsedSpec
}

type Option func(*options)

type options struct {
	sender   kit.Sender
	loopOpts []poller.Option
}

// WithSender replaces the Telegram transport.
func WithSender(s kit.Sender) Option {
	return func(o *options) { o.sender = s }
}

// WithLoopOptions passes options through to the poll loop.
func WithLoopOptions(opts ...poller.Option) Option {
	return func(o *options) { o.loopOpts = append(o.loopOpts, opts...) }
}

// New wires every component. It touches no network: credentials are checked
// first and a *config.ConfigurationError is returned if any is missing.
func New(env *config.Env, cfgm *config.SettingsManager, opts ...Option) (*App, error) {
	if env == nil {
		return nil, &config.ConfigurationError{Err: errors.New("environment not loaded")}
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if cfgm == nil {
		cfgm = config.NewSettingsManager("")
	}
	settings, err := cfgm.Load()
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}

	logSvc, log := logx.New(settings.LogConfig())
	a, err := build(env, cfgm, settings, logSvc, log, o)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func build(env *config.Env, cfgm *config.SettingsManager, settings *config.Settings, logSvc *logx.Service, root logx.Logger, o options) (*App, error) {
	log := root.With(logx.String("comp", "app"))

	pcfg, spec, err := mapPollerConfig(env)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifierConfig(settings)
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}

	sender := o.sender
	if sender == nil {
		ad, err := telegram.New(mapTelegramConfig(env, ncfg.SendTimeout), root.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, &config.ConfigurationError{Err: err}
		}
		sender = ad
	}

	client := practicum.New(mapPracticumConfig(env), root.With(logx.String("comp", "practicum")))
	notif := notifier.New(ncfg, sender, root.With(logx.String("comp", "notifier")))
	bus := eventbus.New()
	loopOpts := append([]poller.Option{poller.WithEventBus(bus)}, o.loopOpts...)
	loop := poller.New(pcfg, client, notif, root.With(logx.String("comp", "poller")), loopOpts...)

	return &App{
		env:    env,
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		bus:    bus,
		sender: sender,
		client: client,
		notif:  notif,
		loop:   loop,
		spec:   spec,
	}, nil
}

func (a *App) Loop() *poller.Loop { return a.loop }

func (a *App) Notifier() *notifier.Service { return a.notif }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional settings reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Settings) error {
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	// hot reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest settings in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applySettings(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	// Poll outcomes at debug level; the loop already logs them at info.
	events, unsub := a.bus.Subscribe(32)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go("poller", a.loop.Run)

	a.log.Info("app started",
		logx.String("endpoint", a.client.Endpoint()),
		logx.String("schedule", a.spec.String()),
		logx.String("schedule_kind", a.spec.Kind.String()),
		logx.String("settings", a.cfgm.Path()),
	)
	if wd := systemd.WatchdogInterval(); wd > 0 && a.spec.Kind == poller.SpecInterval && a.spec.Every >= wd {
		a.log.Warn("poll interval exceeds systemd watchdog; the unit will be restarted while sleeping",
			logx.Duration("interval", a.spec.Every),
			logx.Duration("watchdog", wd),
		)
	}
	return nil
}

func (a *App) applySettings(oldCfg, newCfg *config.Settings) {
	sections, attrs := config.SummarizeSettingsChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("settings reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("settings applied", fields...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(newCfg.LogConfig())
		case "notifier":
			ncfg, err := mapNotifierConfig(newCfg)
			if err != nil {
				a.log.Warn("notifier settings rejected", logx.Err(err))
				continue
			}
			a.notif.Apply(ncfg)
		}
	}
}

// Stop cancels every goroutine and waits for them up to ctx's deadline
// (at most 5s).
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		if a.logs != nil {
			_ = a.logs.Close()
		}
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	err := a.sup.Stop(waitCtx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		a.log.Warn("stop deadline reached (continuing)", logx.Duration("elapsed", time.Since(start)))
		err = nil
	}

	total, failed := a.loop.Iterations()
	gc := a.sup.Counters()
	a.log.Info("stopped",
		logx.Int64("cursor", a.loop.Cursor()),
		logx.Int64("iterations", int64(total)),
		logx.Int64("failed_iterations", int64(failed)),
		logx.Int64("goroutines_started", int64(gc.Started)),
		logx.Int64("goroutines_active", gc.Active),
	)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}
