package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homeworkbot/internal/app"
	"homeworkbot/internal/config"
)

func main() {
	var (
		cfgPath string
		envPath string
	)
	flag.StringVar(&cfgPath, "config", "", "path to optional settings file (json or yaml)")
	flag.StringVar(&envPath, "env", ".env", "path to optional dotenv file")
	flag.Parse()

	env, err := config.LoadEnv(envPath)
	if err != nil {
		fatal(err)
	}

	a, err := app.New(env, config.NewSettingsManager(cfgPath))
	if err != nil {
		fatal(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		fatal(err)
	}

	reason := app.StopUnknown
	select {
	case sig := <-sigCh:
		reason = app.StopSIGTERM
		if sig == os.Interrupt {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	stopErr := a.Stop(stopCtx, reason)
	if err := a.Err(); err != nil {
		fatal(err)
	}
	if stopErr != nil {
		fatal(stopErr)
	}
}

func fatal(err error) {
	var ce *config.ConfigurationError
	if errors.As(err, &ce) {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
	} else {
		fmt.Fprintln(os.Stderr, "fatal:", err)
	}
	os.Exit(1)
}
