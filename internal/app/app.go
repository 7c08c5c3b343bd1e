package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var errInterrupted = errors.New("interrupted")

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}
}

func setLogLevel(raw string) {
	if raw == "" {
		return
	}
	level, err := log.ParseLevel(raw)
	if err != nil {
		log.Warn("invalid log level, keeping info", "value", raw)
		return
	}
	log.SetLevel(level)
}

// runUntilSignal runs work with a context that is cancelled on SIGINT or
// SIGTERM. An interrupt is a clean exit, not an error.
func runUntilSignal(parent context.Context, work func(context.Context) error) error {
	g, ctx := errgroup.WithContext(parent)

	g.Go(func() error {
		return work(ctx)
	})

	g.Go(func() error {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(signals)

		select {
		case sig := <-signals:
			log.Info("Shutting down", "signal", sig.String())
			return errInterrupted
		case <-ctx.Done():
			return nil
		}
	})

	err := g.Wait()
	if errors.Is(err, errInterrupted) {
		return nil
	}
	return err
}
