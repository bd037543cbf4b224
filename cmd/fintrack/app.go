package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fintrack/fintrack/internal/config"
	"github.com/fintrack/fintrack/internal/logging"
	"github.com/fintrack/fintrack/internal/netcheck"
	"github.com/fintrack/fintrack/internal/store"
	"github.com/fintrack/fintrack/internal/syncer"
)

type appOptions struct {
	ConfigPath string
	Offline    bool
	LogLevel   string
}

// app bundles everything a command needs.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	store  *store.Store
	coord  *syncer.Coordinator
	events *fanout
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Offline {
		cfg.Connectivity.Mode = string(netcheck.ModeOffline)
	}
	if strings.TrimSpace(cfg.API.Endpoint) == "" {
		return nil, errors.New("api.endpoint is not configured (run 'fintrack config init' or set FINTRACK_API_ENDPOINT)")
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, err
	}

	checker, err := cfg.Checker()
	if err != nil {
		return nil, fmt.Errorf("failed to set up connectivity check: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		// Reads still degrade to an empty list, so keep going.
		logger.WithError(err).Warn("local store unavailable")
		st = store.New(cfg.Store.Path, logger)
	}

	events := &fanout{}
	coord, err := syncer.NewWithTransport(cfg.Transport(), st, checker,
		syncer.WithLogger(logger),
		syncer.WithNotifier(events),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: st, coord: coord, events: events}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// fanout forwards coordinator events to every subscriber.
type fanout struct {
	mu   sync.Mutex
	subs []syncer.Notifier
}

func (f *fanout) Subscribe(n syncer.Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, n)
}

func (f *fanout) Notify(e syncer.Event) {
	f.mu.Lock()
	subs := append([]syncer.Notifier(nil), f.subs...)
	f.mu.Unlock()
	for _, n := range subs {
		n.Notify(e)
	}
}
