package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/logging"
	"github.com/fintrack/fintrack/internal/syncer"
)

// RejectedDir is the inbox subdirectory that receives files which can never
// be delivered.
const RejectedDir = "rejected"

// Syncer is the part of the sync coordinator the daemon drives.
type Syncer interface {
	QuickAdd(ctx context.Context, q ledger.QuickAdd) (syncer.Receipt, error)
	FetchAll(ctx context.Context) []ledger.Transaction
}

// Config holds configuration for the daemon.
type Config struct {
	// Inbox is the directory watched for quick-add files.
	Inbox string

	// RefreshSchedule is a cron spec for the periodic refresh. Empty
	// disables it.
	RefreshSchedule string

	// DebounceInterval is how long a file must be quiet before it is read.
	DebounceInterval time.Duration

	// Logger for daemon activity (default: discard)
	Logger logrus.FieldLogger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RefreshSchedule:  "@every 5m",
		DebounceInterval: 200 * time.Millisecond,
	}
}

// Outcome is what happened to one inbox file.
type Outcome int

const (
	// Accepted means the add was delivered or queued and the file removed.
	Accepted Outcome = iota
	// Rejected means the file was moved to the rejected directory.
	Rejected
	// Retry means the file was left in place for the next refresh.
	Retry
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// Daemon turns quick-add files dropped into the inbox into transactions and
// keeps the snapshot fresh on a schedule.
type Daemon struct {
	syncer Syncer
	config *Config
	logger logrus.FieldLogger

	watcher *InboxWatcher
	cron    *cron.Cron

	changeQueue   map[string]time.Time
	changeQueueMu sync.Mutex

	// processMu serializes file handling between the watcher and refresh.
	processMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon. Use Start to begin watching.
func New(s Syncer, config *Config) (*Daemon, error) {
	if s == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if config == nil || config.Inbox == "" {
		return nil, fmt.Errorf("inbox cannot be empty")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	d := &Daemon{
		syncer:      s,
		config:      config,
		logger:      logging.OrDiscard(config.Logger).WithField("component", "daemon"),
		changeQueue: make(map[string]time.Time),
	}

	if config.RefreshSchedule != "" {
		d.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := d.cron.AddFunc(config.RefreshSchedule, func() { d.Refresh(d.ctx) }); err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", config.RefreshSchedule, err)
		}
	}

	return d, nil
}

// Start processes files already in the inbox, then watches it and runs the
// refresh schedule. It blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	if err := os.MkdirAll(d.config.Inbox, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}

	watcher, err := NewInboxWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Start(d.config.Inbox); err != nil {
		_ = watcher.Stop()
		return err
	}
	d.watcher = watcher

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.logger.WithField("inbox", d.config.Inbox).Info("daemon started")

	d.ScanInbox(d.ctx)

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()

	if d.cron != nil {
		d.cron.Start()
	}

	<-d.ctx.Done()
	return d.stop()
}

func (d *Daemon) stop() error {
	d.logger.Info("stopping daemon")

	if d.cron != nil {
		<-d.cron.Stop().Done()
	}

	err := d.watcher.Stop()
	d.wg.Wait()

	d.logger.Info("daemon stopped")
	return err
}

// Refresh fetches the full list, which also drains the offline queue, and
// retries any files still waiting in the inbox.
func (d *Daemon) Refresh(ctx context.Context) {
	txs := d.syncer.FetchAll(ctx)
	d.logger.WithField("count", len(txs)).Info("scheduled refresh")
	d.ScanInbox(ctx)
}

// ScanInbox processes every *.json file in the inbox in name order and
// reports how many were accepted.
func (d *Daemon) ScanInbox(ctx context.Context) int {
	entries, err := os.ReadDir(d.config.Inbox)
	if err != nil {
		d.logger.WithError(err).Warn("failed to read inbox")
		return 0
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	accepted := 0
	for _, name := range names {
		if d.ProcessFile(ctx, filepath.Join(d.config.Inbox, name)) == Accepted {
			accepted++
		}
	}
	return accepted
}

// ProcessFile submits one quick-add file.
//
// Files that cannot parse, fail validation or are rejected by the remote are
// moved to the rejected directory. Transient failures leave the file in
// place for the next refresh.
func (d *Daemon) ProcessFile(ctx context.Context, path string) Outcome {
	d.processMu.Lock()
	defer d.processMu.Unlock()

	log := d.logger.WithField("file", filepath.Base(path))

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		// Already handled by an earlier event.
		return Accepted
	}
	if err != nil {
		log.WithError(err).Warn("failed to read quick-add file")
		return Retry
	}

	var q ledger.QuickAdd
	if err := json.Unmarshal(data, &q); err != nil {
		log.WithError(err).Warn("malformed quick-add file")
		return d.reject(path, log)
	}

	rcpt, err := d.syncer.QuickAdd(ctx, q)
	switch {
	case err == nil:
	case ledger.IsValidation(err), errors.Is(err, ledger.ErrRemoteRejection):
		log.WithError(err).Warn("quick-add rejected")
		return d.reject(path, log)
	default:
		log.WithError(err).Warn("quick-add failed, will retry")
		return Retry
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Error("failed to remove processed file")
	}
	log.WithFields(logrus.Fields{
		"id":      rcpt.Transaction.ID,
		"amount":  rcpt.Transaction.Amount.String(),
		"outcome": rcpt.Outcome,
	}).Info("quick-add accepted")
	return Accepted
}

func (d *Daemon) reject(path string, log logrus.FieldLogger) Outcome {
	dir := filepath.Join(d.config.Inbox, RejectedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithError(err).Error("failed to create rejected directory")
		return Retry
	}
	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		log.WithError(err).Error("failed to move rejected file")
		return Retry
	}
	return Rejected
}

func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			if event.Op == OpDelete {
				continue
			}
			d.logger.WithFields(logrus.Fields{"op": event.Op, "file": filepath.Base(event.Path)}).Debug("inbox event")
			d.queueChange(event.Path)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.logger.WithError(err).Warn("watcher error")
		}
	}
}

// queueChange records a file for processing once it has been quiet for the
// debounce interval.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(d.changeQueue, path)
	}
	d.changeQueueMu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		d.ProcessFile(d.ctx, path)
	}
}
