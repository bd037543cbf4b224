package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/logging"
	"github.com/fintrack/fintrack/internal/netcheck"
	"github.com/fintrack/fintrack/internal/status"
	"github.com/fintrack/fintrack/internal/store"
	"github.com/fintrack/fintrack/internal/transport"
)

// Caller issues one remote call. *transport.Client implements it.
type Caller interface {
	Call(ctx context.Context, action ledger.Action, payload ledger.Payload) (transport.Result, error)
}

// Store is the durable state the coordinator needs. *store.Store
// implements it.
type Store interface {
	ReplaceSnapshot(ctx context.Context, txs []ledger.Transaction) error
	ReadSnapshot(ctx context.Context) []ledger.Transaction
	Enqueue(ctx context.Context, action ledger.Action, payload ledger.Payload) (ledger.PendingOperation, error)
	PendingOperations(ctx context.Context) ([]ledger.PendingOperation, error)
	QueueLength(ctx context.Context) (int, error)
	DrainQueue(ctx context.Context, net store.Connectivity, replay store.ReplayFunc) (store.DrainResult, error)
}

// Outcome is the terminal state of one dispatch.
type Outcome int

const (
	// Succeeded means the remote accepted the call.
	Succeeded Outcome = iota
	// Queued means the device was offline and the mutation was stored for
	// later delivery.
	Queued
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// Receipt reports how a mutation ended.
type Receipt struct {
	// Transaction is the record that was sent or queued. Only ID is set for
	// a delete.
	Transaction ledger.Transaction
	Outcome     Outcome
	// Pending is the queue length after a Queued outcome.
	Pending int
}

// Queued reports whether the mutation was stored for later delivery.
func (r Receipt) Queued() bool {
	return r.Outcome == Queued
}

// Coordinator orchestrates the transport, the durable store and the
// connectivity signal. It owns the busy state shown by UI collaborators.
type Coordinator struct {
	caller   Caller
	store    Store
	net      netcheck.Checker
	tracker  *status.Tracker
	notifier Notifier
	now      func() time.Time
	logger   logrus.FieldLogger

	drainMu sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithNotifier sets where events are sent.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithTracker shares an existing busy tracker. The tracker must be the one
// the Caller reports to.
func WithTracker(t *status.Tracker) Option {
	return func(c *Coordinator) { c.tracker = t }
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator around an existing caller.
func New(caller Caller, st Store, net netcheck.Checker, opts ...Option) (*Coordinator, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if net == nil {
		return nil, fmt.Errorf("connectivity checker cannot be nil")
	}

	c := &Coordinator{
		caller: caller,
		store:  st,
		net:    net,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracker == nil {
		c.tracker = status.NewTracker()
	}
	c.logger = logging.OrDiscard(c.logger).WithField("component", "syncer")
	return c, nil
}

// NewWithTransport builds the transport client from cfg, wired to the
// coordinator's own busy tracker.
func NewWithTransport(cfg transport.Config, st Store, net netcheck.Checker, opts ...Option) (*Coordinator, error) {
	probe := &Coordinator{}
	for _, opt := range opts {
		opt(probe)
	}

	tracker := probe.tracker
	if tracker == nil {
		tracker = status.NewTracker()
	}

	client, err := transport.New(cfg,
		transport.WithBusyReporter(tracker),
		transport.WithLogger(probe.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	return New(client, st, net, append(opts, WithTracker(tracker))...)
}

// OnBusyChange registers fn for busy/idle transitions and returns a
// function that unregisters it.
func (c *Coordinator) OnBusyChange(fn status.BusyFunc) (unregister func()) {
	return c.tracker.OnBusyChange(fn)
}

// Busy reports whether a remote call is in flight.
func (c *Coordinator) Busy() bool {
	return c.tracker.Busy()
}

// Online reports the current connectivity signal.
func (c *Coordinator) Online() bool {
	return c.net.Online()
}

// FetchAll returns the full transaction list.
//
// Online, the remote list replaces the snapshot and is returned. Offline, or
// when the remote call fails for any reason, the cached snapshot is returned
// instead. FetchAll never fails and never queues anything.
func (c *Coordinator) FetchAll(ctx context.Context) []ledger.Transaction {
	if !c.net.Online() {
		c.logger.Debug("offline, serving snapshot")
		return c.store.ReadSnapshot(ctx)
	}

	res, err := c.caller.Call(ctx, ledger.ActionFetch, nil)
	if err != nil {
		c.logger.WithError(err).Warn("fetch failed, serving snapshot")
		c.emit(Event{Type: EventFailed, Action: ledger.ActionFetch, Error: err.Error()})
		return c.store.ReadSnapshot(ctx)
	}

	txs, skipped := res.Transactions()
	for _, err := range skipped {
		c.logger.WithError(err).Warn("skipping unreadable record")
	}
	c.emit(Event{Type: EventDelivered, Action: ledger.ActionFetch, Count: len(txs)})
	c.drainAfterSuccess(ctx)

	if err := c.store.ReplaceSnapshot(ctx, txs); err != nil {
		c.logger.WithError(err).Warn("failed to refresh snapshot")
	} else if len(txs) > 0 {
		c.emit(Event{Type: EventSnapshot, Count: len(txs)})
	}
	return txs
}

// AddTransaction records a new transaction from a caller-supplied amount.
//
// The returned transaction is optimistic when the device is offline: it is
// queued, and will not appear in FetchAll until the queue drains and a later
// fetch refreshes the snapshot.
func (c *Coordinator) AddTransaction(ctx context.Context, amount, note string) (Receipt, error) {
	d, err := ledger.ParseAmount(amount)
	if err != nil {
		return Receipt{}, err
	}
	return c.AddAmount(ctx, d, note)
}

// AddAmount is AddTransaction for an already-parsed amount.
func (c *Coordinator) AddAmount(ctx context.Context, amount decimal.Decimal, note string) (Receipt, error) {
	if amount.IsZero() {
		return Receipt{}, &ledger.ValidationError{Field: "amount", Reason: "must be non-zero"}
	}

	tx := ledger.NewTransaction(amount, note, c.now())
	return c.dispatch(ctx, ledger.ActionAdd, tx)
}

// QuickAdd handles an external add trigger, applying the sign implied by
// its kind.
func (c *Coordinator) QuickAdd(ctx context.Context, q ledger.QuickAdd) (Receipt, error) {
	amount, err := q.SignedAmount()
	if err != nil {
		return Receipt{}, err
	}
	return c.AddAmount(ctx, amount, q.Note)
}

// UpdateTransaction replaces a transaction by id. The date is refreshed to
// now before dispatch.
func (c *Coordinator) UpdateTransaction(ctx context.Context, tx ledger.Transaction) (Receipt, error) {
	if err := tx.Validate(); err != nil {
		return Receipt{}, err
	}

	tx.Date = c.now().UTC()
	return c.dispatch(ctx, ledger.ActionUpdate, tx)
}

// DeleteTransaction removes a transaction by id.
func (c *Coordinator) DeleteTransaction(ctx context.Context, id string) (Receipt, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Receipt{}, &ledger.ValidationError{Field: "id", Reason: "is required"}
	}

	return c.dispatch(ctx, ledger.ActionDelete, ledger.Transaction{ID: id})
}

// Pending returns the queued operations in replay order.
func (c *Coordinator) Pending(ctx context.Context) ([]ledger.PendingOperation, error) {
	return c.store.PendingOperations(ctx)
}

// QueueLength returns the number of queued operations.
func (c *Coordinator) QueueLength(ctx context.Context) (int, error) {
	return c.store.QueueLength(ctx)
}

// dispatch is the shared path for mutations.
//
//	Idle → Dispatching → Succeeded | Queued | Failed (error)
//
// Offline, the mutation is queued without touching the network. Online, the
// call is made and a drain pass follows a success. Online failures are
// returned unchanged and nothing is queued.
func (c *Coordinator) dispatch(ctx context.Context, action ledger.Action, tx ledger.Transaction) (Receipt, error) {
	payload := tx.Fields()
	if action == ledger.ActionDelete {
		payload = ledger.Payload{"id": tx.ID}
	}
	log := c.logger.WithFields(logrus.Fields{"action": action, "id": tx.ID})

	if !c.net.Online() {
		if !action.IsMutation() {
			return Receipt{}, fmt.Errorf("%s: %w", action, ledger.ErrOfflineDeferral)
		}

		op, err := c.store.Enqueue(ctx, action, payload)
		if err != nil {
			return Receipt{}, fmt.Errorf("failed to queue %s while offline: %w", action, err)
		}

		pending, err := c.store.QueueLength(ctx)
		if err != nil {
			log.WithError(err).Debug("failed to read queue length")
		}
		log.WithField("seq", op.Seq).Info("offline, operation queued")
		c.emit(Event{Type: EventQueued, Action: action, ID: tx.ID, Pending: pending})
		return Receipt{Transaction: tx, Outcome: Queued, Pending: pending}, nil
	}

	if _, err := c.caller.Call(ctx, action, payload); err != nil {
		log.WithError(err).Warn("remote call failed")
		c.emit(Event{Type: EventFailed, Action: action, ID: tx.ID, Error: err.Error()})
		return Receipt{}, err
	}

	log.Debug("remote call succeeded")
	c.emit(Event{Type: EventDelivered, Action: action, ID: tx.ID})
	c.drainAfterSuccess(ctx)
	return Receipt{Transaction: tx, Outcome: Succeeded}, nil
}

// drainAfterSuccess runs a drain pass and swallows its error.
func (c *Coordinator) drainAfterSuccess(ctx context.Context) {
	_, err := c.Drain(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrDrainInProgress):
		c.logger.Debug("drain pass already running, skipping")
	default:
		c.logger.WithError(err).Warn("drain pass failed")
	}
}

// ErrDrainInProgress is returned by Drain when another pass is running.
var ErrDrainInProgress = errors.New("drain pass already in progress")

// Drain runs one drain pass. Passes never overlap: if one is already running
// Drain returns ErrDrainInProgress without doing anything.
func (c *Coordinator) Drain(ctx context.Context) (store.DrainResult, error) {
	if !c.drainMu.TryLock() {
		return store.DrainResult{Skipped: true}, ErrDrainInProgress
	}
	defer c.drainMu.Unlock()

	result, err := c.store.DrainQueue(ctx, c.net, c.replay)
	if err != nil {
		return result, fmt.Errorf("drain pass: %w", err)
	}

	if result.Attempted > 0 {
		c.emit(Event{Type: EventDrained, Count: result.Replayed, Pending: result.Remaining})
	}
	return result, nil
}

// replay delivers one queued operation straight through the transport.
func (c *Coordinator) replay(ctx context.Context, op ledger.PendingOperation) error {
	if _, err := c.caller.Call(ctx, op.Action, op.Payload); err != nil {
		return err
	}
	c.emit(Event{Type: EventDelivered, Action: op.Action, ID: op.Payload["id"]})
	return nil
}

func (c *Coordinator) emit(e Event) {
	if c.notifier == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = c.now()
	}
	c.notifier.Notify(e)
}
