package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fintrack/fintrack/internal/ledger"
)

// Connectivity reports whether the remote API is currently reachable.
type Connectivity interface {
	Online() bool
}

// ReplayFunc delivers one queued operation. A nil error means the operation
// reached the remote and can be removed from the queue.
type ReplayFunc func(ctx context.Context, op ledger.PendingOperation) error

// DrainResult summarizes one drain pass.
type DrainResult struct {
	// Skipped is true when the pass did not run because the device was
	// offline.
	Skipped bool

	Attempted int
	Replayed  int
	Failed    int

	// Remaining is the queue length after the pass.
	Remaining int
}

// Enqueue appends a pending operation. The returned operation carries its
// queue position.
func (s *Store) Enqueue(ctx context.Context, action ledger.Action, payload ledger.Payload) (ledger.PendingOperation, error) {
	if payload == nil {
		payload = ledger.Payload{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return ledger.PendingOperation{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	conn, err := s.handle(ctx)
	if err != nil {
		return ledger.PendingOperation{}, err
	}

	now := time.Now().UTC()
	res, err := conn.ExecContext(ctx,
		`INSERT INTO queue (action, payload, enqueued_at) VALUES (?, ?, ?)`,
		string(action), string(data), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return ledger.PendingOperation{}, fmt.Errorf("failed to enqueue %s: %w", action, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return ledger.PendingOperation{}, fmt.Errorf("failed to read queue position: %w", err)
	}

	op := ledger.PendingOperation{
		Seq:        seq,
		Action:     action,
		Payload:    payload.Clone(),
		EnqueuedAt: now,
	}
	s.logger.WithField("op", op.String()).Debug("operation queued")
	return op, nil
}

// PendingOperations returns every queued operation in replay order.
func (s *Store) PendingOperations(ctx context.Context) ([]ledger.PendingOperation, error) {
	conn, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `SELECT seq, action, payload, enqueued_at FROM queue ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// scanOperations is a helper function to scan queued operations.
func scanOperations(rows *sql.Rows) ([]ledger.PendingOperation, error) {
	var ops []ledger.PendingOperation

	for rows.Next() {
		var op ledger.PendingOperation
		var action, payload, enqueuedAt string

		if err := rows.Scan(&op.Seq, &action, &payload, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		a, err := ledger.ParseAction(action)
		if err != nil {
			return nil, fmt.Errorf("operation #%d: %w", op.Seq, err)
		}
		op.Action = a

		if err := json.Unmarshal([]byte(payload), &op.Payload); err != nil {
			return nil, fmt.Errorf("operation #%d: failed to unmarshal payload: %w", op.Seq, err)
		}

		if t, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
			op.EnqueuedAt = t
		}

		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue: %w", err)
	}

	return ops, nil
}

// QueueLength returns the number of pending operations.
func (s *Store) QueueLength(ctx context.Context) (int, error) {
	conn, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM queue").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return count, nil
}

// RemoveOperation deletes one queued operation. Removing an unknown
// sequence is a no-op.
func (s *Store) RemoveOperation(ctx context.Context, seq int64) error {
	conn, err := s.handle(ctx)
	if err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, `DELETE FROM queue WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("failed to remove operation #%d: %w", seq, err)
	}
	return nil
}

// DrainQueue replays every queued operation once, oldest first.
//
// Operations are replayed sequentially because later entries may depend on
// earlier ones (update after add). A successful replay removes that entry.
// A failed replay is logged, left in place, and the pass moves on to the
// next entry; it is not retried within the same pass.
//
// The pass is skipped entirely when net reports the device offline. The
// returned error is non-nil only when the queue itself cannot be read or
// ctx is cancelled mid-pass.
func (s *Store) DrainQueue(ctx context.Context, net Connectivity, replay ReplayFunc) (DrainResult, error) {
	var result DrainResult

	if net != nil && !net.Online() {
		result.Skipped = true
		result.Remaining, _ = s.QueueLength(ctx)
		return result, nil
	}

	ops, err := s.PendingOperations(ctx)
	if err != nil {
		return result, err
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			result.Remaining, _ = s.QueueLength(context.WithoutCancel(ctx))
			return result, err
		}

		result.Attempted++
		if err := replay(ctx, op); err != nil {
			result.Failed++
			s.logger.WithFields(logrus.Fields{
				"seq":    op.Seq,
				"action": op.Action,
				"error":  err.Error(),
			}).Warn("replay failed, keeping operation queued")
			continue
		}

		if err := s.RemoveOperation(ctx, op.Seq); err != nil {
			result.Failed++
			s.logger.WithError(err).WithField("seq", op.Seq).Error("replayed operation could not be removed")
			continue
		}
		result.Replayed++
	}

	result.Remaining, err = s.QueueLength(ctx)
	if err != nil {
		return result, err
	}

	if result.Attempted > 0 {
		s.logger.WithFields(logrus.Fields{
			"replayed":  result.Replayed,
			"failed":    result.Failed,
			"remaining": result.Remaining,
		}).Info("drain pass complete")
	}
	return result, nil
}
