package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/ledger"
)

// ReplaceSnapshot clears the snapshot and stores txs in its place.
//
// Records without an id are skipped. If nothing is left to store the call
// is a no-op so a failed, empty or unusable fetch never overwrites good
// cached data. A duplicate id keeps the last record.
func (s *Store) ReplaceSnapshot(ctx context.Context, txs []ledger.Transaction) error {
	keep := make([]ledger.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.ID == "" {
			s.logger.Warn("skipping snapshot record without id")
			continue
		}
		keep = append(keep, t)
	}
	if len(keep) == 0 {
		return nil
	}

	conn, err := s.handle(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot"); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO snapshot (id, date, amount, note)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		date = excluded.date,
		amount = excluded.amount,
		note = excluded.note
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range keep {
		if _, err := stmt.ExecContext(ctx, t.ID, ledger.FormatDate(t.Date), t.Amount.String(), t.Note); err != nil {
			return fmt.Errorf("failed to store transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.logger.WithField("count", len(keep)).Debug("snapshot replaced")
	return nil
}

// ReadSnapshot returns every cached transaction ordered by date. It never
// fails: an unavailable or unreadable store yields an empty list.
func (s *Store) ReadSnapshot(ctx context.Context) []ledger.Transaction {
	txs, err := s.readSnapshot(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("snapshot unavailable, returning empty list")
		return []ledger.Transaction{}
	}
	return txs
}

func (s *Store) readSnapshot(ctx context.Context) ([]ledger.Transaction, error) {
	conn, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `SELECT id, date, amount, note FROM snapshot ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	txs := []ledger.Transaction{}
	for rows.Next() {
		var t ledger.Transaction
		var date, amount string

		if err := rows.Scan(&t.ID, &date, &amount, &t.Note); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if d, err := time.Parse(ledger.DateLayout, date); err == nil {
			t.Date = d
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount of %s: %w", t.ID, err)
		}

		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot: %w", err)
	}

	return txs, nil
}

// SnapshotCount returns the number of cached transactions.
func (s *Store) SnapshotCount(ctx context.Context) (int, error) {
	conn, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshot").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshot: %w", err)
	}
	return count, nil
}
