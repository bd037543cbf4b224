// Package ledger defines the data model shared by every fintrack component.
//
// # Transactions
//
// A Transaction is a single income or expense record. Amounts are signed
// decimals: positive values are income, negative values are expenses. The id
// is generated on the device that created the record and never changes.
//
//	{
//	  "id": "0b7f7c1e-5d0a-4c7e-9a53-5f1f0b0f6d1a",
//	  "date": "2026-03-14T09:26:53.589Z",
//	  "amount": -12.5,
//	  "note": "coffee"
//	}
//
// # Pending operations
//
// A PendingOperation is a mutation (add, update, delete) that could not be
// delivered because the device was offline. Operations are replayed in the
// order they were queued.
//
// # Errors
//
// Failures are classified with the sentinel errors in errors.go and can be
// inspected with errors.Is:
//
//	if errors.Is(err, ledger.ErrValidation) {
//	    // caller supplied bad input, nothing was sent or queued
//	}
package ledger
