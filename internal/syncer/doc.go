// Package syncer provides the sync coordinator that keeps the local store and
// the remote API reconciled while connectivity comes and goes.
//
// # Overview
//
// Every public operation goes through the same decision:
//
//	caller ──► Coordinator ──► online? ──yes──► transport.Call ──ok──► drain queue
//	                              │                    │
//	                              no                 error ──► returned to caller
//	                              ▼
//	                     store.Enqueue (mutations only)
//
// Offline mutations are accepted into the durable queue and reported as
// successful to the caller. A server that is reachable but answers with an
// error is treated as a real failure: the mutation is NOT queued.
//
// FetchAll never fails. When the remote cannot be used it returns the cached
// snapshot, which may be stale or empty.
//
// # Usage
//
//	st := store.New("fintrack.db", logger)
//	defer st.Close()
//
//	coord, err := syncer.NewWithTransport(transport.Config{
//	    Endpoint:  "https://script.google.com/macros/s/.../exec",
//	    AuthToken: token,
//	}, st, netcheck.NewSwitch(true), syncer.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//
//	coord.OnBusyChange(func(busy bool) { spinner.Toggle(busy) })
//
//	rcpt, err := coord.AddTransaction(ctx, "-12.50", "coffee")
//	if err == nil && rcpt.Queued() {
//	    fmt.Printf("offline, %d pending\n", rcpt.Pending)
//	}
//
// # Drain passes
//
// A drain pass replays queued mutations oldest first. It runs after every
// successful call and on demand through Drain. Passes never overlap; a pass
// requested while another is running is skipped. Replayed operations are sent
// straight to the transport: they are never re-queued and never start a
// nested pass. Failed replays stay queued with no retry cap, so a
// permanently rejected operation is attempted again on every pass.
package syncer
