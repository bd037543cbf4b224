// Package daemon runs fintrack unattended.
//
// The daemon watches an inbox directory for quick-add files and submits each
// one through the sync coordinator:
//
//	inbox/
//	├── 2026-03-01-coffee.json   {"amount": "4.50", "note": "coffee", "type": "expense"}
//	└── rejected/                files that can never be delivered
//
// A file is removed once its add is delivered or queued. Files that fail to
// parse, fail validation or are refused by the remote move to rejected/.
// Anything else stays in the inbox and is retried on the next refresh.
//
// On a cron schedule (default "@every 5m") the daemon fetches the full list,
// which refreshes the snapshot and drains the offline queue.
package daemon
