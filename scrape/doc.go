// Package scrape contains the incremental scrape-and-dedupe core.
//
// It provides two pieces:
//   - Message identity and FilterNew: each rendered chat message gets a stable
//     identifier (timestamp + username + a normalized text prefix), and
//     FilterNew computes the not-yet-seen subset of a poll in document order.
//   - Loop: the fixed-interval poll → filter → append cycle. It drains a
//     Poller (the browser session), writes new messages to one or more Sinks
//     (session log, optional Postgres archive) and tracks them in an
//     in-memory seen set for the lifetime of the run.
//
// The loop is single-threaded: the only suspension points are the interval
// sleep and the poll itself. Stop is cooperative via context cancellation and
// is checked once per cycle, never mid-cycle.
package scrape
