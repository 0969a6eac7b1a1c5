// Package quota implements the quota-warning store and its poller.
//
// The store holds at most one live warning per quota type: adding a warning
// for a type that already has one atomically replaces it, so consumers never
// see stale accumulation for the same resource. Warnings have no automatic
// expiry; they persist until dismissed or replaced by a fresher evaluation.
//
// The poller fetches usage from the subscription quota-status endpoint on a
// fixed interval (plus one immediate run on activation) and raises warnings
// at the 95%/85% thresholds. Fetch failures are invisible: the cycle is
// skipped and the next tick retries.
package quota
