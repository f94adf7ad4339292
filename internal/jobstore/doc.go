// Package jobstore persists generation job records in SQLite.
//
// Each Job carries its overall status, progress, current step label, the
// ordered step snapshot, a free-form metadata map, and any unknown fields a
// client supplied. Upsert merges a Patch onto an existing record inside a
// single transaction, or inserts a new record that lists ahead of older ones.
// Writers within the process are serialized, so a compound read-modify-write
// never interleaves with another writer.
//
// Open runs the embedded migrations and quarantines an unreadable database
// file so the daemon can start with an empty collection instead of failing.
package jobstore
