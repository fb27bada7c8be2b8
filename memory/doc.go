// Package memory provides the append-only transcript stores that a guarded
// session writes through.
//
// Persistence model:
//   - One transcript per session; entries are appended, never rewritten.
//   - JSONLLog: one transcript.Encode line per entry (<session>.jsonl).
//   - SQLiteLog: one row per entry in an entries table (<session>.db).
//   - Receipts carry a 1-based sequence number.
//
// Neither store is safe for concurrent writers.
package memory
