// Package audit produces tamper-evident records of pipeline decisions.
//
// A record binds a label to the canonical hash of a payload and an
// HMAC-SHA256 signature over that hash:
//
//	{"label": "axiom_pipeline", "hash": "<sha256 hex>", "signature": "<hmac hex>"}
//
// Records are written one file per record under a log directory, named
// {label}_{hash[:12]}.json. Writes go through a temp file and rename, so a
// reader sees either the complete record or no file at all. Logging the
// same label and payload twice overwrites the same file with identical
// bytes.
//
// Persistence is best-effort. Logger.SignAndLog returns the signed record
// even when the disk (or the optional mirror) is unavailable; the outcome
// is reported through Entry.Persisted and Entry.Mirrored rather than as an
// error. Only failures to produce the record itself (unserializable payload,
// invalid label) are returned as errors.
//
// The secret key is injected at construction. There is no package-level
// key.
package audit
