// Package canon provides canonical JSON serialization and content hashing.
//
// Every hash in axiom (state inputs, task payloads, audit records, run
// identifiers) is computed over the output of Marshal. canon imports nothing
// internal, so every other package can depend on it.
//
// Encoding rules (RFC 8785 style):
//   - Object keys sorted by UTF-16 code units
//   - No insignificant whitespace, no HTML escaping
//   - Strings NFC normalized at the serialization boundary
//   - Integers in decimal, floats in ECMAScript shortest round-trip form
//   - NaN, Inf and unsupported Go types fail with *SerializationError
package canon
