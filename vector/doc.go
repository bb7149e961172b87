// Package vector normalizes stored embedding values into fixed-width float32 slices.
//
// A stored value arrives in one of three physical encodings, captured by Raw:
//
//   - KindText: a JSON numeric array ("[0.1, 0.2]"), which is also how pgvector
//     renders VECTOR columns, or a Postgres array literal ("{0.1,0.2}")
//   - KindPacked: little-endian IEEE-754 float32 values, the sqlite-vec FLOAT32_BLOB layout
//   - KindSequence: an already structured slice of numbers
//
// The encoding is resolved once, when the value is classified, and Decode then
// enforces the configured dimension. Values of any other Go type are rejected
// rather than coerced.
package vector
