// Package dedup fingerprints image bytes and tracks which fingerprints a run
// has already accepted. Only byte-identical images are considered duplicates.
package dedup
