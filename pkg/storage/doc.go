// Package storage plans output paths and writes images to disk.
//
// Output layout:
//
//	<root>/<host>/<thread path segments...>/p<page>_<hash8>.<ext>
//
// Files are written to a temp file in the target directory, synced and then
// renamed, so a crash or cancellation never leaves a truncated file under a
// final name. Directory creation and writes get one retry on transient
// errors. An output root that cannot be written is reported as a fatal error
// by NewManager before any download starts.
package storage
