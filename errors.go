// Package fwsort provides external merge sorting for text files built from
// fixed-width, newline-terminated records. Files too large to sort in memory
// are partitioned into bounded windows, each window is sorted in memory and
// persisted as a temporary run, and a k-way merge of the runs produces the
// final totally-ordered output file.
//
// Every record occupies exactly RecordWidth bytes on disk: a space-padded
// character payload followed by a two-byte CRLF terminator. Temporary runs
// live beside the input file, are tracked in a JSON manifest sidecar, and
// are deleted unconditionally once the merge finishes, on failure as well
// as success. A checksum recorded per run at creation is re-verified as the
// merge drains it, so silent corruption of a run between the two phases is
// detected rather than folded into the output.
package fwsort

import "errors"

// Sentinel errors for programmatic handling. Callers use errors.Is to
// distinguish precondition failures (ErrInputNotFound through
// ErrOutputDirMissing, raised before any temporary file exists) from
// corruption detected mid-merge (ErrChecksum, ErrManifestCorrupt). Anything
// else surfaced by Sort is a wrapped lower-level I/O failure.
var (
	ErrConfig            = errors.New("invalid configuration")
	ErrInputNotFound     = errors.New("input file not accessible")
	ErrFileTooLarge      = errors.New("input file exceeds size limit")
	ErrMalformedRecord   = errors.New("record width mismatch")
	ErrCountNotDivisible = errors.New("record count not divisible by segment size")
	ErrOutputDirMissing  = errors.New("output directory not accessible")
	ErrChecksum          = errors.New("run checksum mismatch")
	ErrManifestCorrupt   = errors.New("corrupt run manifest")
)
