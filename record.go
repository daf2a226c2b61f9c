// Fixed-width record format primitives.
//
// A record on disk is RecordWidth bytes: the payload, right-padded with
// spaces, followed by the two-byte CRLF terminator. In memory a record is
// the trimmed payload string. Trailing spaces in a payload are therefore
// indistinguishable from padding; that is part of the format contract,
// not a defect of the trim.
package fwsort

import "bytes"

// Terminator closing every on-disk record.
const (
	terminator      = "\r\n"
	terminatorWidth = len(terminator)
)

// minRecordWidth is the smallest width leaving room for a payload byte.
const minRecordWidth = terminatorWidth + 1

// recordPayload extracts the in-memory form of one on-disk record:
// terminator stripped, padding trimmed.
func recordPayload(record []byte) string {
	return string(bytes.TrimRight(record[:len(record)-terminatorWidth], " "))
}

// appendRecord appends the on-disk form of payload to dst: padded to
// width-terminatorWidth bytes, then terminated. Payloads longer than the
// padded width cannot occur for records parsed out of a fixed-width file.
func appendRecord(dst []byte, payload string, width int) []byte {
	dst = append(dst, payload...)
	for i := len(payload); i < width-terminatorWidth; i++ {
		dst = append(dst, ' ')
	}
	return append(dst, terminator...)
}

// terminated reports whether a width-sized chunk ends in the terminator.
func terminated(record []byte) bool {
	return len(record) >= terminatorWidth &&
		string(record[len(record)-terminatorWidth:]) == terminator
}

// parseWindow slices a window of validated input into payload strings.
// len(window) must be a multiple of width; validation guarantees this
// before segmenting starts.
func parseWindow(window []byte, width int) []string {
	payloads := make([]string, 0, len(window)/width)
	for off := 0; off < len(window); off += width {
		payloads = append(payloads, recordPayload(window[off:off+width]))
	}
	return payloads
}
