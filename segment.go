// Run generation: fixed-size windows of the input, sorted in memory and
// persisted as temporary runs.
//
// Runs are written fully sorted and never mutated afterwards, only read by
// the merge and then deleted. Each run is one buffered write: the sorted
// window is re-encoded into a single buffer so a crash mid-write leaves at
// worst one torn run, which the checksum catches.
package fwsort

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// run is the in-memory handle for one persisted temporary segment, passed
// from the segmenter to the merger.
type run struct {
	path     string
	records  int
	checksum string
}

// runPath derives the temporary file name for a segment index:
// <inputPathWithoutExt>-temp-<index><ext>, in the input's own directory.
// An extensionless input gets ".txt".
func runPath(inputPath string, index int) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	if ext == "" {
		ext = ".txt"
	}
	return fmt.Sprintf("%s-temp-%d%s", base, index, ext)
}

// segment streams the validated input in RecordsPerSegment-sized windows,
// sorting and persisting each as a run. The manifest is rewritten after
// every run so a crash at any point leaves an accurate orphan list. On
// error the runs created so far are returned alongside it so the caller
// can remove them.
func (s *Sorter) segment(job, inputPath string) ([]run, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	width := s.config.RecordWidth
	window := make([]byte, s.config.RecordsPerSegment*width)
	reader := bufio.NewReaderSize(f, 64*1024)

	var runs []run
	m := &manifest{
		Job:        job,
		Input:      inputPath,
		Algorithm:  s.config.ChecksumAlgorithm,
		Compressed: s.config.CompressRuns,
	}

	for index := 0; ; index++ {
		n, err := io.ReadFull(reader, window)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return runs, fmt.Errorf("read input: %w", err)
		}
		// Validation checked whole records, but the input can shrink
		// between validation and this read. Fail rather than fold stale
		// window bytes into a run.
		if rem := n % width; rem != 0 {
			return runs, fmt.Errorf("%w: input changed during sort, %d trailing bytes",
				ErrMalformedRecord, rem)
		}

		payloads := parseWindow(window[:n], width)
		slices.Sort(payloads)

		r, err := s.writeRun(inputPath, index, payloads, window[:0])
		if err != nil {
			return runs, err
		}
		runs = append(runs, r)

		m.Runs = append(m.Runs, runEntry{Path: r.path, Records: r.records, Checksum: r.checksum})
		if err := m.save(manifestPath(inputPath)); err != nil {
			return runs, err
		}
		s.log.Debugf("sort %s: run %d persisted, %d records", job, index, r.records)

		if n < len(window) {
			break // short final window, end of file reached
		}
	}

	return runs, nil
}

// writeRun persists one sorted window as a run file and returns its handle.
// The digest always covers the uncompressed record bytes, so plain and
// compressed runs of the same window carry the same checksum. A run that
// fails mid-write is removed before the error returns.
func (s *Sorter) writeRun(inputPath string, index int, payloads []string, scratch []byte) (run, error) {
	path := runPath(inputPath, index)
	f, err := os.Create(path)
	if err != nil {
		return run{}, fmt.Errorf("create run: %w", err)
	}

	var w io.Writer = f
	var zw *zstd.Encoder
	if s.config.CompressRuns {
		// SpeedFastest: runs are written once and read once, so encode
		// latency matters far more than ratio.
		zw, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			f.Close()
			os.Remove(path)
			return run{}, fmt.Errorf("create run: %w", err)
		}
		w = zw
	}

	buf := scratch
	for _, p := range payloads {
		buf = appendRecord(buf, p, s.config.RecordWidth)
	}

	digest := newDigest(s.config.ChecksumAlgorithm)
	digest.Write(buf)

	if _, err := w.Write(buf); err != nil {
		if zw != nil {
			zw.Close()
		}
		f.Close()
		os.Remove(path)
		return run{}, fmt.Errorf("write run: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			f.Close()
			os.Remove(path)
			return run{}, fmt.Errorf("write run: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return run{}, fmt.Errorf("close run: %w", err)
	}

	return run{path: path, records: len(payloads), checksum: digestString(digest)}, nil
}
