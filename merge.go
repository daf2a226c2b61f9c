// K-way merge of sorted runs into the final output file.
//
// One cursor per run tracks the next unread position and the currently
// buffered payload. A min-heap over the cursors keyed by (payload, run
// index) selects the next output record; ties go to the lowest run index so
// output is deterministic. Cleanup is unconditional: every exit path closes
// all handles and deletes every run plus the manifest, and a failed merge
// additionally removes the partial output.
package fwsort

import (
	"bufio"
	"container/heap"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
)

// cursor reads one run sequentially during the merge. payload holds the
// buffered record until the heap consumes it; exhausted marks end of run.
type cursor struct {
	index      int
	path       string
	want       string // checksum recorded at run creation
	compressed bool

	file      *os.File
	zr        *zstd.Decoder
	r         *bufio.Reader
	digest    hash.Hash
	buf       []byte
	payload   string
	exhausted bool
}

// open prepares the cursor and buffers the run's first record.
func (c *cursor) open() error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}
	c.file = f
	if c.compressed {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("open run: %w", err)
		}
		c.zr = zr
		c.r = bufio.NewReader(zr)
	} else {
		c.r = bufio.NewReader(f)
	}
	return c.advance()
}

// advance buffers the next record, or marks the cursor exhausted at end of
// run, at which point the recomputed digest must match the recorded one.
func (c *cursor) advance() error {
	_, err := io.ReadFull(c.r, c.buf)
	if err == io.EOF {
		c.exhausted = true
		if got := digestString(c.digest); got != c.want {
			return fmt.Errorf("%w: %s: got %s, recorded %s",
				ErrChecksum, filepath.Base(c.path), got, c.want)
		}
		return nil
	}
	if err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %s: truncated record", ErrChecksum, filepath.Base(c.path))
	}
	if err != nil {
		return fmt.Errorf("read run %s: %w", filepath.Base(c.path), err)
	}
	c.digest.Write(c.buf)
	c.payload = recordPayload(c.buf)
	return nil
}

func (c *cursor) close() error {
	if c.zr != nil {
		c.zr.Close()
	}
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}

// mergeHeap orders cursors by buffered payload, breaking ties toward the
// lowest run index.
type mergeHeap []*cursor

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].payload != h[j].payload {
		return h[i].payload < h[j].payload
	}
	return h[i].index < h[j].index
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(*cursor)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// merge produces the sorted output file from the runs, then releases every
// temporary resource. The deferred cleanup runs on all paths: handles are
// closed first, then run files and the manifest are deleted; on failure the
// output file is removed too so a failed Sort never publishes partial data.
func (s *Sorter) merge(job, inputPath, outputPath string, runs []run) (err error) {
	width := s.config.RecordWidth
	cursors := make([]*cursor, len(runs))
	for i, r := range runs {
		cursors[i] = &cursor{
			index:      i,
			path:       r.path,
			want:       r.checksum,
			compressed: s.config.CompressRuns,
			digest:     newDigest(s.config.ChecksumAlgorithm),
			buf:        make([]byte, width),
		}
	}

	var out *os.File
	defer func() {
		var cerr error
		for _, c := range cursors {
			cerr = multierr.Append(cerr, c.close())
		}
		if out != nil {
			cerr = multierr.Append(cerr, out.Close())
		}
		cerr = multierr.Append(cerr, removeTemps(inputPath, runs))
		if err != nil && out != nil {
			if rmErr := os.Remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) {
				cerr = multierr.Append(cerr, rmErr)
			}
		}
		err = multierr.Append(err, cerr)
	}()

	out, err = os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	// Runs are independent handles; open and prime them concurrently.
	var wg sync.WaitGroup
	openErrs := make([]error, len(cursors))
	for i, c := range cursors {
		wg.Add(1)
		go func(i int, c *cursor) {
			defer wg.Done()
			openErrs[i] = c.open()
		}(i, c)
	}
	wg.Wait()
	if err := multierr.Combine(openErrs...); err != nil {
		return err
	}

	h := make(mergeHeap, 0, len(cursors))
	for _, c := range cursors {
		if !c.exhausted {
			h = append(h, c)
		}
	}
	heap.Init(&h)

	w := bufio.NewWriter(out)
	rec := make([]byte, 0, width)
	written := 0
	for h.Len() > 0 {
		c := h[0]
		rec = appendRecord(rec[:0], c.payload, width)
		if _, werr := w.Write(rec); werr != nil {
			return fmt.Errorf("write output: %w", werr)
		}
		written++
		if aerr := c.advance(); aerr != nil {
			return aerr
		}
		if c.exhausted {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}

	if ferr := w.Flush(); ferr != nil {
		return fmt.Errorf("write output: %w", ferr)
	}
	s.log.Debugf("sort %s: merged %d records from %d runs", job, written, len(runs))
	return nil
}

// removeTemps deletes the run files and the manifest sidecar, tolerating
// files already gone.
func removeTemps(inputPath string, runs []run) error {
	var err error
	for _, r := range runs {
		if rmErr := os.Remove(r.path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, rmErr)
		}
	}
	if rmErr := os.Remove(manifestPath(inputPath)); rmErr != nil && !os.IsNotExist(rmErr) {
		err = multierr.Append(err, rmErr)
	}
	return err
}
