// Input and output precondition checks.
//
// Validation runs before any temporary file exists, so a failure here has
// no cleanup obligations. The whole input is read once to count records and
// check widths, the price of the zero-copy window parsing the segmenter
// relies on afterwards.
package fwsort

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// validate checks the five structural preconditions in order, returning the
// first failure: input exists, input within size limit, every record exactly
// RecordWidth bytes with a trailing terminator, record count divisible by
// RecordsPerSegment, output directory present.
func (s *Sorter) validate(inputPath, outputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
	}

	if info.Size() > s.config.MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d",
			ErrFileTooLarge, inputPath, info.Size(), s.config.MaxFileSize)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64*1024)
	buf := make([]byte, s.config.RecordWidth)
	count := 0
	for {
		_, err := io.ReadFull(reader, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: record %d is short of %d bytes",
				ErrMalformedRecord, count, s.config.RecordWidth)
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if !terminated(buf) {
			return fmt.Errorf("%w: record %d does not end in %q",
				ErrMalformedRecord, count, terminator)
		}
		count++
	}

	if count%s.config.RecordsPerSegment != 0 {
		return fmt.Errorf("%w: %d records, segment size %d",
			ErrCountNotDivisible, count, s.config.RecordsPerSegment)
	}

	dir := filepath.Dir(outputPath)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrOutputDirMissing, dir)
	}

	return nil
}
