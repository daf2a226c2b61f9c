// Core sorter type and lifecycle operations.
//
// A Sorter carries nothing but its immutable configuration; all mutable
// state of a sort (handles, cursors, counters) is local to one invocation.
// Concurrent Sort calls on the same Sorter are safe as long as they target
// different input files: temporary names derive from the input's own base
// name, so distinct inputs never collide.
package fwsort

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Config holds sorter configuration options.
type Config struct {
	MaxFileSize       int64 // Input size ceiling in bytes (default 1GB)
	RecordsPerSegment int   // Records sorted in memory per run (default 1024)
	RecordWidth       int   // Record bytes incl. 2-byte terminator (default 32)
	ChecksumAlgorithm int   // 1=xxHash3, 2=FNV1a, 3=Blake2b
	CompressRuns      bool  // Zstd-compress temporary runs
	Logger            *zap.SugaredLogger
}

// Sorter performs external merge sorts of fixed-width record files.
type Sorter struct {
	config Config
	log    *zap.SugaredLogger
}

// New validates the configuration, fills in defaults, and returns a Sorter.
func New(config Config) (*Sorter, error) {
	// Default config values
	if config.MaxFileSize == 0 {
		config.MaxFileSize = 1 << 30
	}
	if config.RecordsPerSegment == 0 {
		config.RecordsPerSegment = 1024
	}
	if config.RecordWidth == 0 {
		config.RecordWidth = 32
	}
	if config.ChecksumAlgorithm == 0 {
		config.ChecksumAlgorithm = AlgXXHash3
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	if config.MaxFileSize < 0 {
		return nil, fmt.Errorf("%w: MaxFileSize %d", ErrConfig, config.MaxFileSize)
	}
	if config.RecordsPerSegment < 0 {
		return nil, fmt.Errorf("%w: RecordsPerSegment %d", ErrConfig, config.RecordsPerSegment)
	}
	if config.RecordWidth < minRecordWidth {
		return nil, fmt.Errorf("%w: RecordWidth %d, minimum %d",
			ErrConfig, config.RecordWidth, minRecordWidth)
	}
	if newDigest(config.ChecksumAlgorithm) == nil {
		return nil, fmt.Errorf("%w: checksum algorithm %d", ErrConfig, config.ChecksumAlgorithm)
	}

	return &Sorter{config: config, log: config.Logger}, nil
}

// Sort reads the fixed-width record file at inputPath and writes all of its
// records in ascending lexicographic order to outputPath. The input is
// validated first, then segmented into sorted temporary runs beside it, then
// k-way merged. Temporary files never survive the call: the merge deletes
// them on success and failure alike, and a failure during run generation
// removes the runs created so far. A failed Sort leaves no output file.
func (s *Sorter) Sort(inputPath, outputPath string) error {
	job := uuid.New().String()
	s.log.Infof("sort %s: %s -> %s", job, inputPath, outputPath)

	if err := s.validate(inputPath, outputPath); err != nil {
		return err
	}

	runs, err := s.segment(job, inputPath)
	if err != nil {
		return multierr.Append(err, removeTemps(inputPath, runs))
	}
	s.log.Infof("sort %s: %d runs generated", job, len(runs))

	if err := s.merge(job, inputPath, outputPath, runs); err != nil {
		return err
	}
	s.log.Infof("sort %s: complete", job)
	return nil
}

// Sweep removes temporary files orphaned by a sort of inputPath that died
// before cleanup ran, using the manifest sidecar left behind. It is a no-op
// when no manifest exists. Never call it while a sort of the same input is
// in flight.
func (s *Sorter) Sweep(inputPath string) error {
	path := manifestPath(inputPath)
	m, err := loadManifest(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var errs error
	for _, r := range m.Runs {
		if rmErr := os.Remove(r.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			errs = multierr.Append(errs, rmErr)
		}
	}
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		errs = multierr.Append(errs, rmErr)
	}
	s.log.Infof("sweep: removed %d orphaned runs for %s (job %s)", len(m.Runs), inputPath, m.Job)
	return errs
}
