package fwsort

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// segmentForMerge is a fixture producing real runs for merge tests.
func segmentForMerge(t *testing.T, s *Sorter, input string, payloads []string) []run {
	t.Helper()
	writeInput(t, input, payloads, s.config.RecordWidth)
	runs, err := s.segment("test-job", input)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	return runs
}

func TestMergeProducesSortedOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "names.txt")
	output := filepath.Join(dir, "sorted.txt")
	s := newTestSorter(t, Config{RecordWidth: 7, RecordsPerSegment: 2})
	runs := segmentForMerge(t, s, input, []string{"charl", "alice", "danie", "brian"})

	if err := s.merge("test-job", input, output, runs); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got := readPayloads(t, output, 7)
	want := []string{"alice", "brian", "charl", "danie"}
	if !slices.Equal(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
	if temps := tempFiles(t, input); len(temps) != 0 {
		t.Errorf("temp files remain: %v", temps)
	}
}

func TestMergeInterleavedRuns(t *testing.T) {
	// Runs whose ranges overlap force the heap to alternate sources.
	dir := t.TempDir()
	input := filepath.Join(dir, "names.txt")
	output := filepath.Join(dir, "sorted.txt")
	s := newTestSorter(t, Config{RecordWidth: 7, RecordsPerSegment: 3})
	runs := segmentForMerge(t, s, input,
		[]string{"ant", "fox", "owl", "bee", "cat", "yak"})

	if err := s.merge("test-job", input, output, runs); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got := readPayloads(t, output, 7)
	want := []string{"ant", "bee", "cat", "fox", "owl", "yak"}
	if !slices.Equal(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
}

func TestMergeEqualRecordsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "ties.txt")
	output := filepath.Join(dir, "sorted.txt")
	s := newTestSorter(t, Config{RecordWidth: 7, RecordsPerSegment: 2})
	runs := segmentForMerge(t, s, input, []string{"apple", "zebra", "apple", "mango"})

	if err := s.merge("test-job", input, output, runs); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got := readPayloads(t, output, 7)
	want := []string{"apple", "apple", "mango", "zebra"}
	if !slices.Equal(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
}

func TestMergeZeroRuns(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "empty.txt")
	output := filepath.Join(dir, "sorted.txt")
	s := newTestSorter(t, Config{RecordWidth: 7, RecordsPerSegment: 2})

	if err := s.merge("test-job", input, output, nil); err != nil {
		t.Fatalf("merge: %v", err)
	}
	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("output size = %d, want 0", info.Size())
	}
}

func TestMergeChecksumFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "names.txt")
	output := filepath.Join(dir, "sorted.txt")
	s := newTestSorter(t, Config{RecordWidth: 7, RecordsPerSegment: 2})
	runs := segmentForMerge(t, s, input, []string{"charl", "alice", "danie", "brian"})

	// Corrupt one payload byte in the first run after its checksum was
	// recorded.
	data, err := os.ReadFile(runs[0].path)
	if err != nil {
		t.Fatalf("read run: %v", err)
	}
	data[0] ^= 0x01
	if err := os.WriteFile(runs[0].path, data, 0644); err != nil {
		t.Fatalf("rewrite run: %v", err)
	}

	err = s.merge("test-job", input, output, runs)
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("merge = %v, want ErrChecksum", err)
	}

	// Cleanup is unconditional: no temps, no partial output.
	if temps := tempFiles(t, input); len(temps) != 0 {
		t.Errorf("temp files remain after failed merge: %v", temps)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("partial output survives a failed merge")
	}
}

func TestMergeTruncatedRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "names.txt")
	output := filepath.Join(dir, "sorted.txt")
	s := newTestSorter(t, Config{RecordWidth: 7, RecordsPerSegment: 2})
	runs := segmentForMerge(t, s, input, []string{"charl", "alice", "danie", "brian"})

	if err := os.Truncate(runs[1].path, 10); err != nil {
		t.Fatalf("truncate run: %v", err)
	}

	err := s.merge("test-job", input, output, runs)
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("merge = %v, want ErrChecksum", err)
	}
	if temps := tempFiles(t, input); len(temps) != 0 {
		t.Errorf("temp files remain after failed merge: %v", temps)
	}
}

func TestMergeMissingRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "names.txt")
	output := filepath.Join(dir, "sorted.txt")
	s := newTestSorter(t, Config{RecordWidth: 7, RecordsPerSegment: 2})
	runs := segmentForMerge(t, s, input, []string{"charl", "alice", "danie", "brian"})

	if err := os.Remove(runs[0].path); err != nil {
		t.Fatalf("remove run: %v", err)
	}

	if err := s.merge("test-job", input, output, runs); err == nil {
		t.Fatal("merge succeeded with a missing run")
	}
	if temps := tempFiles(t, input); len(temps) != 0 {
		t.Errorf("temp files remain after failed merge: %v", temps)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("partial output survives a failed merge")
	}
}

func TestMergeManyRuns(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "wide.txt")
	output := filepath.Join(dir, "sorted.txt")
	s := newTestSorter(t, Config{RecordWidth: 7, RecordsPerSegment: 2})

	payloads := randomPayloads(32) // 16 runs of 2
	runs := segmentForMerge(t, s, input, payloads)
	if len(runs) != 16 {
		t.Fatalf("runs = %d, want 16", len(runs))
	}

	if err := s.merge("test-job", input, output, runs); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got := readPayloads(t, output, 7)
	want := slices.Clone(payloads)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("merged output is not the sorted input")
	}
}
