// Run manifest sidecar.
//
// While temporary runs exist on disk, a JSON manifest beside the input file
// records every run created so far with its record count and checksum. The
// manifest is rewritten after each run is persisted and removed together
// with the runs during cleanup, so its presence after a Sort call means the
// process died mid-sort. Sweep uses it to remove the orphans.
package fwsort

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// runEntry describes one persisted run in the manifest.
type runEntry struct {
	Path     string `json:"path"`
	Records  int    `json:"records"`
	Checksum string `json:"sum"`
}

// manifest is the sidecar tracking all temporary state of one sort.
type manifest struct {
	Job        string     `json:"job"`
	Input      string     `json:"input"`
	Algorithm  int        `json:"alg"`
	Compressed bool       `json:"zstd"`
	Runs       []runEntry `json:"runs"`
}

// manifestPath derives the sidecar path from the input path, using the same
// base-name scheme as the runs so that cleanup sweeps match both.
func manifestPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + "-temp-manifest.json"
}

func (m *manifest) save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// loadManifest reads a sidecar. A missing file surfaces as os.ErrNotExist;
// undecodable content as ErrManifestCorrupt.
func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrManifestCorrupt, path)
	}
	return &m, nil
}
