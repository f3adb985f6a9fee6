package fetcher

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// PruneArtifacts removes regular files in dir last modified before cutoff, except the
// names in keep. It returns the removed paths. Removal failures do not stop the sweep;
// the first one is returned alongside the paths that were removed.
func PruneArtifacts(dir string, cutoff time.Time, keep map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read download directory")
	}

	var removed []string
	var firstErr error
	for _, entry := range entries {
		if !entry.Type().IsRegular() || keep[entry.Name()] {
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := RemoveArtifact(path); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed = append(removed, path)
	}

	return removed, firstErr
}
