// Package fetcher downloads the media behind a video page URL to local disk.
package fetcher

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks github.com/fmartingr/mattermost-plugin-video-downloader/server/fetcher Fetcher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Artifact is a media file fetched to local disk
type Artifact struct {
	Path            string
	Title           string
	DurationSeconds float64
}

// Filename returns the base name of the artifact on disk
func (a *Artifact) Filename() string {
	return filepath.Base(a.Path)
}

// Fetcher retrieves the media referenced by a page URL.
// Implementations return a *Error when the media could not be fetched.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Artifact, error)
}

// Error describes why a fetch failed, in words fit for the end user
type Error struct {
	URL    string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RemoveArtifact deletes an artifact from disk. A missing file is not an error.
func RemoveArtifact(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove artifact %s", path)
	}
	return nil
}
