package delivery

import (
	"net/url"
	"path/filepath"
	"strings"
)

// LinkBuilder turns artifact paths into download links
type LinkBuilder struct {
	base string
}

// NewLinkBuilder creates a link builder for the given public base URL. An empty base
// makes every link a local file URL.
func NewLinkBuilder(base string) *LinkBuilder {
	return &LinkBuilder{base: strings.TrimRight(strings.TrimSpace(base), "/")}
}

// Degraded reports whether links point at the local filesystem
func (b *LinkBuilder) Degraded() bool {
	return b.base == ""
}

// For returns the download link of an artifact
func (b *LinkBuilder) For(artifactPath string) string {
	if b.Degraded() {
		abs, err := filepath.Abs(artifactPath)
		if err != nil {
			abs = artifactPath
		}
		return "file://" + filepath.ToSlash(abs)
	}
	return b.base + "/" + url.PathEscape(filepath.Base(artifactPath))
}
