// Package response renders per-link download outcomes as a JSON batch reply.
package response

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Entry is the outcome of a single input link. Field order is the serialized key order.
type Entry struct {
	Status       string  `json:"status"`
	InputLink    string  `json:"input_link"`
	Type         *string `json:"type"`
	VideoFile    *string `json:"video_file"`
	DownloadLink *string `json:"download_link"`
	Error        *string `json:"error"`
}

// Success builds a successful entry. Exactly one of videoFile and downloadLink is expected
// to be non-empty; the empty one serializes as null.
func Success(input, deliveryType, videoFile, downloadLink string) Entry {
	return Entry{
		Status:       StatusSuccess,
		InputLink:    input,
		Type:         optional(deliveryType),
		VideoFile:    optional(videoFile),
		DownloadLink: optional(downloadLink),
	}
}

// Failure builds an error entry with every delivery field null
func Failure(input, message string) Entry {
	return Entry{
		Status:    StatusError,
		InputLink: input,
		Error:     &message,
	}
}

// IsSuccess reports whether the entry records a successful delivery
func (e Entry) IsSuccess() bool {
	return e.Status == StatusSuccess
}

// Format serializes entries as an indented JSON array in the given order.
// Non-ASCII and HTML characters are written literally.
func Format(entries []Entry) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return "", errors.Wrap(err, "failed to encode response entries")
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Summary counts successful and failed entries
func Summary(entries []Entry) (succeeded, failed int) {
	for _, e := range entries {
		if e.IsSuccess() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
