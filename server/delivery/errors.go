package delivery

import (
	"github.com/pkg/errors"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/fetcher"
)

var (
	// ErrNoLinksFound is returned when a message carries no supported video link
	ErrNoLinksFound = errors.New("no supported video links found")

	// ErrExpiredOrUnknownSelection is returned when a selection refers to a pending
	// delivery that was already claimed, expired, or never existed
	ErrExpiredOrUnknownSelection = errors.New("selection expired or unknown")

	// ErrConfigurationMissing is returned at startup when a required setting or
	// credential is not available
	ErrConfigurationMissing = errors.New("required configuration is missing")
)

// FetchError reports a failed fetch for a single link
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	return "failed to fetch " + e.URL + ": " + e.Reason
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DeliveryError reports a failed final delivery of a fetched artifact
type DeliveryError struct {
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	return "delivery failed: " + e.Reason
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func newFetchError(url string, err error) *FetchError {
	reason := err.Error()
	var fe *fetcher.Error
	if errors.As(err, &fe) {
		reason = fe.Reason
	}
	return &FetchError{URL: url, Reason: reason, Err: err}
}
