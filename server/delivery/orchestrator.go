// Package delivery runs the message-to-reply pipeline: link extraction, fetching, and
// delivery of the fetched videos through a Conversation.
package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/extractor"
	"github.com/fmartingr/mattermost-plugin-video-downloader/server/fetcher"
	"github.com/fmartingr/mattermost-plugin-video-downloader/server/preference"
)

const (
	DefaultMaxParallel   = 2
	MaxParallelLimit     = 10
	DefaultUploadTimeout = 2 * time.Minute
)

// Options configures an Orchestrator
type Options struct {
	Fetcher  fetcher.Fetcher
	Strategy Strategy
	Store    PendingStore
	Links    *LinkBuilder
	Logger   Logger

	MaxParallel   int
	UploadTimeout time.Duration
}

// Orchestrator turns inbound messages into fetches and replies
type Orchestrator struct {
	extractor     *extractor.Extractor
	fetcher       fetcher.Fetcher
	strategy      Strategy
	store         PendingStore
	links         *LinkBuilder
	logger        Logger
	maxParallel   int
	uploadTimeout time.Duration
	now           func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil Strategy selects the deferred (buttons)
// strategy, a nil Store an in-memory store, and a nil Links builder local file links.
func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		extractor:     extractor.New(),
		fetcher:       opts.Fetcher,
		strategy:      opts.Strategy,
		store:         opts.Store,
		links:         opts.Links,
		logger:        opts.Logger,
		maxParallel:   ClampParallel(opts.MaxParallel),
		uploadTimeout: opts.UploadTimeout,
		now:           time.Now,
	}

	if o.strategy == nil {
		o.strategy = DeferredStrategy{}
	}
	if o.store == nil {
		o.store = NewMemoryStore(DefaultPendingTTL)
	}
	if o.links == nil {
		o.links = NewLinkBuilder("")
	}
	if o.logger == nil {
		o.logger = nopLogger{}
	}
	if o.uploadTimeout <= 0 {
		o.uploadTimeout = DefaultUploadTimeout
	}

	return o
}

// ClampParallel bounds the number of concurrent fetches to 1..MaxParallelLimit
func ClampParallel(n int) int {
	if n <= 0 {
		return DefaultMaxParallel
	}
	if n > MaxParallelLimit {
		return MaxParallelLimit
	}
	return n
}

// Mode returns the active delivery mode
func (o *Orchestrator) Mode() string {
	return o.strategy.Mode()
}

// PendingCount returns the number of deliveries awaiting a selection
func (o *Orchestrator) PendingCount() (int, error) {
	return o.store.Len()
}

// FetchResult is the outcome of fetching one link
type FetchResult struct {
	Link     extractor.Link
	Artifact *fetcher.Artifact
	Err      *FetchError
}

// Request is a single inbound message being processed
type Request struct {
	ID           string
	Text         string
	Conversation Conversation
	Results      []FetchResult

	o          *Orchestrator
	warnedOnce sync.Once
}

// Outcome counts the per-link results of a request
type Outcome struct {
	Succeeded int
	Failed    int
}

// HandleMessage processes an inbound message: every supported link is fetched and
// delivered according to the active strategy. A failing link never aborts its siblings.
func (o *Orchestrator) HandleMessage(ctx context.Context, conv Conversation, text string) error {
	if IsHelpRequest(text) {
		if _, err := conv.SendText(ctx, HelpMessage(o.Mode())); err != nil {
			return errors.Wrap(err, "failed to send help message")
		}
		return nil
	}

	req := &Request{
		ID:           uuid.NewString(),
		Text:         text,
		Conversation: conv,
		o:            o,
	}

	links := o.extractor.Extract(text)
	if len(links) == 0 {
		o.logger.LogDebug("No supported links in message", "request_id", req.ID)
		if _, err := conv.SendText(ctx, MessageNoLinks); err != nil {
			o.logger.LogError("Failed to send reply", "request_id", req.ID, "error", err.Error())
		}
		return ErrNoLinksFound
	}

	o.logger.LogInfo("Processing video links", "request_id", req.ID, "count", len(links), "mode", o.Mode())

	progressID, err := conv.SendText(ctx, processingMessage(len(links)))
	if err != nil {
		o.logger.LogWarn("Failed to send progress message", "request_id", req.ID, "error", err.Error())
	}

	req.Results = o.fetchAll(ctx, req.ID, links)

	outcome, err := o.strategy.Deliver(ctx, req)
	if err != nil {
		return errors.Wrap(err, "failed to deliver results")
	}

	o.logger.LogInfo("Finished processing video links", "request_id", req.ID, "succeeded", outcome.Succeeded, "failed", outcome.Failed)

	if progressID != "" {
		if err := conv.EditMessage(ctx, progressID, finishedMessage(outcome.Succeeded, len(links))); err != nil {
			o.logger.LogWarn("Failed to update progress message", "request_id", req.ID, "error", err.Error())
		}
	}

	return nil
}

// fetchAll fetches every link on a bounded pool. Results keep the input order. Links that
// point at the same media are fetched once and share the result, so two downloads never
// write the same artifact at the same time.
func (o *Orchestrator) fetchAll(ctx context.Context, requestID string, links []extractor.Link) []FetchResult {
	results := make([]FetchResult, len(links))

	groups := make(map[string][]int)
	var keys []string
	for i, link := range links {
		results[i].Link = link
		key := link.MediaKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], i)
	}

	var g errgroup.Group
	g.SetLimit(o.maxParallel)
	for _, key := range keys {
		indexes := groups[key]
		link := links[indexes[0]]
		g.Go(func() error {
			o.logger.LogDebug("Fetching video", "request_id", requestID, "url", link.URL, "platform", link.Platform.String())

			artifact, err := o.fetcher.Fetch(ctx, link.URL)
			if err != nil {
				o.logger.LogWarn("Failed to fetch video", "request_id", requestID, "url", link.URL, "error", err.Error())
				for _, i := range indexes {
					results[i].Err = newFetchError(links[i].URL, err)
				}
				return nil
			}

			o.logger.LogInfo("Fetched video", "request_id", requestID, "url", link.URL, "file", artifact.Filename(), "links", len(indexes))
			for _, i := range indexes {
				results[i].Artifact = artifact
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// HandleSelection completes a pending delivery after the user pressed a prompt button.
// The pending record is consumed whether the delivery succeeds or not.
func (o *Orchestrator) HandleSelection(ctx context.Context, conv Conversation, sel Selection) error {
	if err := conv.AcknowledgeAction(ctx, sel.ActionID); err != nil {
		o.logger.LogWarn("Failed to acknowledge action", "action_id", sel.ActionID, "error", err.Error())
	}

	if !sel.Kind.Valid() {
		return ErrExpiredOrUnknownSelection
	}

	pending, err := o.store.Take(sel.Identifier)
	if err != nil {
		return errors.Wrap(err, "failed to load pending delivery")
	}
	if pending == nil {
		o.logger.LogInfo("Selection for unknown or expired delivery", "identifier", sel.Identifier)
		o.edit(ctx, conv, sel.PromptID, MessageExpired)
		return ErrExpiredOrUnknownSelection
	}

	switch sel.Kind {
	case preference.Link:
		o.edit(ctx, conv, sel.PromptID, linkMessage(pending.Title, pending.Link))
		o.logger.LogInfo("Delivered download link", "identifier", sel.Identifier, "url", pending.SourceURL)
		return nil

	default:
		o.edit(ctx, conv, sel.PromptID, MessageUploading)

		if _, err := o.upload(ctx, conv, pending.ArtifactPath, pending.Title); err != nil {
			o.logger.LogError("Failed to upload video", "identifier", sel.Identifier, "error", err.Error())
			o.edit(ctx, conv, sel.PromptID, uploadFailedMessage(err.Error()))
			return &DeliveryError{Reason: err.Error(), Err: err}
		}

		o.edit(ctx, conv, sel.PromptID, uploadedMessage(pending.Title))
		o.removeArtifact(pending.ArtifactPath)
		o.logger.LogInfo("Delivered video file", "identifier", sel.Identifier, "url", pending.SourceURL)
		return nil
	}
}

// Sweep drops expired pending deliveries and removes their artifacts
func (o *Orchestrator) Sweep(now time.Time) (int, error) {
	expired, err := o.store.Sweep(now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sweep pending deliveries")
	}
	for _, pending := range expired {
		o.removeArtifact(pending.ArtifactPath)
	}
	return len(expired), nil
}

func (o *Orchestrator) upload(ctx context.Context, conv Conversation, path, title string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.uploadTimeout)
	defer cancel()

	ref, err := conv.SendFile(ctx, path, caption(title))
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (o *Orchestrator) edit(ctx context.Context, conv Conversation, messageID, text string) {
	if messageID == "" {
		return
	}
	if err := conv.EditMessage(ctx, messageID, text); err != nil {
		o.logger.LogWarn("Failed to edit message", "message_id", messageID, "error", err.Error())
	}
}

func (o *Orchestrator) removeArtifact(path string) {
	if err := fetcher.RemoveArtifact(path); err != nil {
		o.logger.LogWarn("Failed to remove artifact", "path", path, "error", err.Error())
	}
}

// linkFor returns the download link of an artifact, warning once per request when links
// point at the local filesystem.
func (r *Request) linkFor(path string) string {
	if r.o.links.Degraded() {
		r.warnedOnce.Do(func() {
			r.o.logger.LogWarn("No public base URL configured, replying with local file links", "request_id", r.ID)
		})
	}
	return r.o.links.For(path)
}
