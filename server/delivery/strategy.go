package delivery

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/preference"
	"github.com/fmartingr/mattermost-plugin-video-downloader/server/response"
)

const (
	// ModeButtons defers the file or link choice to a button press
	ModeButtons = "buttons"
	// ModeJSON infers the choice from the message and replies with a JSON batch
	ModeJSON = "json"
)

// Strategy decides when the file or link choice is bound and delivers fetch results
type Strategy interface {
	Mode() string
	Deliver(ctx context.Context, req *Request) (Outcome, error)
}

// StrategyFor returns the strategy for a delivery mode, defaulting to buttons
func StrategyFor(mode string) Strategy {
	if mode == ModeJSON {
		return ImmediateStrategy{}
	}
	return DeferredStrategy{}
}

// DeferredStrategy stores each fetched artifact as a pending delivery and asks the user
// how to receive it. The artifact stays on disk until the selection is handled.
type DeferredStrategy struct{}

func (DeferredStrategy) Mode() string {
	return ModeButtons
}

func (DeferredStrategy) Deliver(ctx context.Context, req *Request) (Outcome, error) {
	o := req.o
	conv := req.Conversation
	var outcome Outcome

	for _, result := range req.Results {
		if result.Err != nil {
			outcome.Failed++
			if _, err := conv.SendText(ctx, fetchFailedMessage(result.Link.URL, result.Err.Reason)); err != nil {
				o.logger.LogError("Failed to send fetch error", "request_id", req.ID, "url", result.Link.URL, "error", err.Error())
			}
			continue
		}

		artifact := result.Artifact
		id := IdentifierFor(artifact.Filename())
		pending := &PendingDelivery{
			ArtifactPath: artifact.Path,
			Link:         req.linkFor(artifact.Path),
			Title:        artifact.Title,
			SourceURL:    result.Link.URL,
			CreatedAt:    o.now(),
		}

		if err := o.store.Put(id, pending); err != nil {
			outcome.Failed++
			o.logger.LogError("Failed to store pending delivery", "request_id", req.ID, "identifier", id, "error", err.Error())
			o.removeArtifact(artifact.Path)
			if _, sendErr := conv.SendText(ctx, fetchFailedMessage(result.Link.URL, "could not save the download")); sendErr != nil {
				o.logger.LogError("Failed to send fetch error", "request_id", req.ID, "error", sendErr.Error())
			}
			continue
		}

		if _, err := conv.SendInteractivePrompt(ctx, promptMessage(artifact.Title), PromptActions(id)); err != nil {
			outcome.Failed++
			o.logger.LogError("Failed to send delivery prompt", "request_id", req.ID, "identifier", id, "error", err.Error())
			if taken, takeErr := o.store.Take(id); takeErr == nil && taken != nil {
				o.removeArtifact(taken.ArtifactPath)
			}
			continue
		}

		outcome.Succeeded++
	}

	return outcome, nil
}

// ImmediateStrategy resolves the delivery preference of every link from the message text
// and replies with a single JSON batch in input order.
type ImmediateStrategy struct{}

func (ImmediateStrategy) Mode() string {
	return ModeJSON
}

func (ImmediateStrategy) Deliver(ctx context.Context, req *Request) (Outcome, error) {
	o := req.o
	conv := req.Conversation

	prefs := make([]preference.Preference, len(req.Results))
	for i, result := range req.Results {
		prefs[i] = preference.Resolve(req.Text, result.Link.URL)
	}

	// Several links may resolve to one artifact. An artifact is kept while any entry links
	// to it or any upload of it failed, and removed once every upload of it succeeded.
	keep := make(map[string]bool)
	for i, result := range req.Results {
		if result.Err == nil && prefs[i] != preference.File {
			keep[result.Artifact.Path] = true
		}
	}
	var uploaded []string

	entries := make([]response.Entry, 0, len(req.Results))
	for i, result := range req.Results {
		input := result.Link.URL
		if result.Err != nil {
			entries = append(entries, response.Failure(input, result.Err.Reason))
			continue
		}

		artifact := result.Artifact
		switch prefs[i] {
		case preference.File:
			ref, err := o.upload(ctx, conv, artifact.Path, artifact.Title)
			if err != nil {
				keep[artifact.Path] = true
				o.logger.LogError("Failed to upload video", "request_id", req.ID, "url", input, "error", err.Error())
				entries = append(entries, response.Failure(input, "Upload failed: "+err.Error()))
				continue
			}
			uploaded = append(uploaded, artifact.Path)
			entries = append(entries, response.Success(input, preference.File.String(), ref, ""))

		default:
			entries = append(entries, response.Success(input, preference.Link.String(), "", req.linkFor(artifact.Path)))
		}
	}

	for _, path := range uploaded {
		if !keep[path] {
			keep[path] = true
			o.removeArtifact(path)
		}
	}

	payload, err := response.Format(entries)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "failed to format response")
	}

	if _, err := conv.SendText(ctx, "```json\n"+payload+"\n```"); err != nil {
		return Outcome{}, errors.Wrap(err, "failed to send response")
	}

	succeeded, failed := response.Summary(entries)
	return Outcome{Succeeded: succeeded, Failed: failed}, nil
}
