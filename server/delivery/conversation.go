package delivery

import (
	"context"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/preference"
)

// Conversation is the chat thread a request arrived on and replies go to
type Conversation interface {
	// SendText posts a message and returns its id
	SendText(ctx context.Context, message string) (string, error)
	// SendInteractivePrompt posts a message with buttons and returns its id
	SendInteractivePrompt(ctx context.Context, message string, actions []Action) (string, error)
	// SendFile uploads a local file with a caption and returns the transport's file reference
	SendFile(ctx context.Context, path, caption string) (string, error)
	// EditMessage replaces the text of a previously sent message
	EditMessage(ctx context.Context, messageID, text string) error
	// AcknowledgeAction confirms receipt of a button press to the user who pressed it
	AcknowledgeAction(ctx context.Context, actionID string) error
}

// Action is a button offered in an interactive prompt
type Action struct {
	// Kind is the delivery the button triggers
	Kind preference.Preference
	// Label is the button text
	Label string
	// Identifier names the pending delivery the button refers to
	Identifier string
}

// Selection is a button press on a previously sent prompt
type Selection struct {
	ActionID   string
	PromptID   string
	Identifier string
	Kind       preference.Preference
}

// Logger is the structured logger used by the delivery pipeline.
// The Mattermost plugin API satisfies it directly.
type Logger interface {
	LogDebug(msg string, keyValuePairs ...any)
	LogInfo(msg string, keyValuePairs ...any)
	LogWarn(msg string, keyValuePairs ...any)
	LogError(msg string, keyValuePairs ...any)
}

type nopLogger struct{}

func (nopLogger) LogDebug(string, ...any) {}
func (nopLogger) LogInfo(string, ...any)  {}
func (nopLogger) LogWarn(string, ...any)  {}
func (nopLogger) LogError(string, ...any) {}

// PromptActions returns the two buttons offered for a pending delivery
func PromptActions(identifier string) []Action {
	return []Action{
		{Kind: preference.Link, Label: LabelGetLink, Identifier: identifier},
		{Kind: preference.File, Label: LabelSendVideo, Identifier: identifier},
	}
}
