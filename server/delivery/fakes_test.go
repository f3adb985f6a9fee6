package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/fetcher"
)

type sentPrompt struct {
	id      string
	message string
	actions []Action
}

type sentFile struct {
	path    string
	caption string
	existed bool
}

// fakeConversation records every call made on it
type fakeConversation struct {
	mu sync.Mutex

	nextID  int
	texts   []string
	prompts []sentPrompt
	files   []sentFile
	edits   map[string][]string
	acks    []string

	fileErr   error
	promptErr error
}

func newFakeConversation() *fakeConversation {
	return &fakeConversation{edits: make(map[string][]string)}
}

func (c *fakeConversation) id(prefix string) string {
	c.nextID++
	return fmt.Sprintf("%s-%d", prefix, c.nextID)
}

func (c *fakeConversation) SendText(_ context.Context, message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, message)
	return c.id("post"), nil
}

func (c *fakeConversation) SendInteractivePrompt(_ context.Context, message string, actions []Action) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.promptErr != nil {
		return "", c.promptErr
	}
	id := c.id("prompt")
	c.prompts = append(c.prompts, sentPrompt{id: id, message: message, actions: actions})
	return id, nil
}

func (c *fakeConversation) SendFile(_ context.Context, path, caption string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, statErr := os.Stat(path)
	c.files = append(c.files, sentFile{path: path, caption: caption, existed: statErr == nil})
	if c.fileErr != nil {
		return "", c.fileErr
	}
	return c.id("file"), nil
}

func (c *fakeConversation) EditMessage(_ context.Context, messageID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits[messageID] = append(c.edits[messageID], text)
	return nil
}

func (c *fakeConversation) AcknowledgeAction(_ context.Context, actionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acks = append(c.acks, actionID)
	return nil
}

func (c *fakeConversation) lastEdit(messageID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	edits := c.edits[messageID]
	if len(edits) == 0 {
		return ""
	}
	return edits[len(edits)-1]
}

// writeArtifact creates a fake downloaded video in dir
func writeArtifact(t *testing.T, dir, name, title string) *fetcher.Artifact {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o600))
	return &fetcher.Artifact{Path: path, Title: title, DurationSeconds: 10}
}
