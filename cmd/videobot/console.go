package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/delivery"
	"github.com/fmartingr/mattermost-plugin-video-downloader/server/preference"
)

// prompt is an interactive prompt waiting for a choice on the console
type prompt struct {
	id      string
	message string
	actions []delivery.Action
}

// consoleConversation prints bot replies to a writer. Files are "uploaded" by copying
// them into outDir.
type consoleConversation struct {
	out    io.Writer
	outDir string

	mu      sync.Mutex
	seq     int
	prompts []prompt
}

var _ delivery.Conversation = (*consoleConversation)(nil)

func newConsoleConversation(out io.Writer, outDir string) *consoleConversation {
	return &consoleConversation{out: out, outDir: outDir}
}

func (c *consoleConversation) nextID() string {
	c.seq++
	return fmt.Sprintf("msg-%d", c.seq)
}

func (c *consoleConversation) SendText(_ context.Context, message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID()
	fmt.Fprintf(c.out, "[%s] %s\n", id, message)
	return id, nil
}

func (c *consoleConversation) SendInteractivePrompt(_ context.Context, message string, actions []delivery.Action) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID()
	labels := make([]string, 0, len(actions))
	for _, action := range actions {
		labels = append(labels, fmt.Sprintf("[%s] %s", action.Kind, action.Label))
	}
	fmt.Fprintf(c.out, "[%s] %s\n        %s\n", id, message, strings.Join(labels, "  "))

	c.prompts = append(c.prompts, prompt{id: id, message: message, actions: actions})
	return id, nil
}

func (c *consoleConversation) SendFile(ctx context.Context, path, caption string) (string, error) {
	dest := path
	if c.outDir != "" {
		dest = filepath.Join(c.outDir, filepath.Base(path))
		if err := copyFile(ctx, path, dest); err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID()
	fmt.Fprintf(c.out, "[%s] %s\n        file: %s\n", id, caption, dest)
	return dest, nil
}

func (c *consoleConversation) EditMessage(_ context.Context, messageID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "[%s edited] %s\n", messageID, text)
	return nil
}

func (c *consoleConversation) AcknowledgeAction(context.Context, string) error {
	return nil
}

// takePrompts returns the prompts sent so far and forgets them
func (c *consoleConversation) takePrompts() []prompt {
	c.mu.Lock()
	defer c.mu.Unlock()

	prompts := c.prompts
	c.prompts = nil
	return prompts
}

// choose asks for a delivery choice on every prompt and hands it to the orchestrator. An
// empty answer skips the prompt and leaves the pending delivery to expire.
func choose(ctx context.Context, o *delivery.Orchestrator, conv *consoleConversation, in io.Reader, logger delivery.Logger) error {
	scanner := bufio.NewScanner(in)
	for _, p := range conv.takePrompts() {
		if len(p.actions) == 0 {
			continue
		}

		fmt.Fprintf(conv.out, "%s: [l]ink, [f]ile or enter to skip? ", p.id)
		if !scanner.Scan() {
			return scanner.Err()
		}

		kind, ok := parseChoice(scanner.Text())
		if !ok {
			continue
		}

		sel := delivery.Selection{
			ActionID:   kind.String(),
			PromptID:   p.id,
			Identifier: p.actions[0].Identifier,
			Kind:       kind,
		}
		if err := o.HandleSelection(ctx, conv, sel); err != nil {
			logger.LogWarn("Selection failed", "prompt", p.id, "error", err.Error())
		}
	}
	return nil
}

func parseChoice(answer string) (preference.Preference, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "l", "link":
		return preference.Link, true
	case "f", "file":
		return preference.File, true
	default:
		return "", false
	}
}

func copyFile(ctx context.Context, src, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open artifact")
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, "failed to copy artifact")
	}
	return errors.Wrap(out.Close(), "failed to close output file")
}

// slogLogger adapts a slog.Logger to the delivery pipeline's key-value logging
type slogLogger struct {
	logger *slog.Logger
}

func newSlogLogger(w io.Writer, debug bool) slogLogger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slogLogger{logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))}
}

func (l slogLogger) LogDebug(msg string, keyValuePairs ...any) {
	l.logger.Debug(msg, keyValuePairs...)
}

func (l slogLogger) LogInfo(msg string, keyValuePairs ...any) {
	l.logger.Info(msg, keyValuePairs...)
}

func (l slogLogger) LogWarn(msg string, keyValuePairs ...any) {
	l.logger.Warn(msg, keyValuePairs...)
}

func (l slogLogger) LogError(msg string, keyValuePairs ...any) {
	l.logger.Error(msg, keyValuePairs...)
}
