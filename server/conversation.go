package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/pkg/errors"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/delivery"
)

const (
	actionContextIdentifier = "identifier"
	actionContextKind       = "kind"

	deliverActionPath = "/api/v1/actions/deliver"

	attachmentsProp = "attachments"
)

// threadConversation replies in the thread of the post that started a request
type threadConversation struct {
	api       plugin.API
	botID     string
	channelID string
	rootID    string
	userID    string
}

var _ delivery.Conversation = (*threadConversation)(nil)

// newThreadConversation creates a conversation replying to post. If the post is already a
// reply, replies go to the same thread.
func newThreadConversation(api plugin.API, botID string, post *model.Post) *threadConversation {
	rootID := post.Id
	if post.RootId != "" {
		rootID = post.RootId
	}

	return &threadConversation{
		api:       api,
		botID:     botID,
		channelID: post.ChannelId,
		rootID:    rootID,
		userID:    post.UserId,
	}
}

func (c *threadConversation) newPost(message string) *model.Post {
	return &model.Post{
		UserId:    c.botID,
		ChannelId: c.channelID,
		RootId:    c.rootID,
		Message:   message,
		CreateAt:  model.GetMillis(),
	}
}

func (c *threadConversation) SendText(_ context.Context, message string) (string, error) {
	post, appErr := c.api.CreatePost(c.newPost(message))
	if appErr != nil {
		return "", errors.Wrap(appErr, "failed to create thread reply")
	}
	return post.Id, nil
}

func (c *threadConversation) SendInteractivePrompt(_ context.Context, message string, actions []delivery.Action) (string, error) {
	postActions := make([]*model.PostAction, 0, len(actions))
	for _, action := range actions {
		postActions = append(postActions, &model.PostAction{
			Id:   action.Kind.String(),
			Name: action.Label,
			Type: model.PostActionTypeButton,
			Integration: &model.PostActionIntegration{
				URL: "/plugins/" + pluginID + deliverActionPath,
				Context: map[string]any{
					actionContextIdentifier: action.Identifier,
					actionContextKind:       action.Kind.String(),
				},
			},
		})
	}

	post := c.newPost("")
	model.ParseSlackAttachment(post, []*model.SlackAttachment{{
		Text:    message,
		Actions: postActions,
	}})

	created, appErr := c.api.CreatePost(post)
	if appErr != nil {
		return "", errors.Wrap(appErr, "failed to create prompt reply")
	}
	return created.Id, nil
}

// SendFile uploads the file and posts it in the thread. The returned reference is the
// Mattermost file id.
func (c *threadConversation) SendFile(ctx context.Context, path, caption string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to read artifact")
	}

	type uploadResult struct {
		info *model.FileInfo
		err  error
	}
	done := make(chan uploadResult, 1)
	go func() {
		info, appErr := c.api.UploadFile(data, c.channelID, filepath.Base(path))
		if appErr != nil {
			done <- uploadResult{err: errors.Wrap(appErr, "failed to upload file to Mattermost")}
			return
		}
		done <- uploadResult{info: info}
	}()

	var result uploadResult
	select {
	case result = <-done:
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "upload did not finish in time")
	}
	if result.err != nil {
		return "", result.err
	}

	post := c.newPost(caption)
	post.FileIds = []string{result.info.Id}
	if _, appErr := c.api.CreatePost(post); appErr != nil {
		return "", errors.Wrap(appErr, "failed to create thread reply with attachment")
	}

	return result.info.Id, nil
}

// EditMessage replaces the post text and drops any buttons
func (c *threadConversation) EditMessage(_ context.Context, messageID, text string) error {
	post, appErr := c.api.GetPost(messageID)
	if appErr != nil {
		return errors.Wrap(appErr, "failed to get post")
	}

	post.Message = text
	post.DelProp(attachmentsProp)

	if _, appErr := c.api.UpdatePost(post); appErr != nil {
		return errors.Wrap(appErr, "failed to update post")
	}
	return nil
}

// AcknowledgeAction shows an ephemeral notice to the user who pressed a button
func (c *threadConversation) AcknowledgeAction(_ context.Context, actionID string) error {
	message := "⏳ Preparing your download link..."
	if actionID == "file" {
		message = "⏳ Preparing your video..."
	}

	post := c.newPost(message)
	c.api.SendEphemeralPost(c.userID, post)
	return nil
}
