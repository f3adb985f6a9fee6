package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin/plugintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/delivery"
)

func newTestConversation() (*threadConversation, *plugintest.API) {
	api := &plugintest.API{}
	mockLogs(api)
	post := &model.Post{Id: "postid", ChannelId: "channelid", UserId: testUserID}
	return newThreadConversation(api, testBotID, post), api
}

func TestThreadConversationUsesThreadRoot(t *testing.T) {
	api := &plugintest.API{}
	conv := newThreadConversation(api, testBotID, &model.Post{Id: "reply", RootId: "root", ChannelId: "c"})
	assert.Equal(t, "root", conv.rootID)

	conv = newThreadConversation(api, testBotID, &model.Post{Id: "top", ChannelId: "c"})
	assert.Equal(t, "top", conv.rootID)
}

func TestSendText(t *testing.T) {
	conv, api := newTestConversation()
	api.On("CreatePost", mock.MatchedBy(func(post *model.Post) bool {
		return post.RootId == "postid" && post.ChannelId == "channelid" && post.UserId == testBotID && post.Message == "hello"
	})).Return(&model.Post{Id: "newpost"}, nil)

	id, err := conv.SendText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "newpost", id)
	api.AssertExpectations(t)
}

func TestSendTextFailure(t *testing.T) {
	conv, api := newTestConversation()
	api.On("CreatePost", mock.Anything).Return(nil, model.NewAppError("CreatePost", "id", nil, "boom", 500))

	_, err := conv.SendText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create thread reply")
}

func TestSendInteractivePrompt(t *testing.T) {
	conv, api := newTestConversation()

	var created *model.Post
	api.On("CreatePost", mock.AnythingOfType("*model.Post")).Run(func(args mock.Arguments) {
		created = args.Get(0).(*model.Post)
	}).Return(&model.Post{Id: "promptid"}, nil)

	id, err := conv.SendInteractivePrompt(context.Background(), "✅ Downloaded: Clip", delivery.PromptActions("abc_mp4"))
	require.NoError(t, err)
	assert.Equal(t, "promptid", id)

	require.NotNil(t, created)
	attachments := created.Attachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "✅ Downloaded: Clip", attachments[0].Text)

	actions := attachments[0].Actions
	require.Len(t, actions, 2)
	assert.Equal(t, "link", actions[0].Id)
	assert.Equal(t, delivery.LabelGetLink, actions[0].Name)
	assert.Equal(t, "/plugins/"+pluginID+"/api/v1/actions/deliver", actions[0].Integration.URL)
	assert.Equal(t, "abc_mp4", actions[0].Integration.Context["identifier"])
	assert.Equal(t, "link", actions[0].Integration.Context["kind"])
	assert.Equal(t, "file", actions[1].Id)
	assert.Equal(t, "file", actions[1].Integration.Context["kind"])
}

func TestSendFile(t *testing.T) {
	conv, api := newTestConversation()
	path := filepath.Join(t.TempDir(), "abc.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o600))

	api.On("UploadFile", []byte("video"), "channelid", "abc.mp4").Return(&model.FileInfo{Id: "fileid"}, nil)
	api.On("CreatePost", mock.MatchedBy(func(post *model.Post) bool {
		return len(post.FileIds) == 1 && post.FileIds[0] == "fileid" && post.Message == "📹 Clip" && post.RootId == "postid"
	})).Return(&model.Post{Id: "filepost"}, nil)

	ref, err := conv.SendFile(context.Background(), path, "📹 Clip")
	require.NoError(t, err)
	assert.Equal(t, "fileid", ref)
	api.AssertExpectations(t)
}

func TestSendFileTimeout(t *testing.T) {
	conv, api := newTestConversation()
	path := filepath.Join(t.TempDir(), "abc.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o600))

	release := make(chan struct{})
	defer close(release)
	api.On("UploadFile", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release
	}).Return(&model.FileInfo{Id: "fileid"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := conv.SendFile(ctx, path, "caption")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	api.AssertNotCalled(t, "CreatePost", mock.Anything)
}

func TestSendFileMissingArtifact(t *testing.T) {
	conv, _ := newTestConversation()

	_, err := conv.SendFile(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"), "caption")
	require.Error(t, err)
}

func TestEditMessageDropsButtons(t *testing.T) {
	conv, api := newTestConversation()

	prompt := &model.Post{Id: "promptid"}
	model.ParseSlackAttachment(prompt, []*model.SlackAttachment{{Text: "choose"}})
	api.On("GetPost", "promptid").Return(prompt, nil)
	api.On("UpdatePost", mock.MatchedBy(func(post *model.Post) bool {
		return post.Message == "done" && len(post.Attachments()) == 0
	})).Return(prompt, nil)

	require.NoError(t, conv.EditMessage(context.Background(), "promptid", "done"))
	api.AssertExpectations(t)
}

func TestAcknowledgeAction(t *testing.T) {
	conv, api := newTestConversation()
	api.On("SendEphemeralPost", testUserID, mock.MatchedBy(func(post *model.Post) bool {
		return post.ChannelId == "channelid" && post.Message == "⏳ Preparing your video..."
	})).Return(&model.Post{})

	require.NoError(t, conv.AcknowledgeAction(context.Background(), "file"))
	api.AssertExpectations(t)
}
