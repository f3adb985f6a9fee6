package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/pkg/errors"
)

const (
	// BotUsername is the username for the video downloader bot
	BotUsername = "videobot"
	// BotDisplayName is the display name for the video downloader bot
	BotDisplayName = "Video Downloader"
	// BotDescription is the description for the video downloader bot
	BotDescription = "Downloads videos from social media links sent to it"
)

// mentionPattern matches "@videobot" but not longer usernames such as "@videobot2" or
// "@videobot.fan". A sentence-ending dot still counts as a mention.
var mentionPattern = regexp.MustCompile(`(?i)(?:^|[^\w.-])@` + BotUsername + `\.?(?:[^\w.-]|$)`)

// BotService manages the video downloader bot account
type BotService struct {
	api   plugin.API
	botID string
}

// NewBotService creates a new bot service
func NewBotService(api plugin.API) *BotService {
	return &BotService{
		api: api,
	}
}

// EnsureBot ensures the bot account exists, creating it if necessary
func (b *BotService) EnsureBot() error {
	botID, err := b.api.EnsureBotUser(&model.Bot{
		Username:    BotUsername,
		DisplayName: BotDisplayName,
		Description: BotDescription,
	})
	if err != nil {
		return errors.Wrap(err, "failed to ensure bot user")
	}
	b.botID = botID

	if err := b.setBotProfileImage(); err != nil {
		// Log error but don't fail activation if profile image can't be set
		b.api.LogWarn("Failed to set bot profile image", "error", err.Error())
	}

	return nil
}

// setBotProfileImage sets the bot's profile image from the plugin's icon asset
func (b *BotService) setBotProfileImage() error {
	bundlePath, err := b.api.GetBundlePath()
	if err != nil {
		return errors.Wrap(err, "failed to get bundle path")
	}

	iconData, err := os.ReadFile(filepath.Join(bundlePath, "assets", "icon.png"))
	if err != nil {
		return errors.Wrap(err, "failed to read icon file")
	}

	if appErr := b.api.SetProfileImage(b.botID, iconData); appErr != nil {
		return errors.Wrap(appErr, "failed to set profile image")
	}

	return nil
}

// GetBotID returns the bot user ID
func (b *BotService) GetBotID() string {
	return b.botID
}

// IsAddressed reports whether a post is meant for the bot: a direct message with the bot,
// or a message mentioning it.
func (b *BotService) IsAddressed(post *model.Post) bool {
	if mentionPattern.MatchString(post.Message) {
		return true
	}

	channel, appErr := b.api.GetChannel(post.ChannelId)
	if appErr != nil {
		b.api.LogWarn("Failed to get channel", "channelID", post.ChannelId, "error", appErr.Error())
		return false
	}

	return channel.Type == model.ChannelTypeDirect && strings.Contains(channel.Name, b.botID)
}
