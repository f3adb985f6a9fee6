package delivery

import (
	"fmt"
	"strings"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/extractor"
)

const (
	LabelGetLink   = "📥 Get Link"
	LabelSendVideo = "📹 Send Video"

	MessageNoLinks       = "❌ No supported video links found. Send a YouTube, Facebook, X (Twitter), Instagram or TikTok link."
	MessageExpired       = "❌ Error: Video data expired. Please download again."
	MessageUploading     = "⏳ Uploading video..."
	MessagePromptTrailer = "Choose how to receive:"
)

func processingMessage(count int) string {
	return fmt.Sprintf("⏳ Processing %d link(s)...", count)
}

func finishedMessage(succeeded, total int) string {
	if succeeded == total {
		return fmt.Sprintf("✅ Finished: %d link(s) processed.", total)
	}
	return fmt.Sprintf("⚠️ Finished: %d of %d link(s) succeeded.", succeeded, total)
}

func fetchFailedMessage(url, reason string) string {
	return fmt.Sprintf("❌ Download failed: %s\n\n**Reason:** %s", url, reason)
}

func promptMessage(title string) string {
	return fmt.Sprintf("✅ Downloaded: %s\n\n%s", title, MessagePromptTrailer)
}

func linkMessage(title, link string) string {
	return fmt.Sprintf("📥 Download Link for: %s\n\n%s", title, link)
}

func uploadedMessage(title string) string {
	return fmt.Sprintf("✅ Video uploaded: %s", title)
}

func uploadFailedMessage(reason string) string {
	return fmt.Sprintf("❌ Upload failed: %s", reason)
}

func caption(title string) string {
	return "📹 " + title
}

// HelpMessage describes the bot's usage for the given delivery mode
func HelpMessage(mode string) string {
	var sb strings.Builder
	sb.WriteString("#### 🎬 Video Downloader\n\n")
	sb.WriteString("Send me a link to a video and I will download it for you.\n\n")
	sb.WriteString("**Supported platforms:**\n")
	for _, p := range extractor.SupportedPlatforms() {
		sb.WriteString("- " + p.DisplayName() + "\n")
	}
	sb.WriteString("\n")

	if mode == ModeJSON {
		sb.WriteString("Add `send file` to get the video as an attachment or `send link` to get a download link. ")
		sb.WriteString("A keyword right after a link applies to that link only; otherwise it applies to all links. ")
		sb.WriteString("Links are delivered by default.\n")
	} else {
		sb.WriteString("After the download finishes, choose **Get Link** or **Send Video**.\n")
	}
	return sb.String()
}

// IsHelpRequest reports whether a message asks for usage help
func IsHelpRequest(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "help", "start", "/start", "/help":
		return true
	}
	return false
}
