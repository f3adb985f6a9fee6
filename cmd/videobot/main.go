// Command videobot runs the video downloader pipeline against a message typed on the
// command line, printing the replies the bot would post.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/delivery"
	"github.com/fmartingr/mattermost-plugin-video-downloader/server/fetcher"
)

var (
	mode          string
	downloadDir   string
	outputDir     string
	publicBaseURL string
	ytDlpPath     string
	fetchTimeout  time.Duration
	uploadTimeout time.Duration
	maxParallel   int
	debugMode     bool
)

var rootCmd = &cobra.Command{
	Use:   "videobot [message]",
	Short: "Download videos linked in a chat message",
	Long: `Runs the video downloader bot locally. The message is scanned for supported
video links, each one is downloaded with yt-dlp and the replies the bot would post
are printed. In buttons mode you are asked how to receive every video.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newSlogLogger(cmd.ErrOrStderr(), debugMode)

		mode = strings.ToLower(strings.TrimSpace(mode))
		if mode != delivery.ModeButtons && mode != delivery.ModeJSON {
			return errors.Errorf("invalid mode %q, must be %q or %q", mode, delivery.ModeButtons, delivery.ModeJSON)
		}

		orchestrator := delivery.NewOrchestrator(delivery.Options{
			Fetcher: fetcher.NewYtDlp(fetcher.Options{
				Directory:  downloadDir,
				Executable: ytDlpPath,
				Timeout:    fetchTimeout,
			}),
			Strategy:      delivery.StrategyFor(mode),
			Links:         delivery.NewLinkBuilder(publicBaseURL),
			Logger:        logger,
			MaxParallel:   maxParallel,
			UploadTimeout: uploadTimeout,
		})

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		conv := newConsoleConversation(cmd.OutOrStdout(), outputDir)
		if err := orchestrator.HandleMessage(ctx, conv, strings.Join(args, " ")); err != nil {
			return err
		}

		return choose(ctx, orchestrator, conv, cmd.InOrStdin(), logger)
	},
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	value, err := strconv.Atoi(envOr(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func init() {
	// A missing .env file is fine, the environment may be set already
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env file: %v", err)
	}

	defaultDir := filepath.Join(os.TempDir(), "mattermost_video_downloads")

	rootCmd.Flags().StringVar(&mode, "mode", envOr("VIDEOBOT_MODE", delivery.ModeButtons), "Delivery mode: buttons or json")
	rootCmd.Flags().StringVar(&downloadDir, "dir", envOr("VIDEOBOT_DOWNLOAD_DIR", defaultDir), "Directory downloads are written to")
	rootCmd.Flags().StringVar(&outputDir, "out", envOr("VIDEOBOT_OUTPUT_DIR", ""), "Directory sent files are copied to")
	rootCmd.Flags().StringVar(&publicBaseURL, "base-url", envOr("VIDEOBOT_PUBLIC_BASE_URL", ""), "Public base URL the download directory is served under")
	rootCmd.Flags().StringVar(&ytDlpPath, "yt-dlp", envOr("YTDLP_PATH", ""), "Path to the yt-dlp executable")
	rootCmd.Flags().DurationVar(&fetchTimeout, "fetch-timeout", fetcher.DefaultTimeout, "Timeout for a single download")
	rootCmd.Flags().DurationVar(&uploadTimeout, "upload-timeout", delivery.DefaultUploadTimeout, "Timeout for a single file delivery")
	rootCmd.Flags().IntVar(&maxParallel, "parallel", envIntOr("VIDEOBOT_MAX_PARALLEL", delivery.DefaultMaxParallel), "Maximum concurrent downloads")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
