package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/pkg/errors"
)

const (
	// DefaultTimeout bounds a single fetch
	DefaultTimeout = 5 * time.Minute

	// OutputTemplate names artifacts after the platform media id
	OutputTemplate = "%(id)s.%(ext)s"
)

// Options configures a YtDlp fetcher
type Options struct {
	// Directory receives the downloaded artifacts
	Directory string
	// Executable is the yt-dlp binary; empty means resolve from PATH
	Executable string
	// Timeout bounds each fetch
	Timeout time.Duration
}

// mediaInfo is the subset of yt-dlp metadata the fetcher needs
type mediaInfo struct {
	ID       string
	Title    string
	Filename string
	Duration float64
}

type runFunc func(ctx context.Context, url string) (*mediaInfo, error)

// YtDlp fetches media with yt-dlp. The format is left to yt-dlp's default selection and
// playlists are never expanded.
type YtDlp struct {
	dir     string
	timeout time.Duration
	run     runFunc
}

// NewYtDlp creates a yt-dlp backed fetcher
func NewYtDlp(opts Options) *YtDlp {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	y := &YtDlp{
		dir:     opts.Directory,
		timeout: opts.Timeout,
	}
	y.run = func(ctx context.Context, url string) (*mediaInfo, error) {
		return runYtDlp(ctx, opts, url)
	}
	return y
}

// Directory returns the directory artifacts are written to
func (y *YtDlp) Directory() string {
	return y.dir
}

// Fetch downloads the media behind url and returns the artifact on disk
func (y *YtDlp) Fetch(ctx context.Context, url string) (*Artifact, error) {
	if err := os.MkdirAll(y.dir, 0o755); err != nil {
		return nil, &Error{URL: url, Reason: "download directory is not writable", Err: errors.Wrap(err, "failed to create download directory")}
	}

	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	info, err := y.run(ctx, url)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{URL: url, Reason: "download timed out after " + y.timeout.String(), Err: err}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, &Error{URL: url, Reason: "download was cancelled", Err: err}
		}
		return nil, &Error{URL: url, Reason: failureReason(err), Err: err}
	}

	path, err := y.locate(info)
	if err != nil {
		return nil, &Error{URL: url, Reason: "downloaded file could not be found", Err: err}
	}

	title := info.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &Artifact{
		Path:            path,
		Title:           title,
		DurationSeconds: info.Duration,
	}, nil
}

// locate resolves the artifact path, falling back to the media id when the reported
// filename is missing (for instance after a container merge changed the extension).
func (y *YtDlp) locate(info *mediaInfo) (string, error) {
	if info.Filename != "" {
		path := info.Filename
		if !filepath.IsAbs(path) {
			path = filepath.Join(y.dir, path)
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if info.ID == "" {
		return "", errors.New("yt-dlp reported neither a filename nor a media id")
	}

	matches, err := filepath.Glob(filepath.Join(y.dir, globEscape(info.ID)+".*"))
	if err != nil {
		return "", errors.Wrap(err, "failed to search download directory")
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", errors.Errorf("no file for media id %s in %s", info.ID, y.dir)
}

func runYtDlp(ctx context.Context, opts Options, url string) (*mediaInfo, error) {
	dl := ytdlp.New().
		NoWarnings().
		NoProgress().
		NoPlaylist().
		PrintJSON().
		Output(filepath.Join(opts.Directory, OutputTemplate))
	if opts.Executable != "" {
		dl.SetExecutable(opts.Executable)
	}

	res, err := dl.Run(ctx, url)
	if err != nil {
		if res != nil && res.Stderr != "" {
			return nil, errors.Wrap(err, res.Stderr)
		}
		return nil, errors.Wrap(err, "yt-dlp failed")
	}

	extracted, err := res.GetExtractedInfo()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse yt-dlp metadata")
	}
	if len(extracted) == 0 {
		return nil, errors.New("yt-dlp returned no media")
	}

	first := extracted[0]
	info := &mediaInfo{ID: first.ID}
	if first.Title != nil {
		info.Title = *first.Title
	}
	if first.Filename != nil {
		info.Filename = *first.Filename
	}
	if first.Duration != nil {
		info.Duration = *first.Duration
	}
	return info, nil
}

// failureReason picks the last yt-dlp "ERROR:" line out of the error text
func failureReason(err error) string {
	msg := err.Error()
	reason := ""
	for _, line := range strings.Split(msg, "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, "ERROR:"); idx >= 0 {
			reason = strings.TrimSpace(line[idx+len("ERROR:"):])
		}
	}
	if reason == "" {
		reason = strings.TrimSpace(strings.Split(msg, "\n")[0])
	}
	if reason == "" {
		reason = "unknown error"
	}
	return reason
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}
