package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattermost/mattermost/server/public/plugin/plugintest"
	"github.com/mattermost/mattermost/server/public/pluginapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/delivery"
)

func newTestClient(api *plugintest.API) *pluginapi.Client {
	return pluginapi.NewClient(api, &plugintest.Driver{})
}

func writeTestArtifact(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o600))
	modTime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	return path
}

func TestJanitorSweepsExpiredPending(t *testing.T) {
	dir := t.TempDir()
	p, _ := setupTestPlugin(t, &configuration{DownloadDirectory: dir})

	expired := writeTestArtifact(t, dir, "old.mp4", 2*time.Hour)
	live := writeTestArtifact(t, dir, "new.mp4", 0)
	require.NoError(t, p.memoryStore.Put("old_mp4", &delivery.PendingDelivery{ArtifactPath: expired, CreatedAt: time.Now().Add(-2 * time.Hour)}))
	require.NoError(t, p.memoryStore.Put("new_mp4", &delivery.PendingDelivery{ArtifactPath: live, CreatedAt: time.Now()}))

	p.runJanitor()

	assert.NoFileExists(t, expired)
	assert.FileExists(t, live)
	count, err := p.memoryStore.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJanitorPrunesRetainedArtifacts(t *testing.T) {
	dir := t.TempDir()
	p, _ := setupTestPlugin(t, &configuration{DownloadDirectory: dir, ArtifactRetentionHours: 3})

	stale := writeTestArtifact(t, dir, "stale.mp4", 5*time.Hour)
	recent := writeTestArtifact(t, dir, "recent.mp4", time.Hour)

	p.runJanitor()

	assert.NoFileExists(t, stale)
	assert.FileExists(t, recent)
}

func TestJanitorKeepsArtifactsWithoutRetention(t *testing.T) {
	dir := t.TempDir()
	p, _ := setupTestPlugin(t, &configuration{DownloadDirectory: dir})

	stale := writeTestArtifact(t, dir, "stale.mp4", 500*time.Hour)

	p.runJanitor()

	assert.FileExists(t, stale)
}
