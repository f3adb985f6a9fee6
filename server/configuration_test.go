package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattermost/mattermost/server/public/plugin/plugintest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConfigurationNormalize(t *testing.T) {
	config := &configuration{}
	config.normalize()

	assert.Equal(t, filepath.Join(os.TempDir(), "mattermost_video_downloads"), config.DownloadDirectory)
	assert.Equal(t, "buttons", config.DeliveryMode)
	assert.Equal(t, "memory", config.PendingStore)
	assert.Equal(t, 300*time.Second, config.fetchTimeout())
	assert.Equal(t, 120*time.Second, config.uploadTimeout())
	assert.Equal(t, time.Hour, config.pendingTTL())
	assert.Equal(t, 2, config.MaxParallelFetches)
	assert.Zero(t, config.artifactRetention())
	assert.NoError(t, config.IsValid())
}

func TestConfigurationNormalizeValues(t *testing.T) {
	config := &configuration{
		PublicBaseURL:          " https://files.example.com/videos/ ",
		DeliveryMode:           " JSON ",
		PendingStore:           "KVStore",
		MaxParallelFetches:     40,
		ArtifactRetentionHours: -3,
	}
	config.normalize()

	assert.Equal(t, "https://files.example.com/videos", config.PublicBaseURL)
	assert.Equal(t, "json", config.DeliveryMode)
	assert.Equal(t, "kvstore", config.PendingStore)
	assert.Equal(t, 10, config.MaxParallelFetches)
	assert.Zero(t, config.ArtifactRetentionHours)
	assert.NoError(t, config.IsValid())
}

func TestConfigurationIsValid(t *testing.T) {
	tests := []struct {
		name   string
		config configuration
		err    string
	}{
		{"bad mode", configuration{DeliveryMode: "carrier-pigeon"}, "invalid delivery mode"},
		{"bad store", configuration{PendingStore: "redis"}, "invalid pending store"},
		{"bad base url scheme", configuration{PublicBaseURL: "ftp://files.example.com"}, "must use http or https"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.config
			config.normalize()
			err := config.IsValid()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestConfigurationClone(t *testing.T) {
	config := &configuration{DeliveryMode: "json"}
	clone := config.Clone()
	clone.DeliveryMode = "buttons"
	assert.Equal(t, "json", config.DeliveryMode)
}

func TestOnConfigurationChange(t *testing.T) {
	api := &plugintest.API{}
	mockLogs(api)
	api.On("LoadPluginConfiguration", mock.AnythingOfType("*main.configuration")).Run(func(args mock.Arguments) {
		config := args.Get(0).(*configuration)
		config.DeliveryMode = "json"
		config.MaxParallelFetches = 4
	}).Return(nil)

	p := &Plugin{}
	p.SetAPI(api)

	require.NoError(t, p.OnConfigurationChange())
	config := p.getConfiguration()
	assert.Equal(t, "json", config.DeliveryMode)
	assert.Equal(t, 4, config.MaxParallelFetches)
	assert.Equal(t, "memory", config.PendingStore)

	// not activated yet
	assert.Nil(t, p.getOrchestrator())
}

func TestOnConfigurationChangeRebuildsServices(t *testing.T) {
	p, api := setupTestPlugin(t, nil)
	api.On("LoadPluginConfiguration", mock.AnythingOfType("*main.configuration")).Run(func(args mock.Arguments) {
		args.Get(0).(*configuration).DeliveryMode = "json"
	}).Return(nil)
	p.client = newTestClient(api)

	previous := p.getOrchestrator()
	store := p.memoryStore

	require.NoError(t, p.OnConfigurationChange())
	assert.NotSame(t, previous, p.getOrchestrator())
	assert.Equal(t, "json", p.getOrchestrator().Mode())
	assert.Same(t, store, p.memoryStore)
}

func TestOnConfigurationChangeInvalid(t *testing.T) {
	api := &plugintest.API{}
	mockLogs(api)
	api.On("LoadPluginConfiguration", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(0).(*configuration).PendingStore = "redis"
	}).Return(nil)

	p := &Plugin{}
	p.SetAPI(api)
	assert.Error(t, p.OnConfigurationChange())

	api2 := &plugintest.API{}
	api2.On("LoadPluginConfiguration", mock.Anything).Return(errors.New("boom"))
	p2 := &Plugin{}
	p2.SetAPI(api2)
	assert.Error(t, p2.OnConfigurationChange())
}
