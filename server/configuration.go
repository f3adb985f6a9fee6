package main

import (
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/delivery"
)

const (
	pendingStoreMemory  = "memory"
	pendingStoreKVStore = "kvstore"

	defaultFetchTimeoutSeconds  = 300
	defaultUploadTimeoutSeconds = 120
	defaultPendingTTLMinutes    = 60
	defaultDownloadDirName      = "mattermost_video_downloads"
)

// configuration captures the plugin's external configuration as exposed in the Mattermost server
// configuration, as well as values computed from the configuration. Any public fields will be
// deserialized from the Mattermost server configuration in OnConfigurationChange.
//
// As plugins are inherently concurrent (hooks being called asynchronously), and the plugin
// configuration can change at any time, access to the configuration must be synchronized. The
// strategy used in this plugin is to guard a pointer to the configuration, and clone the entire
// struct whenever it changes.
type configuration struct {
	DownloadDirectory      string
	PublicBaseURL          string
	DeliveryMode           string
	FetchTimeoutSeconds    int
	UploadTimeoutSeconds   int
	MaxParallelFetches     int
	PendingTTLMinutes      int
	PendingStore           string
	YtDlpPath              string
	ArtifactRetentionHours int
	ServeArtifacts         bool
}

// Clone shallow copies the configuration. Your implementation may require a deep copy if
// your configuration has reference types.
func (c *configuration) Clone() *configuration {
	var clone = *c
	return &clone
}

// normalize fills unset values with their defaults
func (c *configuration) normalize() {
	c.DownloadDirectory = strings.TrimSpace(c.DownloadDirectory)
	if c.DownloadDirectory == "" {
		c.DownloadDirectory = filepath.Join(os.TempDir(), defaultDownloadDirName)
	}

	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")

	c.DeliveryMode = strings.ToLower(strings.TrimSpace(c.DeliveryMode))
	if c.DeliveryMode == "" {
		c.DeliveryMode = delivery.ModeButtons
	}

	c.PendingStore = strings.ToLower(strings.TrimSpace(c.PendingStore))
	if c.PendingStore == "" {
		c.PendingStore = pendingStoreMemory
	}

	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.UploadTimeoutSeconds <= 0 {
		c.UploadTimeoutSeconds = defaultUploadTimeoutSeconds
	}
	if c.PendingTTLMinutes <= 0 {
		c.PendingTTLMinutes = defaultPendingTTLMinutes
	}
	c.MaxParallelFetches = delivery.ClampParallel(c.MaxParallelFetches)
	if c.ArtifactRetentionHours < 0 {
		c.ArtifactRetentionHours = 0
	}

	c.YtDlpPath = strings.TrimSpace(c.YtDlpPath)
}

// IsValid checks a normalized configuration
func (c *configuration) IsValid() error {
	switch c.DeliveryMode {
	case delivery.ModeButtons, delivery.ModeJSON:
	default:
		return errors.Errorf("invalid delivery mode %q, must be %q or %q", c.DeliveryMode, delivery.ModeButtons, delivery.ModeJSON)
	}

	switch c.PendingStore {
	case pendingStoreMemory, pendingStoreKVStore:
	default:
		return errors.Errorf("invalid pending store %q, must be %q or %q", c.PendingStore, pendingStoreMemory, pendingStoreKVStore)
	}

	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil {
			return errors.Wrap(err, "invalid public base URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Errorf("public base URL must use http or https, got %q", c.PublicBaseURL)
		}
	}

	return nil
}

func (c *configuration) fetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func (c *configuration) uploadTimeout() time.Duration {
	return time.Duration(c.UploadTimeoutSeconds) * time.Second
}

func (c *configuration) pendingTTL() time.Duration {
	return time.Duration(c.PendingTTLMinutes) * time.Minute
}

func (c *configuration) artifactRetention() time.Duration {
	return time.Duration(c.ArtifactRetentionHours) * time.Hour
}

// getConfiguration retrieves the active configuration under lock, making it safe to use
// concurrently. The active configuration may change underneath the client of this method, but
// the struct returned by this API call is considered immutable.
func (p *Plugin) getConfiguration() *configuration {
	p.configurationLock.RLock()
	defer p.configurationLock.RUnlock()

	if p.configuration == nil {
		config := &configuration{}
		config.normalize()
		return config
	}

	return p.configuration
}

// setConfiguration replaces the active configuration under lock.
//
// Do not call setConfiguration while holding the configurationLock, as sync.Mutex is not
// reentrant. In particular, avoid using the plugin API entirely, as this may in turn trigger a
// hook back into the plugin. If that hook attempts to acquire this lock, a deadlock may occur.
//
// This method panics if setConfiguration is called with the existing configuration. This almost
// certainly means that the configuration was modified without being cloned and may result in
// an unsafe access.
func (p *Plugin) setConfiguration(configuration *configuration) {
	p.configurationLock.Lock()
	defer p.configurationLock.Unlock()

	if configuration != nil && p.configuration == configuration {
		// Ignore assignment if the configuration struct is empty. Go will optimize the
		// allocation for same to point at the same memory address, breaking the check
		// above.
		if reflect.ValueOf(*configuration).NumField() == 0 {
			return
		}

		panic("setConfiguration called with the existing configuration")
	}

	p.configuration = configuration
}

// OnConfigurationChange is invoked when configuration changes may have been made.
func (p *Plugin) OnConfigurationChange() error {
	var config = new(configuration)

	// Load the public configuration fields from the Mattermost server configuration.
	if err := p.API.LoadPluginConfiguration(config); err != nil {
		return errors.Wrap(err, "failed to load plugin configuration")
	}

	config.normalize()
	if err := config.IsValid(); err != nil {
		p.API.LogError("Invalid plugin configuration", "error", err.Error())
		return errors.Wrap(err, "invalid plugin configuration")
	}

	p.setConfiguration(config)

	// Hooks may fire before activation; services are built in OnActivate in that case.
	if p.client != nil {
		p.configureServices(config)
	}

	p.API.LogDebug("Configuration updated",
		"deliveryMode", config.DeliveryMode,
		"pendingStore", config.PendingStore,
		"maxParallelFetches", config.MaxParallelFetches,
		"publicBaseURL", config.PublicBaseURL,
	)

	return nil
}
