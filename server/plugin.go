package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/mattermost/mattermost/server/public/pluginapi"
	"github.com/mattermost/mattermost/server/public/pluginapi/cluster"
	"github.com/pkg/errors"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/command"
	"github.com/fmartingr/mattermost-plugin-video-downloader/server/delivery"
	"github.com/fmartingr/mattermost-plugin-video-downloader/server/fetcher"
	"github.com/fmartingr/mattermost-plugin-video-downloader/server/store/kvstore"
)

// Plugin implements the interface expected by the Mattermost server to communicate between the server and plugin processes.
type Plugin struct {
	plugin.MattermostPlugin

	// client is the Mattermost server API client.
	client *pluginapi.Client

	// commandClient is the client used to register and execute slash commands.
	commandClient command.Command

	janitorJob *cluster.Job

	// configurationLock synchronizes access to the configuration.
	configurationLock sync.RWMutex

	// configuration is the active plugin configuration. Consult getConfiguration and
	// setConfiguration for usage.
	configuration *configuration

	// botService manages the video downloader bot account
	botService *BotService

	// servicesLock guards the orchestrator, which is rebuilt on configuration changes
	servicesLock sync.RWMutex
	orchestrator *delivery.Orchestrator

	// memoryStore outlives configuration changes so pending deliveries survive them
	memoryStore *delivery.MemoryStore

	// lifetime is cancelled on deactivation and bounds every background fetch and upload
	lifetimeLock   sync.Mutex
	lifetime       context.Context
	cancelLifetime context.CancelFunc
}

// OnActivate is invoked when the plugin is activated. If an error is returned, the plugin will be deactivated.
func (p *Plugin) OnActivate() error {
	p.client = pluginapi.NewClient(p.API, p.Driver)

	p.botService = NewBotService(p.API)
	if err := p.botService.EnsureBot(); err != nil {
		return errors.Wrapf(delivery.ErrConfigurationMissing,
			"bot account unavailable (%s); enable bot account creation in System Console > Integrations > Bot Accounts and re-enable the plugin", err.Error())
	}

	p.configureServices(p.getConfiguration())

	p.commandClient = command.NewCommandHandler(p.client, p)

	job, err := cluster.Schedule(
		p.API,
		"VideoDownloaderJanitor",
		cluster.MakeWaitForRoundedInterval(janitorInterval),
		p.runJanitor,
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule janitor job")
	}

	p.janitorJob = job

	return nil
}

// OnDeactivate is invoked when the plugin is deactivated.
func (p *Plugin) OnDeactivate() error {
	p.lifetimeLock.Lock()
	if p.cancelLifetime != nil {
		p.cancelLifetime()
		p.lifetime, p.cancelLifetime = nil, nil
	}
	p.lifetimeLock.Unlock()

	if p.janitorJob != nil {
		if err := p.janitorJob.Close(); err != nil {
			p.API.LogError("Failed to close janitor job", "err", err)
		}
	}
	return nil
}

// configureServices builds the delivery pipeline for a configuration
func (p *Plugin) configureServices(config *configuration) {
	p.servicesLock.Lock()
	defer p.servicesLock.Unlock()

	var store delivery.PendingStore
	switch config.PendingStore {
	case pendingStoreKVStore:
		store = kvstore.NewPendingStore(p.client, config.pendingTTL())
	default:
		if p.memoryStore == nil {
			p.memoryStore = delivery.NewMemoryStore(config.pendingTTL())
		}
		p.memoryStore.SetTTL(config.pendingTTL())
		store = p.memoryStore
	}

	orchestrator := delivery.NewOrchestrator(delivery.Options{
		Fetcher: fetcher.NewYtDlp(fetcher.Options{
			Directory:  config.DownloadDirectory,
			Executable: config.YtDlpPath,
			Timeout:    config.fetchTimeout(),
		}),
		Strategy:      delivery.StrategyFor(config.DeliveryMode),
		Store:         store,
		Links:         delivery.NewLinkBuilder(config.PublicBaseURL),
		Logger:        p.API,
		MaxParallel:   config.MaxParallelFetches,
		UploadTimeout: config.uploadTimeout(),
	})

	p.orchestrator = orchestrator
}

// lifetimeContext returns the context background work runs under until the plugin is
// deactivated
func (p *Plugin) lifetimeContext() context.Context {
	p.lifetimeLock.Lock()
	defer p.lifetimeLock.Unlock()

	if p.lifetime == nil {
		p.lifetime, p.cancelLifetime = context.WithCancel(context.Background())
	}
	return p.lifetime
}

func (p *Plugin) getOrchestrator() *delivery.Orchestrator {
	p.servicesLock.RLock()
	defer p.servicesLock.RUnlock()
	return p.orchestrator
}

// Status reports the runtime state for the slash command and the status endpoint
func (p *Plugin) Status() (command.Status, error) {
	config := p.getConfiguration()
	status := command.Status{
		Mode:              config.DeliveryMode,
		PendingStore:      config.PendingStore,
		DownloadDirectory: config.DownloadDirectory,
		PublicBaseURL:     config.PublicBaseURL,
	}

	orchestrator := p.getOrchestrator()
	if orchestrator == nil {
		return status, nil
	}

	pending, err := orchestrator.PendingCount()
	if err != nil {
		return status, errors.Wrap(err, "failed to count pending deliveries")
	}
	status.PendingDeliveries = pending
	return status, nil
}

// This will execute the commands that were registered in the NewCommandHandler function.
func (p *Plugin) ExecuteCommand(c *plugin.Context, args *model.CommandArgs) (*model.CommandResponse, *model.AppError) {
	response, err := p.commandClient.Handle(args)
	if err != nil {
		return nil, model.NewAppError("ExecuteCommand", "plugin.command.execute_command.app_error", nil, err.Error(), http.StatusInternalServerError)
	}
	return response, nil
}

// MessageHasBeenPosted is invoked when a message has been posted by a user.
// This hook is called after the message has been committed to the database.
func (p *Plugin) MessageHasBeenPosted(c *plugin.Context, post *model.Post) {
	// Ignore messages from the bot itself to prevent infinite loops
	if p.botService == nil || post.UserId == p.botService.GetBotID() {
		return
	}
	if post.IsSystemMessage() || post.Message == "" {
		return
	}
	if !p.botService.IsAddressed(post) {
		return
	}

	orchestrator := p.getOrchestrator()
	if orchestrator == nil {
		return
	}

	conv := newThreadConversation(p.API, p.botService.GetBotID(), post)
	ctx := p.lifetimeContext()

	go func() {
		start := time.Now()
		err := orchestrator.HandleMessage(ctx, conv, post.Message)
		switch {
		case err == nil:
			p.API.LogDebug("Handled message", "postID", post.Id, "duration", time.Since(start).String())
		case errors.Is(err, delivery.ErrNoLinksFound):
			p.API.LogDebug("No supported links in message", "postID", post.Id)
		default:
			p.API.LogError("Failed to handle message", "postID", post.Id, "error", err.Error())
		}
	}()
}

// See https://developers.mattermost.com/extend/plugins/server/reference/
