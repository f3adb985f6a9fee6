package main

import (
	"time"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/fetcher"
)

const janitorInterval = 15 * time.Minute

// runJanitor drops expired pending deliveries together with their artifacts, and prunes
// delivered link artifacts older than the configured retention.
func (p *Plugin) runJanitor() {
	orchestrator := p.getOrchestrator()
	if orchestrator == nil {
		return
	}

	now := time.Now()
	swept, err := orchestrator.Sweep(now)
	if err != nil {
		p.API.LogError("Failed to sweep pending deliveries", "error", err.Error())
	} else if swept > 0 {
		p.API.LogInfo("Removed expired pending deliveries", "count", swept)
	}

	config := p.getConfiguration()
	retention := config.artifactRetention()
	if retention <= 0 {
		return
	}
	// never prune an artifact that may still back a live pending delivery
	if ttl := config.pendingTTL(); retention < ttl {
		retention = ttl
	}

	removed, err := fetcher.PruneArtifacts(config.DownloadDirectory, now.Add(-retention), nil)
	if err != nil {
		p.API.LogWarn("Failed to prune some artifacts", "error", err.Error())
	}
	if len(removed) > 0 {
		p.API.LogInfo("Pruned old artifacts", "count", len(removed), "directory", config.DownloadDirectory)
	}
}
