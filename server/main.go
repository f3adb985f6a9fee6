package main

import (
	"github.com/mattermost/mattermost/server/public/plugin"
)

const pluginID = "com.fmartingr.video-downloader"

func main() {
	plugin.ClientMain(&Plugin{})
}
