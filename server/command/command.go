package command

import (
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/pluginapi"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/delivery"
)

const (
	Trigger = "videobot"

	subcommandHelp   = "help"
	subcommandStatus = "status"
)

// Status is the runtime state reported by /videobot status
type Status struct {
	Mode              string
	PendingDeliveries int
	PendingStore      string
	DownloadDirectory string
	PublicBaseURL     string
}

// StatusProvider reports the current runtime state of the bot
type StatusProvider interface {
	Status() (Status, error)
}

type Handler struct {
	client *pluginapi.Client
	status StatusProvider
}

type Command interface {
	Handle(args *model.CommandArgs) (*model.CommandResponse, error)
}

// NewCommandHandler registers the /videobot slash command
func NewCommandHandler(client *pluginapi.Client, status StatusProvider) Command {
	autocomplete := model.NewAutocompleteData(Trigger, "[command]", "Download videos from social media links")
	autocomplete.AddCommand(model.NewAutocompleteData(subcommandHelp, "", "Show usage and supported platforms"))
	autocomplete.AddCommand(model.NewAutocompleteData(subcommandStatus, "", "Show delivery mode and pending downloads"))

	err := client.SlashCommand.Register(&model.Command{
		Trigger:          Trigger,
		AutoComplete:     true,
		AutoCompleteDesc: "Download videos from social media links",
		AutoCompleteHint: "[help|status]",
		AutocompleteData: autocomplete,
	})
	if err != nil {
		client.Log.Error("Failed to register command", "error", err)
	}

	return &Handler{
		client: client,
		status: status,
	}
}

// Handle executes a /videobot invocation
func (c *Handler) Handle(args *model.CommandArgs) (*model.CommandResponse, error) {
	fields := strings.Fields(args.Command)
	if len(fields) == 0 || strings.TrimPrefix(fields[0], "/") != Trigger {
		return ephemeral(fmt.Sprintf("Unknown command: %s", args.Command)), nil
	}

	subcommand := subcommandHelp
	if len(fields) > 1 {
		subcommand = strings.ToLower(fields[1])
	}

	switch subcommand {
	case subcommandHelp:
		return c.executeHelp()
	case subcommandStatus:
		return c.executeStatus()
	default:
		return ephemeral(fmt.Sprintf("Unknown subcommand: %s. Try `/%s help`.", subcommand, Trigger)), nil
	}
}

func (c *Handler) executeHelp() (*model.CommandResponse, error) {
	status, err := c.status.Status()
	if err != nil {
		return nil, err
	}
	return ephemeral(delivery.HelpMessage(status.Mode)), nil
}

func (c *Handler) executeStatus() (*model.CommandResponse, error) {
	status, err := c.status.Status()
	if err != nil {
		return nil, err
	}

	publicURL := status.PublicBaseURL
	if publicURL == "" {
		publicURL = "_not set, links point at the server filesystem_"
	}

	text := fmt.Sprintf("#### Video Downloader status\n\n"+
		"| Setting | Value |\n|---|---|\n"+
		"| Delivery mode | %s |\n"+
		"| Pending downloads | %d |\n"+
		"| Pending store | %s |\n"+
		"| Download directory | `%s` |\n"+
		"| Public base URL | %s |",
		status.Mode,
		status.PendingDeliveries,
		status.PendingStore,
		status.DownloadDirectory,
		publicURL,
	)
	return ephemeral(text), nil
}

func ephemeral(text string) *model.CommandResponse {
	return &model.CommandResponse{
		ResponseType: model.CommandResponseTypeEphemeral,
		Text:         text,
	}
}
