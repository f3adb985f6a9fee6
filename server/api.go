package main

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/pkg/errors"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/delivery"
	"github.com/fmartingr/mattermost-plugin-video-downloader/server/preference"
)

// ServeHTTP handles HTTP requests to the plugin.
// The root URL is <siteUrl>/plugins/com.fmartingr.video-downloader/.
func (p *Plugin) ServeHTTP(c *plugin.Context, w http.ResponseWriter, r *http.Request) {
	router := mux.NewRouter()

	// Middleware to require that the user is logged in
	router.Use(p.MattermostAuthorizationRequired)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/actions/deliver", p.DeliverAction).Methods(http.MethodPost)
	apiRouter.HandleFunc("/status", p.GetStatus).Methods(http.MethodGet)

	router.HandleFunc("/files/{filename}", p.ServeArtifact).Methods(http.MethodGet)

	router.ServeHTTP(w, r)
}

func (p *Plugin) MattermostAuthorizationRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("Mattermost-User-ID")
		if userID == "" {
			p.API.LogWarn("Missing Mattermost-User-ID header in request", "path", r.URL.Path, "method", r.Method)
			http.Error(w, "Not authorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// DeliverAction handles a button press on a delivery prompt. The request is answered at once
// and the delivery runs in the background.
func (p *Plugin) DeliverAction(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("Mattermost-User-ID")

	var request model.PostActionIntegrationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.UserId != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	identifier, _ := request.Context[actionContextIdentifier].(string)
	rawKind, _ := request.Context[actionContextKind].(string)
	kind, ok := preference.Parse(rawKind)
	if identifier == "" || !ok {
		http.Error(w, "Invalid action context", http.StatusBadRequest)
		return
	}

	prompt, appErr := p.API.GetPost(request.PostId)
	if appErr != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	orchestrator := p.getOrchestrator()
	if orchestrator == nil {
		http.Error(w, "Plugin is not active", http.StatusServiceUnavailable)
		return
	}

	conv := newThreadConversation(p.API, p.botService.GetBotID(), prompt)
	conv.userID = userID

	selection := delivery.Selection{
		ActionID:   kind.String(),
		PromptID:   request.PostId,
		Identifier: identifier,
		Kind:       kind,
	}

	ctx := p.lifetimeContext()
	go func() {
		err := orchestrator.HandleSelection(ctx, conv, selection)
		switch {
		case err == nil:
		case errors.Is(err, delivery.ErrExpiredOrUnknownSelection):
			p.API.LogInfo("Selection expired or unknown", "identifier", identifier, "userID", userID)
		default:
			p.API.LogError("Failed to handle selection", "identifier", identifier, "userID", userID, "error", err.Error())
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&model.PostActionIntegrationResponse{}); err != nil {
		p.API.LogError("Failed to encode action response", "error", err.Error())
	}
}

// GetStatus returns the delivery mode and number of pending downloads
func (p *Plugin) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := p.Status()
	if err != nil {
		p.API.LogError("Failed to get status", "error", err.Error())
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := struct {
		Mode              string `json:"mode"`
		PendingDeliveries int    `json:"pending_deliveries"`
		PendingStore      string `json:"pending_store"`
	}{
		Mode:              status.Mode,
		PendingDeliveries: status.PendingDeliveries,
		PendingStore:      status.PendingStore,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		p.API.LogError("Failed to encode status", "error", err.Error())
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// ServeArtifact serves a downloaded video from the download directory when enabled
func (p *Plugin) ServeArtifact(w http.ResponseWriter, r *http.Request) {
	config := p.getConfiguration()
	if !config.ServeArtifacts {
		http.NotFound(w, r)
		return
	}

	filename := mux.Vars(r)["filename"]
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	path := filepath.Join(config.DownloadDirectory, filename)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	http.ServeFile(w, r, path)
}
