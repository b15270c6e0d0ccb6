package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"genesis-login/internal/authorize"
	"genesis-login/internal/directory"
	"genesis-login/internal/session"
	"genesis-login/pkg/errors"

	"go.uber.org/zap"
)

// AuthorizationHandler fronts the confirmation controller. It tracks one
// controller per authorization-request id; a changed auth_uuid supersedes the
// previous controller entirely.
type AuthorizationHandler struct {
	directory    *directory.Client
	orchestrator *session.Orchestrator
	baseURL      string
	apiPrefix    string
	timeout      time.Duration
	logger       *zap.Logger

	mu         sync.Mutex
	controller *authorize.Controller
}

// NewAuthorizationHandler creates a new authorization handler
func NewAuthorizationHandler(
	dir *directory.Client,
	orchestrator *session.Orchestrator,
	baseURL, apiPrefix string,
	timeout time.Duration,
	logger *zap.Logger,
) *AuthorizationHandler {
	return &AuthorizationHandler{
		directory:    dir,
		orchestrator: orchestrator,
		baseURL:      baseURL,
		apiPrefix:    apiPrefix,
		timeout:      timeout,
		logger:       logger,
	}
}

// AuthorizationResponse describes a pending authorization request.
type AuthorizationResponse struct {
	AuthID       string   `json:"auth_id"`
	Scopes       []string `json:"scopes,omitempty"`
	Loaded       bool     `json:"loaded"`
	IsConfirming bool     `json:"is_confirming"`
	ErrorMessage string   `json:"error_message,omitempty"`
	ErrorDetails string   `json:"error_details,omitempty"`
}

// ConfirmResponse carries the redirect target of a confirmed request.
type ConfirmResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// HandleGetAuthorization handles GET /v1/authorization
// @Summary     Inspect a pending authorization request
// @Description Loads the requested scopes of the authorization request named by auth_uuid
// @Tags        authorization
// @Produce     application/json
// @Param       auth_uuid query    string true "Authorization request UUID"
// @Success     200       {object} AuthorizationResponse
// @Failure     400       {object} map[string]string
// @Router      /v1/authorization [get]
func (h *AuthorizationHandler) HandleGetAuthorization(w http.ResponseWriter, r *http.Request) {
	authID := strings.TrimSpace(r.URL.Query().Get("auth_uuid"))
	if authID == "" {
		sendError(w, errors.ErrInvalidRequest)
		return
	}

	controller := h.controllerFor(authID)

	scopes, loaded := controller.RequestedScopes()
	if !loaded {
		controller.LoadScopes(r.Context())
		scopes, loaded = controller.RequestedScopes()
	}

	message, details := controller.LastError()
	sendJSON(w, http.StatusOK, &AuthorizationResponse{
		AuthID:       authID,
		Scopes:       scopes,
		Loaded:       loaded,
		IsConfirming: controller.IsConfirming(),
		ErrorMessage: message,
		ErrorDetails: details,
	})
}

// HandleConfirm handles POST /v1/authorization/confirm
// @Summary     Confirm the authorization request
// @Description Confirms the pending request with the session's access token and returns the redirect URL
// @Tags        authorization
// @Produce     application/json
// @Param       auth_uuid query    string true "Authorization request UUID"
// @Success     200       {object} ConfirmResponse
// @Failure     401       {object} map[string]string
// @Failure     409       {object} map[string]string
// @Failure     502       {object} map[string]string
// @Router      /v1/authorization/confirm [post]
func (h *AuthorizationHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	authID := strings.TrimSpace(r.URL.Query().Get("auth_uuid"))
	if authID == "" {
		sendError(w, errors.ErrInvalidRequest)
		return
	}

	accessToken := h.orchestrator.AccessToken()
	if accessToken == "" {
		sendError(w, errors.ErrNotAuthenticated)
		return
	}

	controller := h.controllerFor(authID)

	redirectURL, err := controller.Confirm(r.Context(), accessToken)
	if err != nil {
		sendError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, &ConfirmResponse{RedirectURL: redirectURL})
}

// HandleReset handles POST /v1/authorization/reset
// @Summary     Reset the confirmation state
// @Description Clears a failed confirmation so a fresh attempt can be made
// @Tags        authorization
// @Success     204
// @Router      /v1/authorization/reset [post]
func (h *AuthorizationHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	controller := h.controller
	h.mu.Unlock()

	if controller != nil {
		controller.Reset()
	}
	w.WriteHeader(http.StatusNoContent)
}

// controllerFor returns the controller bound to authID, replacing the
// previous one when the id changed.
func (h *AuthorizationHandler) controllerFor(authID string) *authorize.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.controller == nil || h.controller.AuthID() != authID {
		h.controller = authorize.NewController(authID, h.directory, h.baseURL, h.apiPrefix, h.timeout, h.logger)
	}
	return h.controller
}
