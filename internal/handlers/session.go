package handlers

import (
	"encoding/json"
	"net/http"

	"genesis-login/internal/credential"
	"genesis-login/internal/models"
	"genesis-login/internal/session"
	"genesis-login/pkg/errors"

	"go.uber.org/zap"
)

// SessionHandler fronts the credential lifecycle: login, refresh, session
// introspection and sign-out. Tokens never leave the process; the browser
// only sees session state.
type SessionHandler struct {
	orchestrator *session.Orchestrator
	logger       *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(orchestrator *session.Orchestrator, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// LoginRequest is the body of POST /v1/login.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe *bool  `json:"remember_me,omitempty"`
	Scope      string `json:"scope,omitempty"`
}

// RefreshRequest is the body of POST /v1/refresh.
type RefreshRequest struct {
	RememberMe *bool `json:"remember_me,omitempty"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	TenantID           string              `json:"tenant_id,omitempty"`
	TenantName         string              `json:"tenant_name,omitempty"`
	Authenticated      bool                `json:"authenticated"`
	HasCredentials     bool                `json:"has_credentials"`
	ProfileLoading     bool                `json:"profile_loading"`
	User               *models.UserProfile `json:"user,omitempty"`
	DisplayName        string              `json:"display_name,omitempty"`
	RememberedUsername string              `json:"remembered_username,omitempty"`
}

// HandleLogin handles POST /v1/login
// @Summary     Authenticate with username and password
// @Description Performs a password grant against the tenant's token endpoint and stores the session
// @Tags        session
// @Accept      application/json
// @Produce     application/json
// @Param       request body     LoginRequest true "Login request"
// @Success     200     {object} SessionResponse
// @Failure     400     {object} map[string]string
// @Failure     401     {object} map[string]string
// @Router      /v1/login [post]
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, errors.Wrap(err, errors.ErrInvalidRequest))
		return
	}
	if req.Username == "" || req.Password == "" {
		sendError(w, errors.ErrInvalidRequest)
		return
	}

	rememberMe := true
	if req.RememberMe != nil {
		rememberMe = *req.RememberMe
	}

	_, err := h.orchestrator.Login(r.Context(), credential.PasswordLogin{
		Username:   req.Username,
		Password:   req.Password,
		RememberMe: rememberMe,
		Scope:      req.Scope,
	})
	if err != nil {
		h.logger.Warn("Login failed", zap.Error(err))
		sendError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, h.sessionResponse(r))
}

// HandleRefresh handles POST /v1/refresh
// @Summary     Refresh the access token
// @Description Performs a refresh grant using the stored refresh token
// @Tags        session
// @Accept      application/json
// @Produce     application/json
// @Param       request body     RefreshRequest false "Refresh options"
// @Success     200     {object} SessionResponse
// @Failure     401     {object} map[string]string
// @Router      /v1/refresh [post]
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.Body != nil {
		// An empty body means default options.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	rememberMe := true
	if req.RememberMe != nil {
		rememberMe = *req.RememberMe
	}

	_, err := h.orchestrator.Refresh(r.Context(), credential.RefreshOptions{RememberMe: rememberMe})
	if err != nil {
		h.logger.Warn("Token refresh failed", zap.Error(err))
		sendError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, h.sessionResponse(r))
}

// HandleGetSession handles GET /v1/session
// @Summary     Inspect the current session
// @Description Returns tenant, authentication and profile state for the login surface
// @Tags        session
// @Produce     application/json
// @Success     200 {object} SessionResponse
// @Router      /v1/session [get]
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, h.sessionResponse(r))
}

// HandleLogout handles POST /v1/logout
// @Summary     Sign out
// @Description Stops the refresh timer and wipes all stored credentials for the tenant
// @Tags        session
// @Success     204
// @Router      /v1/logout [post]
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.SignOut(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) sessionResponse(r *http.Request) *SessionResponse {
	snap := h.orchestrator.Snapshot()

	resp := &SessionResponse{
		TenantID:           snap.TenantID,
		TenantName:         snap.TenantName,
		Authenticated:      snap.Profile != nil,
		HasCredentials:     snap.Tokens.HasAny(),
		ProfileLoading:     snap.ProfileLoading,
		User:               snap.Profile,
		RememberedUsername: h.orchestrator.RememberedUser(r.Context()),
	}
	if snap.Profile != nil {
		resp.DisplayName = snap.Profile.DisplayName()
	}
	return resp
}
