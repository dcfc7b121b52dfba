package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// AccessTokenResponse is the body of GET /api/token/{userId}
type AccessTokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// UsersResponse is the body of GET /api/users
type UsersResponse struct {
	Users []string `json:"users"`
}

// GetToken returns a valid access token for the user, refreshing it first if
// it is about to expire
func (h *Handlers) GetToken(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	token, err := h.tokens.GetValidToken(r.Context(), userID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	response := AccessTokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
	}
	if token.HasExpiry() {
		expiresAt := token.ExpiresAt()
		response.ExpiresAt = &expiresAt
	}

	w.Header().Set("Cache-Control", "no-store")
	h.sendJSONResponse(w, response)
}

// ListUsers returns every user with a stored token
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.tokens.ListUsers(r.Context())
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if users == nil {
		users = []string{}
	}

	h.sendJSONResponse(w, UsersResponse{Users: users})
}
