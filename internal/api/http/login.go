package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/siftlog/sift/internal/observability"
)

// LoginRequest represents a login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token string `json:"token"`
}

// SessionIssuer exchanges credentials for a session token.
type SessionIssuer interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// LoginHandler handles POST /v1/auth/login requests.
type LoginHandler struct {
	sessions SessionIssuer
	metrics  *observability.Metrics
}

// NewLoginHandler creates a new login handler.
func NewLoginHandler(sessions SessionIssuer, metrics *observability.Metrics) *LoginHandler {
	return &LoginHandler{sessions: sessions, metrics: metrics}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body", requestID)
		return
	}

	token, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.Logins.WithLabelValues("failure").Inc()
		writeError(w, err, requestID)
		return
	}

	h.metrics.Logins.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}
