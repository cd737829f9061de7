package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/siftlog/sift/internal/observability"
	"github.com/siftlog/sift/internal/search"
	"github.com/siftlog/sift/pkg/types"
)

// SearchRequest represents a search request.
type SearchRequest struct {
	ProjectID string            `json:"project_id"`
	Filters   map[string]string `json:"filters,omitempty"`
}

// EventSummary is one ranked event class in a search response.
type EventSummary struct {
	Name     string `json:"name"`
	Count    int64  `json:"count"`
	LastSeen int64  `json:"last_seen"`
}

// SearchResponse represents the search response.
type SearchResponse struct {
	Events    []EventSummary `json:"events"`
	RequestID string         `json:"request_id"`
}

// ProjectAuthorizer decides whether a subject may read a project.
type ProjectAuthorizer interface {
	Authorize(ctx context.Context, subject types.Subject, projectID string) error
}

// Searcher runs a filtered search over a project's events.
type Searcher interface {
	Search(ctx context.Context, projectID string, filter search.Filter) ([]types.Summary, error)
}

// SearchHandler handles POST /v1/search requests.
type SearchHandler struct {
	authz   ProjectAuthorizer
	engine  Searcher
	metrics *observability.Metrics
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(authz ProjectAuthorizer, engine Searcher, metrics *observability.Metrics) *SearchHandler {
	return &SearchHandler{authz: authz, engine: engine, metrics: metrics}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	subject, ok := GetSubject(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "missing subject", requestID)
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body", requestID)
		return
	}
	if req.ProjectID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "project_id is required", requestID)
		return
	}

	if err := h.authz.Authorize(r.Context(), subject, req.ProjectID); err != nil {
		h.metrics.Searches.WithLabelValues("denied").Inc()
		writeError(w, err, requestID)
		return
	}

	summaries, err := h.engine.Search(r.Context(), req.ProjectID, req.Filters)
	if err != nil {
		h.metrics.Searches.WithLabelValues("error").Inc()
		writeError(w, err, requestID)
		return
	}
	h.metrics.Searches.WithLabelValues("ok").Inc()

	resp := SearchResponse{
		Events:    make([]EventSummary, 0, len(summaries)),
		RequestID: requestID,
	}
	for _, s := range summaries {
		resp.Events = append(resp.Events, EventSummary{
			Name:     s.Name,
			Count:    s.Count,
			LastSeen: s.LastSeen,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
