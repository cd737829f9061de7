package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/siftlog/sift/internal/detail"
	"github.com/siftlog/sift/internal/observability"
)

// DetailRequest represents a detail page request.
type DetailRequest struct {
	ProjectID string `json:"project_id"`
	EventName string `json:"event_name"`
	Cursor    string `json:"cursor,omitempty"`
}

// DetailEntry is one record in a detail page.
type DetailEntry struct {
	Timestamp  int64             `json:"timestamp"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// DetailResponse represents one page of an event's records.
type DetailResponse struct {
	Entries    []DetailEntry `json:"entries"`
	NextCursor string        `json:"next_cursor,omitempty"`
	RequestID  string        `json:"request_id"`
}

// DetailReader pages through one event class's records.
type DetailReader interface {
	Records(ctx context.Context, projectID, eventName, cursor string) (detail.Page, error)
}

// DetailHandler handles POST /v1/detail requests.
type DetailHandler struct {
	authz   ProjectAuthorizer
	reader  DetailReader
	metrics *observability.Metrics
}

// NewDetailHandler creates a new detail handler.
func NewDetailHandler(authz ProjectAuthorizer, reader DetailReader, metrics *observability.Metrics) *DetailHandler {
	return &DetailHandler{authz: authz, reader: reader, metrics: metrics}
}

func (h *DetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	var req DetailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body", requestID)
		return
	}
	if req.ProjectID == "" || req.EventName == "" {
		writeErrorMessage(w, http.StatusBadRequest, "project_id and event_name are required", requestID)
		return
	}

	if err := h.authz.Authorize(r.Context(), subject, req.ProjectID); err != nil {
		writeError(w, err, requestID)
		return
	}

	page, err := h.reader.Records(r.Context(), req.ProjectID, req.EventName, req.Cursor)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	h.metrics.DetailPages.Inc()

	resp := DetailResponse{
		Entries:    make([]DetailEntry, 0, len(page.Records)),
		NextCursor: page.NextCursor,
		RequestID:  requestID,
	}
	for _, rec := range page.Records {
		resp.Entries = append(resp.Entries, DetailEntry{
			Timestamp:  rec.Timestamp,
			Attributes: rec.Attributes,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
