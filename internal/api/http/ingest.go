package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/siftlog/sift/internal/observability"
	"github.com/siftlog/sift/pkg/types"
)

// IngestRequest represents a batch ingest request. The API key
// authenticates the producing application, not a user session.
type IngestRequest struct {
	ProjectID string        `json:"project_id"`
	APIKey    string        `json:"api_key"`
	Events    []IngestEvent `json:"events"`
}

// IngestEvent is one event in an ingest batch.
type IngestEvent struct {
	Name       string            `json:"name"`
	Timestamp  int64             `json:"timestamp"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// IngestResponse represents the ingest response.
type IngestResponse struct {
	Accepted  int    `json:"accepted"`
	RequestID string `json:"request_id"`
}

// APIKeyVerifier checks a producer's API key against its project.
type APIKeyVerifier interface {
	VerifyAPIKey(ctx context.Context, projectID, apiKey string) error
}

// Ingester appends event records to the index.
type Ingester interface {
	Ingest(ctx context.Context, rec types.Record) error
}

// IngestHandler handles POST /v1/ingest requests.
type IngestHandler struct {
	keys    APIKeyVerifier
	index   Ingester
	metrics *observability.Metrics
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(keys APIKeyVerifier, index Ingester, metrics *observability.Metrics) *IngestHandler {
	return &IngestHandler{keys: keys, index: index, metrics: metrics}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body", requestID)
		return
	}
	if req.ProjectID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "project_id is required", requestID)
		return
	}
	if len(req.Events) == 0 {
		writeErrorMessage(w, http.StatusBadRequest, "events must not be empty", requestID)
		return
	}

	if err := h.keys.VerifyAPIKey(r.Context(), req.ProjectID, req.APIKey); err != nil {
		writeError(w, err, requestID)
		return
	}

	// Events are appended one at a time; the first failure aborts the
	// batch so the producer can retry from a known point.
	for i, ev := range req.Events {
		rec := types.Record{
			ProjectID:  req.ProjectID,
			Name:       ev.Name,
			Timestamp:  ev.Timestamp,
			Attributes: ev.Attributes,
		}
		if err := h.index.Ingest(r.Context(), rec); err != nil {
			h.metrics.IngestFailures.Inc()
			writeErrorMessage(w, statusFor(err),
				fmt.Sprintf("event %d: %s", i, err.Error()), requestID)
			return
		}
		h.metrics.EventsIngested.Inc()
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{
		Accepted:  len(req.Events),
		RequestID: requestID,
	})
}
