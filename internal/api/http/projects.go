package http

import (
	"context"
	"net/http"

	"github.com/siftlog/sift/pkg/types"
)

// ProjectLister returns the projects a subject may see.
type ProjectLister interface {
	ListProjects(ctx context.Context, subject types.Subject) ([]types.Project, error)
}

// ProjectResponse is one project entry in a listing.
type ProjectResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectsHandler handles GET /v1/projects requests.
type ProjectsHandler struct {
	registry ProjectLister
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(registry ProjectLister) *ProjectsHandler {
	return &ProjectsHandler{registry: registry}
}

func (h *ProjectsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	subject, ok := GetSubject(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "missing subject", requestID)
		return
	}

	projects, err := h.registry.ListProjects(r.Context(), subject)
	if err != nil {
		writeError(w, err, requestID)
		return
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, ProjectResponse{ID: p.ID, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}
