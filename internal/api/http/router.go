package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/siftlog/sift/internal/observability"
)

// RouterDeps collects everything the API surface needs.
type RouterDeps struct {
	Sessions SessionIssuer
	Authn    Authenticator
	Registry interface {
		ProjectLister
		ProjectAuthorizer
		APIKeyVerifier
	}
	Engine  Searcher
	Detail  DetailReader
	Index   Ingester
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewRouter builds the API mux. Login and ingest sit outside the
// bearer-auth chain: login creates sessions, ingest authenticates with
// a project API key instead.
func NewRouter(deps RouterDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	base := func(endpoint string) func(http.Handler) http.Handler {
		return ChainMiddleware(
			RecoveryMiddleware(deps.Logger),
			RequestIDMiddleware,
			ContentTypeMiddleware,
			LatencyMiddleware(deps.Metrics, endpoint),
		)
	}
	authed := func(endpoint string) func(http.Handler) http.Handler {
		return ChainMiddleware(
			base(endpoint),
			BearerAuthMiddleware(deps.Authn),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/auth/login", base("login")(NewLoginHandler(deps.Sessions, deps.Metrics)))
	mux.Handle("/v1/projects", authed("projects")(NewProjectsHandler(deps.Registry)))
	mux.Handle("/v1/search", authed("search")(NewSearchHandler(deps.Registry, deps.Engine, deps.Metrics)))
	mux.Handle("/v1/detail", authed("detail")(NewDetailHandler(deps.Registry, deps.Detail, deps.Metrics)))
	mux.Handle("/v1/ingest", base("ingest")(NewIngestHandler(deps.Registry, deps.Index, deps.Metrics)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}
