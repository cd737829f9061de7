package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/siftlog/sift/internal/auth"
	"github.com/siftlog/sift/internal/detail"
	"github.com/siftlog/sift/internal/index"
	"github.com/siftlog/sift/internal/observability"
	"github.com/siftlog/sift/internal/project"
	"github.com/siftlog/sift/internal/search"
	"github.com/siftlog/sift/internal/store"
	"github.com/siftlog/sift/pkg/types"
)

type apiFixture struct {
	handler http.Handler
	ix      *index.Index
}

const (
	testUser     = "alice"
	testPassword = "correct horse"
	testProject  = "proj-1"
	testAPIKey   = "ingest-key-1"
)

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "sift.db"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	secret := []byte("api-test-secret")

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	authStore := auth.NewStore(db)
	require.NoError(t, authStore.Create(ctx, &auth.Credential{
		Username:     testUser,
		PasswordHash: string(hash),
		SubjectID:    "subj-1",
	}))

	registry := project.NewRegistry(db)
	require.NoError(t, registry.Create(ctx, types.Project{ID: testProject, Name: "Checkout"}, testAPIKey))
	require.NoError(t, registry.Grant(ctx, testProject, "subj-1"))

	ix, err := index.Open(ctx, db, nil)
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	svc := auth.NewService(authStore, auth.Config{
		Secret:   secret,
		TokenTTL: time.Hour,
		Issuer:   "sift-test",
	}, nil)

	handler := NewRouter(RouterDeps{
		Sessions: svc,
		Authn:    svc,
		Registry: registry,
		Engine:   search.NewEngine(ix, observability.NewSearchStats(time.Hour), nil),
		Detail:   detail.NewService(db, secret, 3, nil),
		Index:    ix,
		Metrics:  metrics,
	})
	return &apiFixture{handler: handler, ix: ix}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) login(t *testing.T) string {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Username: testUser, Password: testPassword})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (f *apiFixture) seed(t *testing.T, name string, ts int64, attrs map[string]string) {
	t.Helper()
	require.NoError(t, f.ix.Ingest(context.Background(), types.Record{
		ProjectID:  testProject,
		Name:       name,
		Timestamp:  ts,
		Attributes: attrs,
	}))
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Username: testUser, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CREDENTIALS", resp.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestLogin_UnknownUserSameShape(t *testing.T) {
	f := newFixture(t)

	wrongPw := f.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Username: testUser, Password: "wrong"})
	unknown := f.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Username: "nobody", Password: "wrong"})

	assert.Equal(t, wrongPw.Code, unknown.Code)
	var a, b ErrorResponse
	require.NoError(t, json.Unmarshal(wrongPw.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(unknown.Body.Bytes(), &b))
	assert.Equal(t, a.Error, b.Error)
	assert.Equal(t, a.Code, b.Code)
}

func TestProjects_RequiresToken(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/v1/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodGet, "/v1/projects", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProjects_ListsMemberships(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	rr := f.do(t, http.MethodGet, "/v1/projects", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var projects []ProjectResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, testProject, projects[0].ID)
	assert.Equal(t, "Checkout", projects[0].Name)
}

func TestSearch_HappyPath(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	f.seed(t, "login", 100, nil)
	f.seed(t, "login", 300, nil)
	f.seed(t, "click", 200, nil)

	rr := f.do(t, http.MethodPost, "/v1/search", token,
		SearchRequest{ProjectID: testProject})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "login", resp.Events[0].Name)
	assert.Equal(t, int64(2), resp.Events[0].Count)
	assert.Equal(t, int64(300), resp.Events[0].LastSeen)
}

func TestSearch_ForbiddenProject(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	rr := f.do(t, http.MethodPost, "/v1/search", token,
		SearchRequest{ProjectID: "someone-elses"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ACCESS_DENIED", resp.Code)
}

func TestSearch_WithFilters(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	f.seed(t, "login", 100, map[string]string{"browser": "firefox"})
	f.seed(t, "login", 200, map[string]string{"browser": "chrome"})

	rr := f.do(t, http.MethodPost, "/v1/search", token, SearchRequest{
		ProjectID: testProject,
		Filters:   map[string]string{"browser": "firefox"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, int64(1), resp.Events[0].Count)
}

func TestDetail_PaginatesWithCursor(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	for i := int64(1); i <= 5; i++ {
		f.seed(t, "click", i*100, nil)
	}

	rr := f.do(t, http.MethodPost, "/v1/detail", token,
		DetailRequest{ProjectID: testProject, EventName: "click"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var page1 DetailResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page1))
	require.Len(t, page1.Entries, 3)
	assert.Equal(t, int64(500), page1.Entries[0].Timestamp)
	require.NotEmpty(t, page1.NextCursor)

	rr = f.do(t, http.MethodPost, "/v1/detail", token,
		DetailRequest{ProjectID: testProject, EventName: "click", Cursor: page1.NextCursor})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var page2 DetailResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page2))
	require.Len(t, page2.Entries, 2)
	assert.Equal(t, int64(200), page2.Entries[0].Timestamp)
	assert.Empty(t, page2.NextCursor)
}

func TestDetail_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.seed(t, "click", 100, nil)

	rr := f.do(t, http.MethodPost, "/v1/detail", token,
		DetailRequest{ProjectID: testProject, EventName: "missing"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDetail_TamperedCursor(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.seed(t, "click", 100, nil)

	rr := f.do(t, http.MethodPost, "/v1/detail", token,
		DetailRequest{ProjectID: testProject, EventName: "click", Cursor: "bogus.cursor"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CURSOR", resp.Code)
}

func TestIngest_AcceptsBatch(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/v1/ingest", "", IngestRequest{
		ProjectID: testProject,
		APIKey:    testAPIKey,
		Events: []IngestEvent{
			{Name: "signup", Timestamp: 100},
			{Name: "signup", Timestamp: 200, Attributes: map[string]string{"plan": "pro"}},
		},
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Accepted)

	sum, ok := f.ix.Summary(testProject, "signup")
	require.True(t, ok)
	assert.Equal(t, int64(2), sum.Count)
}

func TestIngest_RejectsBadKey(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/v1/ingest", "", IngestRequest{
		ProjectID: testProject,
		APIKey:    "wrong-key",
		Events:    []IngestEvent{{Name: "signup", Timestamp: 100}},
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	_, ok := f.ix.Summary(testProject, "signup")
	assert.False(t, ok)
}

func TestIngest_RejectsEmptyBatch(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/v1/ingest", "", IngestRequest{
		ProjectID: testProject,
		APIKey:    testAPIKey,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRequestID_EchoedInHeader(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewBufferString("{}"))
	req.Header.Set("X-Request-ID", "fixed-id")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	assert.Equal(t, "fixed-id", rr.Header().Get("X-Request-ID"))
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	rr := f.do(t, http.MethodGet, "/v1/search", token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
