package applications

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/server/middleware"
)

func newTestRouter(t *testing.T) (*gin.Engine, fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	r := gin.New()
	g := r.Group("/")
	g.Use(middleware.Auth())
	NewHandler(f.svc).RegisterRoutes(g)
	return r, f
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserIDHeader, user)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func TestApplicationRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := doJSON(t, r, http.MethodPost, "/jobs/job-1/applications", "cand-1", nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	created := decode[Response](t, resp)
	assert.Equal(t, pipeline.StatusApplied, created.Status)
	assert.Equal(t, int64(1), created.Version)

	resp = doJSON(t, r, http.MethodPost, "/jobs/job-1/applications", "cand-1", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = doJSON(t, r, http.MethodGet, "/applications/"+created.ApplicationID, "cand-2", nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = doJSON(t, r, http.MethodGet, "/me/applications", "cand-1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]Response](t, resp), 1)

	resp = doJSON(t, r, http.MethodGet, "/jobs/job-1/applications?status=applied", "host-1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]Response](t, resp), 1)

	resp = doJSON(t, r, http.MethodGet, "/jobs/job-1/applications?status=bogus", "host-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTransitionRoutes(t *testing.T) {
	r, _ := newTestRouter(t)
	resp := doJSON(t, r, http.MethodPost, "/jobs/job-1/applications", "cand-1", nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	created := decode[Response](t, resp)
	base := "/applications/" + created.ApplicationID

	resp = doJSON(t, r, http.MethodPost, base+"/invite", "host-1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, resp.Code, "version is mandatory")

	resp = doJSON(t, r, http.MethodPost, base+"/shortlist", "host-1", gin.H{"version": created.Version})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), pipeline.ErrorCodeInvalidTransition)

	resp = doJSON(t, r, http.MethodPost, base+"/invite", "host-1", gin.H{"version": created.Version})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	invited := decode[Response](t, resp)
	assert.Equal(t, pipeline.StatusInterviewInvited, invited.Status)

	resp = doJSON(t, r, http.MethodPost, base+"/reject", "host-1", gin.H{"version": created.Version})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), pipeline.ErrorCodeVersionConflict)

	resp = doJSON(t, r, http.MethodPost, base+"/reject", "cand-1", gin.H{"version": invited.Version})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = doJSON(t, r, http.MethodPost, base+"/decline", "cand-1", gin.H{"version": invited.Version})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, pipeline.StatusDeclined, decode[Response](t, resp).Status)
}
