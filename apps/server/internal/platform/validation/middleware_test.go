package validation_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/scribe/apps/server/internal/platform/validation"
	"github.com/openscribe/scribe/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)

	r := gin.New()
	r.Use(mw)
	// Register a catch-all so Gin doesn't 404 before the middleware runs.
	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/proposals", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.PUT("/repos/:owner/:repo/files", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/repos/:owner/:repo/files/rename", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ─── createProposal ──────────────────────────────────────────────────────────

func TestCreateProposal_MissingTitle_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/proposals",
		`{"changeset":{"repoFullName":"acme/handbook"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestCreateProposal_MissingChangeset_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/proposals", `{"title":"Update the guide"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateProposal_ValidPayload_Passes(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/proposals",
		`{"title":"Update the guide","changeset":{"repoFullName":"acme/handbook","modified":{"docs/a.md":"x"}}}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

// ─── updateFile ──────────────────────────────────────────────────────────────

func TestUpdateFile_MissingContent_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPut, "/repos/acme/handbook/files", `{"path":"docs/a.md"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateFile_ValidPayload_Passes(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPut, "/repos/acme/handbook/files",
		`{"path":"docs/a.md","content":"hello","autosave":true,"revision":3}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ─── renameFile ──────────────────────────────────────────────────────────────

func TestRenameFile_MissingNewPath_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/repos/acme/handbook/files/rename",
		`{"from":"docs/a.md"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ─── unknown routes pass through ─────────────────────────────────────────────

func TestUnknownRoute_PassesThrough(t *testing.T) {
	r := newRouter(t)
	// /healthz is not in the OpenAPI spec — should pass through silently
	w := do(r, http.MethodGet, "/healthz", ``)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ─── New() with invalid spec ──────────────────────────────────────────────────

func TestNew_InvalidSpec_ReturnsError(t *testing.T) {
	_, err := validation.New([]byte(`not yaml`))
	assert.Error(t, err)
}
