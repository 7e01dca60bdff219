package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/scribe/apps/server/internal/drafts"
	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
	"github.com/openscribe/scribe/apps/server/internal/handler"
	"github.com/openscribe/scribe/apps/server/internal/platform/csrf"
	"github.com/openscribe/scribe/apps/server/internal/platform/github"
	"github.com/openscribe/scribe/apps/server/internal/platform/validation"
	"github.com/openscribe/scribe/apps/server/internal/proposals"
	"github.com/openscribe/scribe/apps/server/internal/workspace"
	"github.com/openscribe/scribe/pkg/api"
	"github.com/openscribe/scribe/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ─── Stubs ────────────────────────────────────────────────────────────────────

type staticProvider struct {
	client gitrepo.Client
}

func (p staticProvider) ClientFor(context.Context, string, string) (gitrepo.Client, error) {
	return p.client, nil
}

type memProposalStore struct {
	mu sync.Mutex
	m  map[string]api.Proposal
}

func (s *memProposalStore) Save(_ context.Context, p api.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[p.RepoFullName+"#"+p.ID] = p
	return nil
}

func (s *memProposalStore) Get(_ context.Context, repo, id string) (*api.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[repo+"#"+id]
	if !ok {
		return nil, nil //nolint:nilnil // matches the store contract
	}
	return &p, nil
}

func (s *memProposalStore) List(_ context.Context, repo string) ([]api.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []api.Proposal
	for _, p := range s.m {
		if p.RepoFullName == repo {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memProposalStore) SetStatus(_ context.Context, repo, id string, status api.ProposalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.m[repo+"#"+id]; ok {
		p.Status = status
		s.m[repo+"#"+id] = p
	}
	return nil
}

// ─── Harness ─────────────────────────────────────────────────────────────────

// client wraps a router plus the cookies of one browser session.
type client struct {
	t       *testing.T
	router  *gin.Engine
	cookies []*http.Cookie
	csrf    string
}

type harness struct {
	client *client
	host   *github.InMem
	store  drafts.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	host := github.NewInMem()
	host.SetFile("acme", "handbook", "docs/intro.md", "# Intro\n")
	host.SetFile("acme", "handbook", "docs/guide.md", "# Guide\n")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := drafts.NewRedisStore(rdb)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := staticProvider{host}
	wsvc := workspace.NewService(workspace.NewRegistry(), store, provider, log)
	psvc := proposals.NewService(provider, &memProposalStore{m: map[string]api.Proposal{}}, nil, log,
		"Scribe", "https://scribe.example.com")

	router := gin.New()
	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)
	router.Use(mw)
	handler.RegisterRoutes(router, wsvc, psvc, handler.NewSessions(), log)

	c := &client{t: t, router: router}
	c.handshake()
	return &harness{client: c, host: host, store: store}
}

// handshake performs the initial GET /session and captures the cookies.
func (c *client) handshake() {
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/session", nil))
	require.Equal(c.t, http.StatusOK, w.Code)
	c.cookies = w.Result().Cookies()
	for _, ck := range c.cookies {
		if ck.Name == csrf.CookieName {
			c.csrf = ck.Value
		}
	}
	require.NotEmpty(c.t, c.csrf)
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrf.HeaderName, c.csrf)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
