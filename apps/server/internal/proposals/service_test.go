package proposals_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
	"github.com/openscribe/scribe/apps/server/internal/platform/github"
	"github.com/openscribe/scribe/apps/server/internal/proposals"
	"github.com/openscribe/scribe/pkg/api"
)

// ─── Test doubles ────────────────────────────────────────────────────────────

type memStore struct {
	mu sync.Mutex
	m  map[string]api.Proposal
}

func newMemStore() *memStore { return &memStore{m: map[string]api.Proposal{}} }

func (s *memStore) key(repo, id string) string { return repo + "#" + id }

func (s *memStore) Save(_ context.Context, p api.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[s.key(p.RepoFullName, p.ID)] = p
	return nil
}

func (s *memStore) Get(_ context.Context, repo, id string) (*api.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[s.key(repo, id)]
	if !ok {
		return nil, nil //nolint:nilnil // matches the store contract
	}
	return &p, nil
}

func (s *memStore) List(_ context.Context, repo string) ([]api.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []api.Proposal
	for _, p := range s.m {
		if p.RepoFullName == repo {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) SetStatus(_ context.Context, repo, id string, status api.ProposalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[s.key(repo, id)]
	if !ok {
		return nil
	}
	p.Status = status
	s.m[s.key(repo, id)] = p
	return nil
}

type staticProvider struct {
	client gitrepo.Client
}

func (p staticProvider) ClientFor(context.Context, string, string) (gitrepo.Client, error) {
	return p.client, nil
}

type memWorkflow struct {
	started []string
}

func (w *memWorkflow) StartStatusWorkflow(_ context.Context, repo, id string) error {
	w.started = append(w.started, repo+"#"+id)
	return nil
}

func newService(host *github.InMem, store proposals.Store, wf proposals.WorkflowEngine) *proposals.Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return proposals.NewService(staticProvider{host}, store, wf, log, "Scribe", "https://scribe.example.com")
}

// ─── Submission ──────────────────────────────────────────────────────────────

func TestSubmit_RecordsProposalAndStartsWorkflow(t *testing.T) {
	host := github.NewInMem()
	store := newMemStore()
	wf := &memWorkflow{}
	svc := newService(host, store, wf)

	cs, _ := fullChangeset()
	cs.Assets = nil
	p, err := svc.Submit(context.Background(), api.CreateProposalRequest{
		Changeset:   cs,
		Title:       "Update the guide",
		Description: "Reworked intro.",
	}, testAuthor)
	require.NoError(t, err)

	assert.Equal(t, "1", p.ID)
	assert.Equal(t, "acme/handbook", p.RepoFullName)
	assert.Equal(t, api.ProposalStatusPending, p.Status)
	assert.Equal(t, "octocat", p.AuthorLogin)
	assert.NotEmpty(t, p.BranchName)

	stored, err := store.Get(context.Background(), "acme/handbook", "1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, p.Title, stored.Title)

	assert.Equal(t, []string{"acme/handbook#1"}, wf.started)
}

func TestSubmit_DecodesAssetPayloads(t *testing.T) {
	host := github.NewInMem()
	svc := newService(host, newMemStore(), nil)

	cs := api.Changeset{
		RepoFullName: "acme/handbook",
		Created:      map[string]string{"docs/page.md": "body"},
		Assets:       []string{"docs/assets/pic.png"},
	}
	_, err := svc.Submit(context.Background(), api.CreateProposalRequest{
		Changeset: cs,
		Title:     "Add picture",
		Assets:    map[string]string{"docs/assets/pic.png": "iVBORw0KGgo="},
	}, testAuthor)
	require.NoError(t, err)

	var sawAsset bool
	for _, b := range host.Blobs() {
		if b.Encoding == gitrepo.EncodingBase64 {
			sawAsset = true
		}
	}
	assert.True(t, sawAsset)
}

func TestSubmit_RejectsBadInput(t *testing.T) {
	host := github.NewInMem()
	svc := newService(host, newMemStore(), nil)
	valid := api.Changeset{
		RepoFullName: "acme/handbook",
		Modified:     map[string]string{"docs/a.md": "x"},
	}

	cases := []struct {
		name string
		req  api.CreateProposalRequest
	}{
		{"blank title", api.CreateProposalRequest{Changeset: valid, Title: "   "}},
		{"oversized title", api.CreateProposalRequest{Changeset: valid, Title: strings.Repeat("a", 300)}},
		{"empty changeset", api.CreateProposalRequest{
			Changeset: api.Changeset{RepoFullName: "acme/handbook"}, Title: "ok",
		}},
		{"unsafe path", api.CreateProposalRequest{
			Changeset: api.Changeset{
				RepoFullName: "acme/handbook",
				Modified:     map[string]string{"../../etc/passwd": "x"},
			},
			Title: "ok",
		}},
		{"malformed repo name", api.CreateProposalRequest{
			Changeset: api.Changeset{
				RepoFullName: "not-a-repo",
				Modified:     map[string]string{"docs/a.md": "x"},
			},
			Title: "ok",
		}},
		{"bad asset base64", api.CreateProposalRequest{
			Changeset: api.Changeset{
				RepoFullName: "acme/handbook",
				Modified:     map[string]string{"docs/a.md": "x"},
				Assets:       []string{"docs/assets/p.png"},
			},
			Title:  "ok",
			Assets: map[string]string{"docs/assets/p.png": "%%%not-base64%%%"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tc.req, testAuthor)
			var vf proposals.ValidationFailedError
			require.ErrorAs(t, err, &vf)
			assert.NotEmpty(t, vf.Errors)
			assert.Empty(t, host.PRs())
		})
	}
}

// ─── Status ──────────────────────────────────────────────────────────────────

func TestCheckMergeability_UpdatesStoredStatus(t *testing.T) {
	host := github.NewInMem()
	store := newMemStore()
	svc := newService(host, store, nil)

	cs, _ := fullChangeset()
	cs.Assets = nil
	p, err := svc.Submit(context.Background(), api.CreateProposalRequest{
		Changeset: cs, Title: "Update the guide",
	}, testAuthor)
	require.NoError(t, err)

	host.Mergeability = &gitrepo.PullRequestInfo{Merged: true, State: "closed"}
	resp, err := svc.CheckMergeability(context.Background(), "acme/handbook", p.ID)
	require.NoError(t, err)
	assert.Equal(t, api.ProposalStatusPublished, resp.Status)

	stored, err := store.Get(context.Background(), "acme/handbook", p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, api.ProposalStatusPublished, stored.Status)
}

func TestCheckMergeability_ConflictCarriesMessage(t *testing.T) {
	host := github.NewInMem()
	svc := newService(host, newMemStore(), nil)
	host.Mergeability = &gitrepo.PullRequestInfo{
		State: "open", Mergeable: boolPtr(false), MergeableState: "dirty",
	}

	resp, err := svc.CheckMergeability(context.Background(), "acme/handbook", "41")
	require.NoError(t, err)
	assert.Equal(t, api.ProposalStatusConflict, resp.Status)
	assert.True(t, resp.HasConflicts)
	assert.NotEmpty(t, resp.Message)
}

func TestGet_NotFound(t *testing.T) {
	svc := newService(github.NewInMem(), newMemStore(), nil)

	_, err := svc.Get(context.Background(), "acme/handbook", "999")
	var nf proposals.ProposalNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "999", nf.ID)
}

func TestList_FiltersByRepo(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), api.Proposal{ID: "1", RepoFullName: "acme/handbook"}))
	require.NoError(t, store.Save(context.Background(), api.Proposal{ID: "2", RepoFullName: "acme/other"}))
	svc := newService(github.NewInMem(), store, nil)

	ps, err := svc.List(context.Background(), "acme/handbook")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "1", ps[0].ID)
}
