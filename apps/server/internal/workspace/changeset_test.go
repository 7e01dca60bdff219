package workspace_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/scribe/apps/server/internal/workspace"
	"github.com/openscribe/scribe/pkg/api"
)

// fakeDrafts implements workspace.DraftReader over a map.
type fakeDrafts struct {
	content map[string]string // "repo:path" -> content
}

func (f *fakeDrafts) DraftContent(_ context.Context, repo, path string) (string, bool, error) {
	c, ok := f.content[repo+":"+path]
	return c, ok, nil
}

// fakeUpstream implements workspace.UpstreamReader over a map.
type fakeUpstream struct {
	content map[string]string
}

func (f *fakeUpstream) FileContent(_ context.Context, repo, path string) (string, bool, error) {
	c, ok := f.content[repo+":"+path]
	return c, ok, nil
}

// ─── BuildChangeset ──────────────────────────────────────────────────────────

func TestBuildChangeset_PartitionsFiles(t *testing.T) {
	ws := newWorkspace().OpenFile("docs/a.md", "original", "tok-1")
	ws, _ = ws.UpdateFileContent("docs/a.md", "edited")
	ws, _ = ws.CreateFile("docs/b.md", "brand new")
	ws = ws.OpenFile("docs/clean.md", "untouched", "tok-2")
	ws, _ = ws.DeleteFile("docs/gone.md")
	ws = ws.AddAsset("docs/assets/pic.png", "image/png", 10)

	cs := workspace.BuildChangeset(ws)

	assert.Equal(t, "acme/handbook", cs.RepoFullName)
	assert.Equal(t, map[string]string{"docs/a.md": "edited"}, cs.Modified)
	assert.Equal(t, map[string]string{"docs/b.md": "brand new"}, cs.Created)
	assert.Equal(t, []string{"docs/gone.md"}, cs.Deleted)
	assert.Equal(t, []string{"docs/assets/pic.png"}, cs.Assets)
}

func TestBuildChangeset_AutosavedFilesCount(t *testing.T) {
	ws := newWorkspace().OpenFile("docs/a.md", "original", "tok-1")
	ws, _ = ws.UpdateFileContent("docs/a.md", "edited")
	ws, _ = ws.MarkFileAutosaved("docs/a.md")

	cs := workspace.BuildChangeset(ws)
	assert.Contains(t, cs.Modified, "docs/a.md")
}

func TestBuildChangeset_CleanWorkspaceIsEmpty(t *testing.T) {
	ws := newWorkspace().OpenFile("docs/a.md", "original", "tok-1")
	cs := workspace.BuildChangeset(ws)
	assert.Empty(t, cs.Modified)
	assert.Empty(t, cs.Created)
	assert.Empty(t, cs.Deleted)
	assert.Empty(t, cs.Assets)
}

// ─── ExpandRenames fallback chain ────────────────────────────────────────────

func TestExpandRenames_UsesOpenBufferFirst(t *testing.T) {
	ws, _ := newWorkspace().RenameFile("docs/old.md", "docs/new.md")
	ws = ws.OpenFile("docs/new.md", "buffer content", "tok-1")

	cs := workspace.BuildChangeset(ws)
	drafts := &fakeDrafts{content: map[string]string{"acme/handbook:docs/new.md": "draft content"}}
	upstream := &fakeUpstream{content: map[string]string{}}

	require.NoError(t, workspace.ExpandRenames(context.Background(), ws, &cs, drafts, upstream))

	assert.Equal(t, "buffer content", cs.Created["docs/new.md"])
	assert.Equal(t, []string{"docs/old.md"}, cs.Deleted)
}

func TestExpandRenames_FallsBackToDraftAtNewThenOldPath(t *testing.T) {
	ws, _ := newWorkspace().RenameFile("docs/old.md", "docs/new.md")
	cs := workspace.BuildChangeset(ws)

	drafts := &fakeDrafts{content: map[string]string{"acme/handbook:docs/old.md": "old-path draft"}}
	require.NoError(t, workspace.ExpandRenames(context.Background(), ws, &cs, drafts, &fakeUpstream{}))
	assert.Equal(t, "old-path draft", cs.Created["docs/new.md"])

	// A draft at the new path wins over the old path.
	cs2 := workspace.BuildChangeset(ws)
	drafts.content["acme/handbook:docs/new.md"] = "new-path draft"
	require.NoError(t, workspace.ExpandRenames(context.Background(), ws, &cs2, drafts, &fakeUpstream{}))
	assert.Equal(t, "new-path draft", cs2.Created["docs/new.md"])
}

func TestExpandRenames_FallsBackToUpstream(t *testing.T) {
	ws, _ := newWorkspace().RenameFile("docs/old.md", "docs/new.md")
	cs := workspace.BuildChangeset(ws)

	upstream := &fakeUpstream{content: map[string]string{"acme/handbook:docs/old.md": "upstream content"}}
	require.NoError(t, workspace.ExpandRenames(context.Background(), ws, &cs, &fakeDrafts{}, upstream))
	assert.Equal(t, "upstream content", cs.Created["docs/new.md"])
}

// A rename whose source vanished upstream (and has no draft anywhere) is
// silently omitted rather than failing the whole submission.
func TestExpandRenames_MissingEverywhereIsOmitted(t *testing.T) {
	ws, _ := newWorkspace().RenameFile("docs/old.md", "docs/new.md")
	cs := workspace.BuildChangeset(ws)

	require.NoError(t, workspace.ExpandRenames(context.Background(), ws, &cs, &fakeDrafts{}, &fakeUpstream{}))
	assert.Empty(t, cs.Created)
	assert.Empty(t, cs.Deleted)
}

// ─── ValidateChangeset ───────────────────────────────────────────────────────

func emptyChangeset() api.Changeset {
	return api.Changeset{
		RepoFullName: "acme/handbook",
		Modified:     map[string]string{},
		Created:      map[string]string{},
	}
}

func TestValidateChangeset_EmptyFails(t *testing.T) {
	res := workspace.ValidateChangeset(emptyChangeset())
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "No changes to propose")
}

func TestValidateChangeset_HappyPath(t *testing.T) {
	cs := emptyChangeset()
	cs.Modified["docs/a.md"] = "text"
	cs.Created["docs/b.md"] = "text"
	cs.Deleted = []string{"docs/c.md"}
	cs.Assets = []string{"docs/assets/d.png"}

	res := workspace.ValidateChangeset(cs)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidateChangeset_RejectsUnsafePath(t *testing.T) {
	cs := emptyChangeset()
	cs.Modified["../escape.md"] = "text"

	res := workspace.ValidateChangeset(cs)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "invalid path")
}

func TestValidateChangeset_RejectsDuplicateAcrossCollections(t *testing.T) {
	cs := emptyChangeset()
	cs.Modified["docs/a.md"] = "text"
	cs.Deleted = []string{"docs/a.md"}

	res := workspace.ValidateChangeset(cs)
	assert.False(t, res.Valid)
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "docs/a.md") && strings.Contains(e, "both") {
			found = true
		}
	}
	assert.True(t, found, "expected duplicate-path error, got %v", res.Errors)
}

func TestValidateChangeset_WarnsOnManyFiles(t *testing.T) {
	cs := emptyChangeset()
	for i := 0; i < 21; i++ {
		cs.Created["docs/f"+string(rune('a'+i))+".md"] = "x"
	}

	res := workspace.ValidateChangeset(cs)
	assert.True(t, res.Valid, "warnings never block")
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "files touched")
}

func TestValidateChangeset_WarnsOnLargeContent(t *testing.T) {
	cs := emptyChangeset()
	cs.Modified["docs/huge.md"] = strings.Repeat("a", 1<<20+1)

	res := workspace.ValidateChangeset(cs)
	assert.True(t, res.Valid)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "bytes of content")
}

// Round trip: a workspace with changes always builds a valid changeset; a
// fully clean one fails with the no-changes error.
func TestChangesetRoundTrip(t *testing.T) {
	ws := newWorkspace().OpenFile("docs/a.md", "original", "tok-1")
	ws, _ = ws.UpdateFileContent("docs/a.md", "edited")
	res := workspace.ValidateChangeset(workspace.BuildChangeset(ws))
	assert.True(t, res.Valid)

	clean := newWorkspace().OpenFile("docs/a.md", "original", "tok-1")
	res = workspace.ValidateChangeset(workspace.BuildChangeset(clean))
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "No changes to propose")
}

func TestSummarizeChangeset(t *testing.T) {
	cs := emptyChangeset()
	assert.Equal(t, "no changes", workspace.SummarizeChangeset(cs))

	cs.Modified["a.md"] = "x"
	cs.Deleted = []string{"b.md"}
	got := workspace.SummarizeChangeset(cs)
	assert.Contains(t, got, "1 modified")
	assert.Contains(t, got, "1 deleted")
}
