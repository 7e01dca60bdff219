package proposals_test

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
	"github.com/openscribe/scribe/apps/server/internal/platform/github"
	"github.com/openscribe/scribe/apps/server/internal/proposals"
	"github.com/openscribe/scribe/pkg/api"
)

var (
	testClock  = func() time.Time { return time.UnixMilli(1767225600000) } // 2026-01-01T00:00:00Z
	testAuthor = proposals.Author{Login: "octocat", GitHubUserID: 583231}
)

func newPipeline(host *github.InMem) *proposals.Pipeline {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return proposals.NewPipeline(host, log, "Scribe", "https://scribe.example.com").WithClock(testClock)
}

func fullChangeset() (api.Changeset, map[string][]byte) {
	cs := api.Changeset{
		RepoFullName: "acme/handbook",
		Modified:     map[string]string{"docs/guide.md": "# Guide\n\nUpdated.\n"},
		Created:      map[string]string{"docs/new-page.md": "# New Page\n"},
		Deleted:      []string{"docs/obsolete.md"},
		Assets:       []string{"docs/assets/diagram.png"},
	}
	assets := map[string][]byte{"docs/assets/diagram.png": {0x89, 0x50, 0x4e, 0x47}}
	return cs, assets
}

// ─── Happy path ──────────────────────────────────────────────────────────────

func TestPipeline_FullSequence(t *testing.T) {
	host := github.NewInMem()
	cs, assets := fullChangeset()

	res, err := newPipeline(host).Run(context.Background(), "acme", "handbook", cs,
		"Update the guide", "Reworked the intro section.", assets, testAuthor)
	require.NoError(t, err)

	assert.Equal(t, 1, res.PRNumber)
	assert.Equal(t, "https://github.com/acme/handbook/pull/1", res.PRURL)
	assert.Equal(t, "scribe/update-the-guide-1767225600000", res.BranchName)

	// Three blobs: two annotated text files, one base64 asset.
	blobs := host.Blobs()
	require.Len(t, blobs, 3)
	var textBlobs, assetBlobs int
	for _, b := range blobs {
		switch b.Encoding {
		case gitrepo.EncodingUTF8:
			textBlobs++
			assert.Contains(t, b.Content, "<!-- EDIT_HISTORY -->")
			assert.Contains(t, b.Content, "| 2026-01-01 | @octocat |")
		case gitrepo.EncodingBase64:
			assetBlobs++
			assert.Equal(t, base64.StdEncoding.EncodeToString(assets["docs/assets/diagram.png"]), b.Content)
		}
	}
	assert.Equal(t, 2, textBlobs)
	assert.Equal(t, 1, assetBlobs)

	// One tree with four entries, sorted, deletion without a blob.
	commit, ok := host.Commit(res.CommitSHA)
	require.True(t, ok)
	entries := host.Tree(commit.TreeSHA)
	require.Len(t, entries, 4)
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
		if e.Path == "docs/obsolete.md" {
			assert.Empty(t, e.BlobSHA)
		} else {
			assert.NotEmpty(t, e.BlobSHA)
		}
	}
	assert.Equal(t, []string{"docs/assets/diagram.png", "docs/guide.md", "docs/new-page.md", "docs/obsolete.md"}, paths)

	// Commit message credits the author, branch points at the commit.
	assert.Contains(t, commit.Message, "Update the guide\n\nReworked the intro section.")
	assert.Contains(t, commit.Message, "Co-authored-by: octocat <583231+octocat@users.noreply.github.com>")
	assert.Equal(t, "head-sha-0", commit.ParentSHA)
	assert.Equal(t, res.CommitSHA, host.Refs()["refs/heads/"+res.BranchName])

	// The PR targets the default branch and carries the attribution footer.
	specs := host.PRSpecs()
	require.Len(t, specs, 1)
	assert.Equal(t, "Update the guide", specs[0].Title)
	assert.Equal(t, res.BranchName, specs[0].Head)
	assert.Equal(t, "main", specs[0].Base)
	assert.Contains(t, specs[0].Body, "Reworked the intro section.")
	assert.Contains(t, specs[0].Body, "Proposed by [@octocat](https://github.com/octocat) via [Scribe](https://scribe.example.com).")
}

func TestPipeline_SlugCollapsesPunctuation(t *testing.T) {
	host := github.NewInMem()
	cs := api.Changeset{
		RepoFullName: "acme/handbook",
		Modified:     map[string]string{"docs/a.md": "x"},
	}

	res, err := newPipeline(host).Run(context.Background(), "acme", "handbook", cs,
		"Fix: broken link (again)!!", "", nil, testAuthor)
	require.NoError(t, err)
	assert.Equal(t, "scribe/fix-broken-link-again-1767225600000", res.BranchName)
}

// ─── Failure semantics ───────────────────────────────────────────────────────

func TestPipeline_AbortsOnStepFailure(t *testing.T) {
	for _, step := range []string{"blob", "tree", "commit", "ref", "pr"} {
		t.Run(step, func(t *testing.T) {
			host := github.NewInMem()
			host.FailStep = step
			cs, assets := fullChangeset()

			_, err := newPipeline(host).Run(context.Background(), "acme", "handbook", cs,
				"Update the guide", "", assets, testAuthor)
			require.Error(t, err)

			// Nothing past the failed step runs, so no PR ever opens and no
			// branch survives unless ref creation itself succeeded.
			assert.Empty(t, host.PRs())
			if step != "pr" {
				assert.Empty(t, host.Refs())
			}
		})
	}
}

func TestPipeline_ConflictOnPRIsTyped(t *testing.T) {
	host := github.NewInMem()
	host.ConflictOnPR = true
	cs, assets := fullChangeset()

	_, err := newPipeline(host).Run(context.Background(), "acme", "handbook", cs,
		"Update the guide", "", assets, testAuthor)

	var conflict gitrepo.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "acme", conflict.Owner)
	assert.Equal(t, "scribe/update-the-guide-1767225600000", conflict.Head)
}

func TestPipeline_MissingAssetBytes(t *testing.T) {
	host := github.NewInMem()
	cs, _ := fullChangeset()

	_, err := newPipeline(host).Run(context.Background(), "acme", "handbook", cs,
		"Update the guide", "", nil, testAuthor)

	var missing proposals.AssetMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "docs/assets/diagram.png", missing.Path)
	assert.Empty(t, host.Refs())
}
