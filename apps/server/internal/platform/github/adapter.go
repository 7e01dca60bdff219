package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gogithub "github.com/google/go-github/v75/github"

	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
)

// Adapter wraps a go-github client and implements gitrepo.Client. A single
// instance covers both workspace reads (file and directory content) and the
// commit pipeline's git data calls.
type Adapter struct {
	gh *gogithub.Client
}

// Compile-time check: *Adapter implements gitrepo.Client.
var _ gitrepo.Client = (*Adapter)(nil)

// New creates an Adapter from an authenticated *github.Client.
func New(gh *gogithub.Client) *Adapter {
	return &Adapter{gh: gh}
}

// GetFile fetches a single file and returns its decoded content plus the
// provider's content identifier. A missing file returns nil, not an error.
func (a *Adapter) GetFile(ctx context.Context, owner, repo, path string) (*gitrepo.FileContent, error) {
	fc, _, _, err := a.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if isNotFound(err) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get contents %s/%s/%s: %w", owner, repo, path, err)
	}
	if fc == nil {
		return nil, fmt.Errorf("path %s is a directory, not a file", path)
	}
	content, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode content %s: %w", path, err)
	}
	return &gitrepo.FileContent{
		Path:         path,
		Content:      content,
		VersionToken: fc.GetSHA(),
	}, nil
}

// ListDir returns the immediate children of a directory.
func (a *Adapter) ListDir(ctx context.Context, owner, repo, path string) ([]gitrepo.DirEntry, error) {
	_, dir, _, err := a.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return nil, fmt.Errorf("list dir %s/%s/%s: %w", owner, repo, path, err)
	}
	entries := make([]gitrepo.DirEntry, 0, len(dir))
	for _, e := range dir {
		entries = append(entries, gitrepo.DirEntry{
			Name: e.GetName(),
			Path: e.GetPath(),
			Type: e.GetType(),
			Size: int64(e.GetSize()),
		})
	}
	return entries, nil
}

// GetDefaultBranchRef resolves the default branch name and its current HEAD.
func (a *Adapter) GetDefaultBranchRef(ctx context.Context, owner, repo string) (*gitrepo.BranchRef, error) {
	r, _, err := a.gh.Repositories.Get(ctx, owner, repo)
	if isNotFound(err) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get repo %s/%s: %w", owner, repo, err)
	}
	branch := r.GetDefaultBranch()

	ref, _, err := a.gh.Git.GetRef(ctx, owner, repo, "refs/heads/"+branch)
	if isNotFound(err) {
		return nil, nil //nolint:nilnil // empty repository
	}
	if err != nil {
		return nil, fmt.Errorf("get ref %s: %w", branch, err)
	}
	return &gitrepo.BranchRef{
		Ref: ref.GetRef(),
		SHA: ref.Object.GetSHA(),
	}, nil
}

// GetCommit fetches a commit object to obtain its tree SHA.
func (a *Adapter) GetCommit(ctx context.Context, owner, repo, sha string) (*gitrepo.CommitInfo, error) {
	commit, _, err := a.gh.Git.GetCommit(ctx, owner, repo, sha)
	if err != nil {
		return nil, fmt.Errorf("get commit %s: %w", sha, err)
	}
	return &gitrepo.CommitInfo{
		SHA:     commit.GetSHA(),
		TreeSHA: commit.GetTree().GetSHA(),
	}, nil
}

// CreateBlob creates a git blob and returns its SHA.
func (a *Adapter) CreateBlob(ctx context.Context, owner, repo, content string, encoding gitrepo.BlobEncoding) (string, error) {
	blob, _, err := a.gh.Git.CreateBlob(ctx, owner, repo, gogithub.Blob{
		Content:  gogithub.Ptr(content),
		Encoding: gogithub.Ptr(string(encoding)),
	})
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	return blob.GetSHA(), nil
}

// CreateTree creates a tree anchored on baseTreeSHA with the given entries,
// all as regular files. An entry without a blob SHA marshals with a null
// sha, which the git data API interprets as deleting that path.
func (a *Adapter) CreateTree(ctx context.Context, owner, repo, baseTreeSHA string, entries []gitrepo.TreeEntry) (string, error) {
	treeEntries := make([]*gogithub.TreeEntry, 0, len(entries))
	for _, e := range entries {
		te := &gogithub.TreeEntry{
			Path: gogithub.Ptr(e.Path),
			Mode: gogithub.Ptr("100644"),
			Type: gogithub.Ptr("blob"),
		}
		if e.BlobSHA != "" {
			te.SHA = gogithub.Ptr(e.BlobSHA)
		}
		treeEntries = append(treeEntries, te)
	}
	tree, _, err := a.gh.Git.CreateTree(ctx, owner, repo, baseTreeSHA, treeEntries)
	if err != nil {
		return "", fmt.Errorf("create tree: %w", err)
	}
	return tree.GetSHA(), nil
}

// CreateCommit creates a commit object and returns its SHA.
func (a *Adapter) CreateCommit(ctx context.Context, owner, repo string, c gitrepo.NewCommit) (string, error) {
	commit, _, err := a.gh.Git.CreateCommit(ctx, owner, repo, gogithub.Commit{
		Message: gogithub.Ptr(c.Message),
		Tree:    &gogithub.Tree{SHA: gogithub.Ptr(c.TreeSHA)},
		Parents: []*gogithub.Commit{{SHA: gogithub.Ptr(c.ParentSHA)}},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}
	return commit.GetSHA(), nil
}

// CreateRef creates a fully-qualified ref pointing at sha.
func (a *Adapter) CreateRef(ctx context.Context, owner, repo, ref, sha string) error {
	_, _, err := a.gh.Git.CreateRef(ctx, owner, repo, gogithub.CreateRef{
		Ref: ref,
		SHA: sha,
	})
	if err != nil {
		return fmt.Errorf("create ref %s: %w", ref, err)
	}
	return nil
}

// OpenPullRequest opens a pull request. The provider's 422 — which covers
// both a head-branch conflict and an empty diff — is surfaced as a typed
// ConflictError so callers can distinguish it from transport failures.
func (a *Adapter) OpenPullRequest(ctx context.Context, owner, repo string, spec gitrepo.PullRequestSpec) (*gitrepo.PullRequestInfo, error) {
	pr, _, err := a.gh.PullRequests.Create(ctx, owner, repo, &gogithub.NewPullRequest{
		Title: gogithub.Ptr(spec.Title),
		Body:  gogithub.Ptr(spec.Body),
		Head:  gogithub.Ptr(spec.Head),
		Base:  gogithub.Ptr(spec.Base),
	})
	if isUnprocessable(err) {
		return nil, gitrepo.ConflictError{Owner: owner, Repo: repo, Head: spec.Head}
	}
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}
	return prInfo(pr), nil
}

// GetPullRequest fetches a pull request with its mergeability fields.
func (a *Adapter) GetPullRequest(ctx context.Context, owner, repo string, number int) (*gitrepo.PullRequestInfo, error) {
	pr, _, err := a.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("get pull request #%d: %w", number, err)
	}
	return prInfo(pr), nil
}

func prInfo(pr *gogithub.PullRequest) *gitrepo.PullRequestInfo {
	return &gitrepo.PullRequestInfo{
		Number:         pr.GetNumber(),
		HTMLURL:        pr.GetHTMLURL(),
		State:          pr.GetState(),
		Merged:         pr.GetMerged(),
		Mergeable:      pr.Mergeable,
		MergeableState: pr.GetMergeableState(),
	}
}

func isNotFound(err error) bool {
	var errResp *gogithub.ErrorResponse
	return errors.As(err, &errResp) &&
		errResp.Response != nil &&
		errResp.Response.StatusCode == http.StatusNotFound
}

func isUnprocessable(err error) bool {
	var errResp *gogithub.ErrorResponse
	return errors.As(err, &errResp) &&
		errResp.Response != nil &&
		errResp.Response.StatusCode == http.StatusUnprocessableEntity
}
