// Package gitrepo defines the ports the proposal pipeline and the workspace
// handlers depend on to interact with a git hosting provider. The platform
// adapter in internal/platform/github implements them with the real API; an
// in-memory fake backs the unit tests.
package gitrepo

import (
	"context"
	"fmt"
)

// FileContent is a file retrieved from the hosting provider. VersionToken is
// an opaque content identifier used to detect upstream changes; it is never
// shown to end users.
type FileContent struct {
	Path         string
	Content      string // decoded content (not base64)
	VersionToken string
}

// DirEntry is a file or directory returned by a directory listing.
type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int64  `json:"size"`
}

// BranchRef is a resolved branch reference.
type BranchRef struct {
	Ref string // e.g. "refs/heads/main"
	SHA string // commit SHA the ref points at
}

// CommitInfo is the slice of a commit object the pipeline needs.
type CommitInfo struct {
	SHA     string
	TreeSHA string
}

// BlobEncoding selects how blob content is transmitted.
type BlobEncoding string

// Blob encodings.
const (
	EncodingUTF8   BlobEncoding = "utf-8"
	EncodingBase64 BlobEncoding = "base64"
)

// TreeEntry is one path in a tree to be created. Mode is always a regular
// file here; the pipeline never produces executables or submodules.
type TreeEntry struct {
	Path    string
	BlobSHA string
}

// NewCommit describes a commit object to create.
type NewCommit struct {
	Message   string
	TreeSHA   string
	ParentSHA string
}

// PullRequestSpec describes a pull request to open.
type PullRequestSpec struct {
	Title string
	Body  string
	Head  string // branch name, without refs/heads/
	Base  string // branch name, without refs/heads/
}

// PullRequestInfo is the provider's view of a pull request, including the
// asynchronously computed mergeability fields. Mergeable is nil while the
// provider is still computing it.
type PullRequestInfo struct {
	Number         int
	HTMLURL        string
	State          string // "open" or "closed"
	Merged         bool
	Mergeable      *bool
	MergeableState string // e.g. "clean", "dirty", "unknown"
}

// ConflictError reports the provider's 422 from pull request creation, which
// covers both a genuine branch conflict and a no-diff pull request.
type ConflictError struct {
	Owner string
	Repo  string
	Head  string
}

// Error implements the error interface.
func (e ConflictError) Error() string {
	return fmt.Sprintf("pull request for %s/%s from %s conflicts or has no changes", e.Owner, e.Repo, e.Head)
}

// Reader covers everything the workspace and changeset layers read from the
// provider.
type Reader interface {
	// GetFile fetches a single file, returning nil when it does not exist.
	GetFile(ctx context.Context, owner, repo, path string) (*FileContent, error)
	// ListDir returns the immediate children of a directory.
	ListDir(ctx context.Context, owner, repo, path string) ([]DirEntry, error)
	// GetDefaultBranchRef resolves the repository's default branch, returning
	// nil when the repository is empty or inaccessible.
	GetDefaultBranchRef(ctx context.Context, owner, repo string) (*BranchRef, error)
	// GetCommit fetches a commit object.
	GetCommit(ctx context.Context, owner, repo, sha string) (*CommitInfo, error)
}

// Committer covers the low-level git data primitives the commit pipeline
// sequences. No working directory, no local git process.
type Committer interface {
	CreateBlob(ctx context.Context, owner, repo, content string, encoding BlobEncoding) (string, error)
	CreateTree(ctx context.Context, owner, repo, baseTreeSHA string, entries []TreeEntry) (string, error)
	CreateCommit(ctx context.Context, owner, repo string, commit NewCommit) (string, error)
	CreateRef(ctx context.Context, owner, repo, ref, sha string) error
	// OpenPullRequest opens a PR, returning ConflictError on the provider's
	// 422 (branch conflict or empty diff).
	OpenPullRequest(ctx context.Context, owner, repo string, spec PullRequestSpec) (*PullRequestInfo, error)
	// GetPullRequest fetches a PR with its mergeability fields.
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequestInfo, error)
}

// Client is the full provider surface.
type Client interface {
	Reader
	Committer
}
