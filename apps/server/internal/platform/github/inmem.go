package github

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
)

// InMem is an in-memory gitrepo.Client for unit tests. It records every git
// data object the pipeline creates so tests can assert on the exact
// blob/tree/commit/ref/PR sequence, and can inject failures per step.
type InMem struct {
	mu sync.Mutex

	files         map[string]string // "owner/repo/path" -> content
	defaultBranch string
	headSHA       string
	baseTreeSHA   string

	blobs   map[string]InMemBlob // sha -> blob
	trees   map[string][]gitrepo.TreeEntry
	commits map[string]gitrepo.NewCommit
	refs    map[string]string // ref -> sha
	prs     []gitrepo.PullRequestInfo
	specs   []gitrepo.PullRequestSpec

	nextID int

	// FailStep, when non-empty, makes the named step ("blob", "tree",
	// "commit", "ref", "pr") return an error.
	FailStep string
	// ConflictOnPR makes OpenPullRequest return a ConflictError.
	ConflictOnPR bool
	// Mergeability overrides the fields returned by GetPullRequest.
	Mergeability *gitrepo.PullRequestInfo
}

// InMemBlob is a recorded blob with its transmitted encoding.
type InMemBlob struct {
	Content  string
	Encoding gitrepo.BlobEncoding
}

// Compile-time check: *InMem implements gitrepo.Client.
var _ gitrepo.Client = (*InMem)(nil)

// NewInMem creates an empty fake host with a "main" default branch.
func NewInMem() *InMem {
	return &InMem{
		files:         map[string]string{},
		defaultBranch: "main",
		headSHA:       "head-sha-0",
		baseTreeSHA:   "base-tree-0",
		blobs:         map[string]InMemBlob{},
		trees:         map[string][]gitrepo.TreeEntry{},
		commits:       map[string]gitrepo.NewCommit{},
		refs:          map[string]string{},
		nextID:        1,
	}
}

// SetFile seeds a file in the fake repository.
func (m *InMem) SetFile(owner, repo, path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[owner+"/"+repo+"/"+path] = content
}

// RemoveFile deletes a seeded file, simulating an upstream deletion.
func (m *InMem) RemoveFile(owner, repo, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, owner+"/"+repo+"/"+path)
}

// PRs returns all pull requests opened so far.
func (m *InMem) PRs() []gitrepo.PullRequestInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]gitrepo.PullRequestInfo, len(m.prs))
	copy(out, m.prs)
	return out
}

// PRSpecs returns the specs of all pull requests opened so far.
func (m *InMem) PRSpecs() []gitrepo.PullRequestSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]gitrepo.PullRequestSpec, len(m.specs))
	copy(out, m.specs)
	return out
}

// Refs returns all refs created so far.
func (m *InMem) Refs() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.refs))
	for k, v := range m.refs {
		out[k] = v
	}
	return out
}

// Blobs returns every recorded blob keyed by SHA.
func (m *InMem) Blobs() map[string]InMemBlob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]InMemBlob, len(m.blobs))
	for k, v := range m.blobs {
		out[k] = v
	}
	return out
}

// Tree returns the entries of a created tree.
func (m *InMem) Tree(sha string) []gitrepo.TreeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trees[sha]
}

// Commit returns a created commit by SHA.
func (m *InMem) Commit(sha string) (gitrepo.NewCommit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commits[sha]
	return c, ok
}

func (m *InMem) id(prefix string) string {
	n := m.nextID
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, n)
}

// GetFile returns a seeded file, or nil when absent.
func (m *InMem) GetFile(_ context.Context, owner, repo, path string) (*gitrepo.FileContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := owner + "/" + repo + "/" + path
	content, ok := m.files[key]
	if !ok {
		return nil, nil //nolint:nilnil // matches the adapter contract
	}
	return &gitrepo.FileContent{
		Path:         path,
		Content:      content,
		VersionToken: fmt.Sprintf("v-%d", len(content)),
	}, nil
}

// ListDir returns the immediate children of dirPath among the seeded files.
func (m *InMem) ListDir(_ context.Context, owner, repo, dirPath string) ([]gitrepo.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := owner + "/" + repo + "/"
	if dirPath != "" && dirPath != "." {
		prefix += dirPath + "/"
	}
	seen := map[string]bool{}
	var entries []gitrepo.DirEntry
	for key, content := range m.files {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		parts := strings.SplitN(rest, "/", 2)
		name := parts[0]
		if seen[name] {
			continue
		}
		seen[name] = true
		entType := "file"
		size := int64(len(content))
		if len(parts) > 1 {
			entType = "dir"
			size = 0
		}
		p := name
		if dirPath != "" && dirPath != "." {
			p = dirPath + "/" + name
		}
		entries = append(entries, gitrepo.DirEntry{Name: name, Path: p, Type: entType, Size: size})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// GetDefaultBranchRef returns the fake default branch HEAD.
func (m *InMem) GetDefaultBranchRef(_ context.Context, _, _ string) (*gitrepo.BranchRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &gitrepo.BranchRef{
		Ref: "refs/heads/" + m.defaultBranch,
		SHA: m.headSHA,
	}, nil
}

// GetCommit returns the base commit or a commit created via CreateCommit.
func (m *InMem) GetCommit(_ context.Context, _, _, sha string) (*gitrepo.CommitInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sha == m.headSHA {
		return &gitrepo.CommitInfo{SHA: sha, TreeSHA: m.baseTreeSHA}, nil
	}
	if c, ok := m.commits[sha]; ok {
		return &gitrepo.CommitInfo{SHA: sha, TreeSHA: c.TreeSHA}, nil
	}
	return nil, fmt.Errorf("commit %s not found", sha)
}

// CreateBlob records a blob and returns a synthetic SHA.
func (m *InMem) CreateBlob(_ context.Context, _, _, content string, encoding gitrepo.BlobEncoding) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStep == "blob" {
		return "", fmt.Errorf("injected blob failure")
	}
	sha := m.id("blob")
	m.blobs[sha] = InMemBlob{Content: content, Encoding: encoding}
	return sha, nil
}

// CreateTree records a tree and returns a synthetic SHA.
func (m *InMem) CreateTree(_ context.Context, _, _, baseTreeSHA string, entries []gitrepo.TreeEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStep == "tree" {
		return "", fmt.Errorf("injected tree failure")
	}
	if baseTreeSHA != m.baseTreeSHA {
		return "", fmt.Errorf("unknown base tree %s", baseTreeSHA)
	}
	sha := m.id("tree")
	m.trees[sha] = append([]gitrepo.TreeEntry(nil), entries...)
	return sha, nil
}

// CreateCommit records a commit and returns a synthetic SHA.
func (m *InMem) CreateCommit(_ context.Context, _, _ string, c gitrepo.NewCommit) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStep == "commit" {
		return "", fmt.Errorf("injected commit failure")
	}
	if _, ok := m.trees[c.TreeSHA]; !ok {
		return "", fmt.Errorf("unknown tree %s", c.TreeSHA)
	}
	sha := m.id("commit")
	m.commits[sha] = c
	return sha, nil
}

// CreateRef records a ref, rejecting duplicates like the real API.
func (m *InMem) CreateRef(_ context.Context, _, _, ref, sha string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStep == "ref" {
		return fmt.Errorf("injected ref failure")
	}
	if _, exists := m.refs[ref]; exists {
		return fmt.Errorf("ref %s already exists", ref)
	}
	m.refs[ref] = sha
	return nil
}

// OpenPullRequest records a PR, or returns ConflictError when configured.
func (m *InMem) OpenPullRequest(_ context.Context, owner, repo string, spec gitrepo.PullRequestSpec) (*gitrepo.PullRequestInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStep == "pr" {
		return nil, fmt.Errorf("injected pr failure")
	}
	if m.ConflictOnPR {
		return nil, gitrepo.ConflictError{Owner: owner, Repo: repo, Head: spec.Head}
	}
	n := len(m.prs) + 1
	pr := gitrepo.PullRequestInfo{
		Number:  n,
		HTMLURL: fmt.Sprintf("https://github.com/%s/%s/pull/%d", owner, repo, n),
		State:   "open",
	}
	m.prs = append(m.prs, pr)
	m.specs = append(m.specs, spec)
	return &pr, nil
}

// GetPullRequest returns the Mergeability override when set, else the
// recorded PR with unknown mergeability.
func (m *InMem) GetPullRequest(_ context.Context, _, _ string, number int) (*gitrepo.PullRequestInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Mergeability != nil {
		info := *m.Mergeability
		info.Number = number
		return &info, nil
	}
	for _, pr := range m.prs {
		if pr.Number == number {
			out := pr
			return &out, nil
		}
	}
	return nil, fmt.Errorf("pull request #%d not found", number)
}
