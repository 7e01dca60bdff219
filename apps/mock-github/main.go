// Command mock-github is a local stand-in for the GitHub REST API, covering
// just the surface scribe uses: the contents API for reading, the git data
// API for writing, and pull requests. It also serves a small HTML dashboard
// where pull requests can be merged or closed by hand, which is how proposal
// status transitions are exercised during development.
package main

import (
	"crypto/sha1" //nolint:gosec // git object ids, not security
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/openscribe/scribe/pkg/logging"
)

// treeEntry is one delta row of a created tree. A nil SHA deletes the path,
// matching the git data API's null-sha convention.
type treeEntry struct {
	Path string  `json:"path"`
	Mode string  `json:"mode"`
	Type string  `json:"type"`
	SHA  *string `json:"sha"`
}

type commitObj struct {
	SHA     string
	Message string
	TreeSHA string
	Parents []string
}

type pullRequest struct {
	Number         int
	Title          string
	Body           string
	Head           string
	Base           string
	State          string // "open" or "closed"
	Merged         bool
	Mergeable      bool
	MergeableState string // "clean" or "dirty"
	CommitSHA      string
}

// store is the whole fake: materialized default-branch files per repo, plus
// the git objects scribe creates through the git data API.
type store struct {
	mu sync.RWMutex

	files    map[string]map[string]string // "owner/repo" -> path -> content
	blobs    map[string][]byte            // blob sha -> bytes
	trees    map[string][]treeEntry       // tree sha -> delta entries
	commits  map[string]commitObj         // commit sha -> object
	branches map[string]map[string]string // "owner/repo" -> "refs/heads/x" -> commit sha
	prs      map[string][]*pullRequest    // "owner/repo" -> pull requests
	seq      int
}

func newStore() *store {
	return &store{
		files:    make(map[string]map[string]string),
		blobs:    make(map[string][]byte),
		trees:    make(map[string][]treeEntry),
		commits:  make(map[string]commitObj),
		branches: make(map[string]map[string]string),
		prs:      make(map[string][]*pullRequest),
	}
}

func (s *store) repoExists(owner, repo string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[owner+"/"+repo]
	return ok
}

// seedRepo registers a repository with its initial files and a synthetic
// head commit on main.
func (s *store) seedRepo(key string, files map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = files
	s.advanceMainLocked(key)
}

// advanceMainLocked mints a fresh head commit for main, representing the
// branch after the current file snapshot.
func (s *store) advanceMainLocked(key string) {
	s.seq++
	treeSHA := fakeSHA(fmt.Sprintf("tree:%s:%d", key, s.seq))
	commitSHA := fakeSHA(fmt.Sprintf("commit:%s:%d", key, s.seq))
	s.trees[treeSHA] = nil
	s.commits[commitSHA] = commitObj{SHA: commitSHA, TreeSHA: treeSHA}
	if s.branches[key] == nil {
		s.branches[key] = make(map[string]string)
	}
	s.branches[key]["refs/heads/main"] = commitSHA
}

func (s *store) getFile(key, path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[key][path]
	return content, ok
}

// dirEntry mirrors the GitHub contents API listing shape.
type dirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

func (s *store) listDir(key, dirPath string) []dirEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := dirPath
	if prefix != "" {
		prefix += "/"
	}

	seen := map[string]bool{}
	var entries []dirEntry
	for filePath, content := range s.files[key] {
		if !strings.HasPrefix(filePath, prefix) {
			continue
		}
		rest := filePath[len(prefix):]
		idx := strings.Index(rest, "/")
		name, entryType, size := rest, "file", len(content)
		if idx != -1 {
			name, entryType, size = rest[:idx], "dir", 0
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		p := name
		if dirPath != "" {
			p = dirPath + "/" + name
		}
		entries = append(entries, dirEntry{Name: name, Path: p, Type: entryType, Size: size})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func (s *store) createBlob(content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sha := fakeSHA(string(content))
	s.blobs[sha] = content
	return sha
}

func (s *store) createTree(entries []treeEntry) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	sha := fakeSHA(fmt.Sprintf("tree:%d", s.seq))
	s.trees[sha] = entries
	return sha
}

func (s *store) createCommit(message, treeSHA string, parents []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	sha := fakeSHA(fmt.Sprintf("commit:%d", s.seq))
	s.commits[sha] = commitObj{SHA: sha, Message: message, TreeSHA: treeSHA, Parents: parents}
	return sha
}

func (s *store) getCommit(sha string) (commitObj, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commits[sha]
	return c, ok
}

func (s *store) getRef(key, ref string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sha, ok := s.branches[key][ref]
	return sha, ok
}

func (s *store) createRef(key, ref, sha string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.branches[key] == nil {
		s.branches[key] = make(map[string]string)
	}
	if _, exists := s.branches[key][ref]; exists {
		return fmt.Errorf("reference already exists")
	}
	s.branches[key][ref] = sha
	return nil
}

func (s *store) createPR(key, title, body, head, base string) (*pullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pr := range s.prs[key] {
		if pr.State == "open" && pr.Head == head {
			return nil, fmt.Errorf("a pull request already exists for %s", head)
		}
	}
	commitSHA, ok := s.branches[key]["refs/heads/"+head]
	if !ok {
		return nil, fmt.Errorf("head branch %s not found", head)
	}
	if len(s.trees[s.commits[commitSHA].TreeSHA]) == 0 {
		return nil, fmt.Errorf("no commits between %s and %s", base, head)
	}

	pr := &pullRequest{
		Number:         len(s.prs[key]) + 1,
		Title:          title,
		Body:           body,
		Head:           head,
		Base:           base,
		State:          "open",
		Mergeable:      true,
		MergeableState: "clean",
		CommitSHA:      commitSHA,
	}
	s.prs[key] = append(s.prs[key], pr)
	cp := *pr
	return &cp, nil
}

func (s *store) getPR(key string, number int) *pullRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pr := range s.prs[key] {
		if pr.Number == number {
			cp := *pr
			return &cp
		}
	}
	return nil
}

func (s *store) listPRs(key string) []pullRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pullRequest, 0, len(s.prs[key]))
	for _, pr := range s.prs[key] {
		out = append(out, *pr)
	}
	return out
}

func (s *store) allPRs() map[string][]pullRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]pullRequest, len(s.prs))
	for key, prs := range s.prs {
		for _, pr := range prs {
			out[key] = append(out[key], *pr)
		}
	}
	return out
}

// prDelta resolves a pull request's tree delta to path -> rendered content,
// plus the set of deleted paths.
func (s *store) prDelta(commitSHA string) (changed map[string]string, deleted map[string]bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	changed = make(map[string]string)
	deleted = make(map[string]bool)
	for _, e := range s.trees[s.commits[commitSHA].TreeSHA] {
		if e.SHA == nil {
			deleted[e.Path] = true
			continue
		}
		changed[e.Path] = string(s.blobs[*e.SHA])
	}
	return changed, deleted
}

// merge applies the pull request's delta to main, closes it as merged, and
// flips any other open pull request touching the same paths to dirty.
func (s *store) merge(key string, number int) *pullRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pr *pullRequest
	for _, p := range s.prs[key] {
		if p.Number == number {
			pr = p
			break
		}
	}
	if pr == nil || pr.State != "open" {
		return nil
	}

	touched := map[string]bool{}
	for _, e := range s.trees[s.commits[pr.CommitSHA].TreeSHA] {
		touched[e.Path] = true
		if e.SHA == nil {
			delete(s.files[key], e.Path)
			continue
		}
		s.files[key][e.Path] = string(s.blobs[*e.SHA])
	}

	pr.State = "closed"
	pr.Merged = true
	s.advanceMainLocked(key)

	for _, other := range s.prs[key] {
		if other.State != "open" {
			continue
		}
		for _, e := range s.trees[s.commits[other.CommitSHA].TreeSHA] {
			if touched[e.Path] {
				other.Mergeable = false
				other.MergeableState = "dirty"
				break
			}
		}
	}
	cp := *pr
	return &cp
}

func (s *store) close(key string, number int) *pullRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pr := range s.prs[key] {
		if pr.Number == number && pr.State == "open" {
			pr.State = "closed"
			cp := *pr
			return &cp
		}
	}
	return nil
}

func fakeSHA(seed string) string {
	h := sha1.Sum([]byte(seed)) //nolint:gosec // git object ids, not security
	return hex.EncodeToString(h[:])
}

func decodeBlob(content, encoding string) ([]byte, error) {
	if encoding == "base64" {
		return base64.StdEncoding.DecodeString(content)
	}
	return []byte(content), nil
}

func main() {
	log := logging.New("mock-github")
	s := newStore()

	seedRepos(s)
	log.Info("seeded repos", "repos", len(s.files))

	r := newRouter(s, log)

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	log.Info("mock-github starting", "port", port)
	if err := r.Run(":" + port); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
