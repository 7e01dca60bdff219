package workspace

import "sync"

// Registry holds the live workspaces, one per editing session per repository.
// Each workspace has a single owner (the session that created it), so the
// mutex only guards the map itself against concurrent request handlers.
type Registry struct {
	mu sync.RWMutex
	ws map[string]Workspace // key: sessionID + "\x00" + repoFullName
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ws: map[string]Workspace{}}
}

func regKey(sessionID, repo string) string { return sessionID + "\x00" + repo }

// Get returns the workspace for a session+repo pair.
func (r *Registry) Get(sessionID, repo string) (Workspace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.ws[regKey(sessionID, repo)]
	return w, ok
}

// Put installs or replaces the workspace for a session+repo pair.
func (r *Registry) Put(sessionID string, w Workspace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ws[regKey(sessionID, w.RepoFullName)] = w
}

// Delete removes the workspace for a session+repo pair.
func (r *Registry) Delete(sessionID, repo string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ws, regKey(sessionID, repo))
}

// Update applies fn to the workspace under the lock and stores the result.
// The workspace must already exist.
func (r *Registry) Update(sessionID, repo string, fn func(Workspace) (Workspace, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := regKey(sessionID, repo)
	w, ok := r.ws[key]
	if !ok {
		return NotFoundError{Repo: repo}
	}
	next, err := fn(w)
	if err != nil {
		return err
	}
	r.ws[key] = next
	return nil
}
