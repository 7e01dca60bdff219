// Package drafts persists unsubmitted edits and pending binary assets so
// they survive page reloads. Text drafts and asset blobs are two independent
// collections, both keyed by repository + path.
package drafts

import (
	"context"
	"fmt"
	"time"
)

// DefaultKeepPerRepo is how many drafts Prune retains per repository.
const DefaultKeepPerRepo = 50

// Draft is one persisted text draft. Revision is a per-key monotonic counter:
// a write carrying a revision at or below the stored one is stale and is
// dropped, so overlapping autosave timers can never regress content.
type Draft struct {
	Repo             string    `json:"repo"`
	Path             string    `json:"path"`
	Content          string    `json:"content"`
	BaseVersionToken string    `json:"baseVersionToken"`
	Revision         int64     `json:"revision"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Asset is one persisted binary blob awaiting submission. The draft store is
// the sole owner of the bytes; workspace state only tracks metadata.
type Asset struct {
	Repo      string    `json:"repo"`
	Path      string    `json:"path"`
	Bytes     []byte    `json:"bytes"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StaleWriteError reports a draft write that lost to a newer revision. The
// caller gets the winning draft back and typically treats this as success.
type StaleWriteError struct {
	Repo    string
	Path    string
	Attempt int64
	Stored  int64
}

// Error implements the error interface.
func (e StaleWriteError) Error() string {
	return fmt.Sprintf("stale draft write for %s:%s (attempted rev %d, stored rev %d)",
		e.Repo, e.Path, e.Attempt, e.Stored)
}

// Store is the persistence port for drafts and assets.
type Store interface {
	// SaveDraft persists d and returns the stored draft. The stored revision
	// becomes max(previous+1, d.Revision); a write with d.Revision at or
	// below the stored revision returns the stored draft and a
	// StaleWriteError.
	SaveDraft(ctx context.Context, d Draft) (Draft, error)
	// GetDraft returns the draft for repo+path, or nil when absent.
	GetDraft(ctx context.Context, repo, path string) (*Draft, error)
	// DeleteDraft removes one draft. Removing an absent draft is not an error.
	DeleteDraft(ctx context.Context, repo, path string) error
	// ListDrafts returns every draft for the repository.
	ListDrafts(ctx context.Context, repo string) ([]Draft, error)
	// DeleteAll removes every draft and asset for the repository.
	DeleteAll(ctx context.Context, repo string) error
	// Prune keeps the `keep` most-recently-updated drafts for the repository
	// and evicts the rest, returning how many were evicted.
	Prune(ctx context.Context, repo string, keep int) (int, error)

	SaveAsset(ctx context.Context, a Asset) error
	// GetAsset returns the asset for repo+path, or nil when absent.
	GetAsset(ctx context.Context, repo, path string) (*Asset, error)
	DeleteAsset(ctx context.Context, repo, path string) error
}
