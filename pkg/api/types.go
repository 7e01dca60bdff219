// Package api defines the wire types exchanged between the scribe server and
// its clients. These shapes are also what the embedded OpenAPI document in the
// schemas package describes.
package api

import "time"

// Changeset is the complete set of file and asset operations submitted in one
// proposal. The union of paths across the four collections contains no
// duplicates; ValidateChangeset enforces this.
type Changeset struct {
	RepoFullName string            `json:"repoFullName"`
	Modified     map[string]string `json:"modified,omitempty"`
	Created      map[string]string `json:"created,omitempty"`
	Deleted      []string          `json:"deleted,omitempty"`
	Assets       []string          `json:"assets,omitempty"` // paths only; bytes travel separately
}

// CreateProposalRequest is the body of POST /proposals.
type CreateProposalRequest struct {
	Changeset   Changeset         `json:"changeset"`
	Title       string            `json:"title"       binding:"required"`
	Description string            `json:"description"`
	Assets      map[string]string `json:"assets,omitempty"` // path -> base64 bytes
}

// ProposalStatus is the user-facing lifecycle of a proposal.
type ProposalStatus string

// Proposal statuses.
const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusApproved  ProposalStatus = "approved"
	ProposalStatusPublished ProposalStatus = "published"
	ProposalStatusClosed    ProposalStatus = "closed"
	ProposalStatusConflict  ProposalStatus = "conflict"
)

// Proposal is the server-tracked record of a submitted changeset.
type Proposal struct {
	ID           string         `json:"id"` // pull request number, as a string
	RepoFullName string         `json:"repoFullName"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Status       ProposalStatus `json:"status"`
	URL          string         `json:"url"`
	BranchName   string         `json:"branchName"`
	AuthorLogin  string         `json:"authorLogin"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// CreateProposalResponse is returned on successful submission.
type CreateProposalResponse struct {
	Proposal Proposal `json:"proposal"`
}

// ListProposalsResponse is returned by GET /proposals/:owner/:repo.
type ListProposalsResponse struct {
	Proposals []Proposal `json:"proposals"`
}

// MergeabilityResponse is returned by the mergeability check endpoint.
type MergeabilityResponse struct {
	Status          ProposalStatus `json:"status"`
	CanMerge        bool           `json:"canMerge"`
	HasConflicts    bool           `json:"hasConflicts"`
	CheckInProgress bool           `json:"checkInProgress"`
	Message         string         `json:"message,omitempty"`
}

// ValidationResponse reports changeset validation results.
type ValidationResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// FileStateView is the client-visible projection of one open file.
type FileStateView struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Status  string `json:"status"`
	IsNew   bool   `json:"isNew"`
}

// WorkspaceView is the client-visible projection of a workspace.
type WorkspaceView struct {
	RepoFullName string            `json:"repoFullName"`
	ActiveFile   string            `json:"activeFile,omitempty"`
	Files        []FileStateView   `json:"files"`
	Assets       []AssetView       `json:"assets"`
	PendingNew   []string          `json:"pendingNew,omitempty"`
	Deleted      []string          `json:"deleted,omitempty"`
	Renamed      map[string]string `json:"renamed,omitempty"`
}

// AssetView is the client-visible projection of a pending asset.
type AssetView struct {
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// OpenFileRequest opens a file into the workspace.
type OpenFileRequest struct {
	Path string `json:"path" binding:"required"`
}

// CreateFileRequest creates a new file in the workspace.
type CreateFileRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

// UpdateFileRequest updates the live buffer of an open file. Autosave requests
// carry the draft revision the client believes it is writing.
type UpdateFileRequest struct {
	Path     string `json:"path" binding:"required"`
	Content  string `json:"content"`
	Autosave bool   `json:"autosave,omitempty"`
	Revision int64  `json:"revision,omitempty"`
}

// RenameFileRequest renames a file, opened or not.
type RenameFileRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to"   binding:"required"`
}

// DeleteFileRequest marks a file for deletion.
type DeleteFileRequest struct {
	Path string `json:"path" binding:"required"`
}

// RevertFileRequest discards local edits to a file.
type RevertFileRequest struct {
	Path string `json:"path" binding:"required"`
}

// UploadAssetRequest stages a binary asset for the next proposal.
type UploadAssetRequest struct {
	Filename string `json:"filename" binding:"required"`
	// CurrentFile anchors where the asset directory is computed from.
	CurrentFile string `json:"currentFile"`
	MimeType    string `json:"mimeType"`
	Bytes       string `json:"bytes" binding:"required"` // base64
}

// UploadAssetResponse reports where the asset landed and the Markdown link to it.
type UploadAssetResponse struct {
	Path         string `json:"path"`
	RelativeLink string `json:"relativeLink"`
}

// SessionResponse reports the caller's session. The CSRF token is mirrored in
// a response header and a cookie (double-submit).
type SessionResponse struct {
	SessionID string `json:"sessionId"`
	Login     string `json:"login,omitempty"`
}
