// Package workspace models the per-session editing state of one repository:
// open files with their dirty/clean lifecycle, pending binary assets, and the
// rename/delete bookkeeping that feeds changeset construction.
//
// A Workspace is a value. Every operation returns a new Workspace and leaves
// the receiver untouched, so callers can swap state atomically and never
// observe a half-applied transition.
package workspace

import (
	"fmt"

	"github.com/openscribe/scribe/apps/server/internal/pathpolicy"
)

// FileStatus is the draft lifecycle of one open file.
type FileStatus string

// File statuses.
const (
	StatusClean     FileStatus = "clean"
	StatusDirty     FileStatus = "dirty"
	StatusAutosaved FileStatus = "autosaved"
	StatusSaving    FileStatus = "saving"
	StatusError     FileStatus = "error"
)

// FileState is one open file. Status is clean exactly when CurrentContent
// equals OriginalContent (existing files) or is empty (new files).
type FileState struct {
	Path                 string
	OriginalContent      string
	OriginalVersionToken string
	CurrentContent       string
	Status               FileStatus
	IsNew                bool
}

// AssetState is the metadata of one pending binary upload. The bytes are
// owned by the draft store, keyed by Path.
type AssetState struct {
	Path     string
	MimeType string
	Size     int64
	IsNew    bool
}

// FileNotOpenError is returned when an operation targets a path that is not
// open in the workspace.
type FileNotOpenError struct {
	Path string
}

// Error implements the error interface.
func (e FileNotOpenError) Error() string {
	return fmt.Sprintf("file %q is not open in the workspace", e.Path)
}

// NotFoundError is returned when no workspace exists for a session+repo pair.
type NotFoundError struct {
	Repo string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("no open workspace for %q", e.Repo)
}

// InvalidTransitionError is returned when a status transition is requested
// from a state that does not permit it.
type InvalidTransitionError struct {
	Path string
	From FileStatus
	To   FileStatus
}

// Error implements the error interface.
func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("file %q cannot move from %s to %s", e.Path, e.From, e.To)
}

// PendingConflictError is returned when a rename or delete would put a path
// into more than one pending collection.
type PendingConflictError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e PendingConflictError) Error() string {
	return fmt.Sprintf("pending operation conflict on %q: %s", e.Path, e.Reason)
}

// Workspace is the aggregate editing state for one repository in one session.
type Workspace struct {
	RepoFullName string
	Config       pathpolicy.Config

	files      map[string]FileState
	assets     map[string]AssetState
	activeFile string

	pendingNew     map[string]struct{}
	pendingDeleted map[string]struct{}
	pendingRenamed map[string]string // from -> to
}

// New creates an empty workspace for the given repository.
func New(repoFullName string, cfg pathpolicy.Config) Workspace {
	return Workspace{
		RepoFullName:   repoFullName,
		Config:         cfg,
		files:          map[string]FileState{},
		assets:         map[string]AssetState{},
		pendingNew:     map[string]struct{}{},
		pendingDeleted: map[string]struct{}{},
		pendingRenamed: map[string]string{},
	}
}

func (w Workspace) clone() Workspace {
	out := w
	out.files = make(map[string]FileState, len(w.files))
	for k, v := range w.files {
		out.files[k] = v
	}
	out.assets = make(map[string]AssetState, len(w.assets))
	for k, v := range w.assets {
		out.assets[k] = v
	}
	out.pendingNew = make(map[string]struct{}, len(w.pendingNew))
	for k := range w.pendingNew {
		out.pendingNew[k] = struct{}{}
	}
	out.pendingDeleted = make(map[string]struct{}, len(w.pendingDeleted))
	for k := range w.pendingDeleted {
		out.pendingDeleted[k] = struct{}{}
	}
	out.pendingRenamed = make(map[string]string, len(w.pendingRenamed))
	for k, v := range w.pendingRenamed {
		out.pendingRenamed[k] = v
	}
	return out
}

// File returns the state of an open file.
func (w Workspace) File(path string) (FileState, bool) {
	fs, ok := w.files[path]
	return fs, ok
}

// Files returns a copy of all open file states.
func (w Workspace) Files() []FileState {
	out := make([]FileState, 0, len(w.files))
	for _, fs := range w.files {
		out = append(out, fs)
	}
	return out
}

// Assets returns a copy of all pending asset states.
func (w Workspace) Assets() []AssetState {
	out := make([]AssetState, 0, len(w.assets))
	for _, as := range w.assets {
		out = append(out, as)
	}
	return out
}

// ActiveFile returns the currently focused path, or "".
func (w Workspace) ActiveFile() string { return w.activeFile }

// PendingDeleted returns the paths marked for deletion.
func (w Workspace) PendingDeleted() []string {
	out := make([]string, 0, len(w.pendingDeleted))
	for p := range w.pendingDeleted {
		out = append(out, p)
	}
	return out
}

// PendingNew returns the paths of files created in this session.
func (w Workspace) PendingNew() []string {
	out := make([]string, 0, len(w.pendingNew))
	for p := range w.pendingNew {
		out = append(out, p)
	}
	return out
}

// PendingRenamed returns a copy of the from→to rename map.
func (w Workspace) PendingRenamed() map[string]string {
	out := make(map[string]string, len(w.pendingRenamed))
	for k, v := range w.pendingRenamed {
		out[k] = v
	}
	return out
}

// HasChanges reports whether any file is non-clean or any pending operation
// or asset exists.
func (w Workspace) HasChanges() bool {
	for _, fs := range w.files {
		if fs.Status != StatusClean {
			return true
		}
	}
	if len(w.pendingDeleted) > 0 || len(w.pendingRenamed) > 0 {
		return true
	}
	for _, as := range w.assets {
		if as.IsNew {
			return true
		}
	}
	return false
}

// OpenFile installs a fresh clean FileState from server content and focuses
// it. If the file is already open and not clean, only the focus moves —
// unsaved work is never clobbered.
func (w Workspace) OpenFile(path, content, versionToken string) Workspace {
	out := w.clone()
	if existing, ok := out.files[path]; ok && existing.Status != StatusClean {
		out.activeFile = path
		return out
	}
	out.files[path] = FileState{
		Path:                 path,
		OriginalContent:      content,
		OriginalVersionToken: versionToken,
		CurrentContent:       content,
		Status:               StatusClean,
	}
	out.activeFile = path
	return out
}

// CreateFile installs a new (not-yet-upstream) file and records it in the
// pending-new set. Status is dirty when the initial content is non-empty.
func (w Workspace) CreateFile(path, content string) (Workspace, error) {
	if _, deleted := w.pendingDeleted[path]; deleted {
		return w, PendingConflictError{Path: path, Reason: "path is marked for deletion"}
	}
	if _, renamed := w.pendingRenamed[path]; renamed {
		return w, PendingConflictError{Path: path, Reason: "path is being renamed away"}
	}

	out := w.clone()
	status := StatusClean
	if content != "" {
		status = StatusDirty
	}
	out.files[path] = FileState{
		Path:           path,
		CurrentContent: content,
		Status:         status,
		IsNew:          true,
	}
	out.pendingNew[path] = struct{}{}
	out.activeFile = path
	return out, nil
}

// UpdateFileContent replaces the live buffer and recomputes status. A new
// file cleared back to empty returns to clean, so creating then erasing a
// file leaves no dirty flag behind.
func (w Workspace) UpdateFileContent(path, content string) (Workspace, error) {
	fs, ok := w.files[path]
	if !ok {
		return w, FileNotOpenError{Path: path}
	}

	out := w.clone()
	fs.CurrentContent = content
	if fs.IsNew {
		if content == "" {
			fs.Status = StatusClean
		} else {
			fs.Status = StatusDirty
		}
	} else {
		if content == fs.OriginalContent {
			fs.Status = StatusClean
		} else {
			fs.Status = StatusDirty
		}
	}
	out.files[path] = fs
	return out, nil
}

// MarkFileAutosaved records that the current buffer has been persisted to the
// draft store. Only a dirty or in-flight (saving) file can become autosaved.
func (w Workspace) MarkFileAutosaved(path string) (Workspace, error) {
	fs, ok := w.files[path]
	if !ok {
		return w, FileNotOpenError{Path: path}
	}
	if fs.Status != StatusDirty && fs.Status != StatusSaving {
		return w, InvalidTransitionError{Path: path, From: fs.Status, To: StatusAutosaved}
	}
	out := w.clone()
	fs.Status = StatusAutosaved
	out.files[path] = fs
	return out, nil
}

// MarkFileSaving flags a file whose draft write is in flight. Only a dirty
// file has anything to persist.
func (w Workspace) MarkFileSaving(path string) (Workspace, error) {
	fs, ok := w.files[path]
	if !ok {
		return w, FileNotOpenError{Path: path}
	}
	if fs.Status != StatusDirty {
		return w, InvalidTransitionError{Path: path, From: fs.Status, To: StatusSaving}
	}
	out := w.clone()
	fs.Status = StatusSaving
	out.files[path] = fs
	return out, nil
}

// MarkFileError flags a failed draft write. Editing continues; the in-memory
// buffer stays authoritative for the session.
func (w Workspace) MarkFileError(path string) (Workspace, error) {
	fs, ok := w.files[path]
	if !ok {
		return w, FileNotOpenError{Path: path}
	}
	out := w.clone()
	fs.Status = StatusError
	out.files[path] = fs
	return out, nil
}

// RevertFile discards local edits: a new file is removed from the workspace
// entirely, an existing file snaps back to its original content.
func (w Workspace) RevertFile(path string) (Workspace, error) {
	fs, ok := w.files[path]
	if !ok {
		return w, FileNotOpenError{Path: path}
	}
	if fs.IsNew {
		out := w.CloseFile(path)
		delete(out.pendingNew, path)
		return out, nil
	}
	out := w.clone()
	fs.CurrentContent = fs.OriginalContent
	fs.Status = StatusClean
	out.files[path] = fs
	return out, nil
}

// CloseFile removes a file from the workspace and clears the focus if it
// pointed there. Pending bookkeeping is left alone: closing an editor tab
// does not cancel a rename or delete.
func (w Workspace) CloseFile(path string) Workspace {
	out := w.clone()
	delete(out.files, path)
	if out.activeFile == path {
		out.activeFile = ""
	}
	return out
}

// SetActiveFile moves the focus.
func (w Workspace) SetActiveFile(path string) Workspace {
	out := w.clone()
	out.activeFile = path
	return out
}

// DeleteFile marks a path for deletion. The file need not be open: a delete
// from a file-tree action is valid for a file never loaded in the editor.
// Deleting a file created this session simply undoes the creation.
func (w Workspace) DeleteFile(path string) (Workspace, error) {
	if _, isNew := w.pendingNew[path]; isNew {
		out := w.CloseFile(path)
		delete(out.pendingNew, path)
		return out, nil
	}
	if _, alreadyRenamed := w.pendingRenamed[path]; alreadyRenamed {
		return w, PendingConflictError{Path: path, Reason: "path is being renamed away"}
	}

	out := w.CloseFile(path)
	// Deleting the target of a rename cancels the rename and deletes the
	// original path instead.
	for from, to := range out.pendingRenamed {
		if to == path {
			delete(out.pendingRenamed, from)
			out.pendingDeleted[from] = struct{}{}
			return out, nil
		}
	}
	out.pendingDeleted[path] = struct{}{}
	return out, nil
}

// RenameFile records a rename. The source need not be open in the editor.
// Renaming a file created this session rewrites the pending-new entry;
// renaming a file that was itself the target of an earlier rename collapses
// the chain to a single from→to pair.
func (w Workspace) RenameFile(from, to string) (Workspace, error) {
	if from == to {
		return w, nil
	}
	if _, deleted := w.pendingDeleted[from]; deleted {
		return w, PendingConflictError{Path: from, Reason: "path is marked for deletion"}
	}

	out := w.clone()

	// A file created this session just changes its name.
	if _, isNew := out.pendingNew[from]; isNew {
		delete(out.pendingNew, from)
		out.pendingNew[to] = struct{}{}
		if fs, ok := out.files[from]; ok {
			delete(out.files, from)
			fs.Path = to
			out.files[to] = fs
			if out.activeFile == from {
				out.activeFile = to
			}
		}
		return out, nil
	}

	// Collapse a→b, b→c into a→c.
	for origin, current := range out.pendingRenamed {
		if current == from {
			if origin == to {
				delete(out.pendingRenamed, origin)
			} else {
				out.pendingRenamed[origin] = to
			}
			out.moveOpenFile(from, to)
			return out, nil
		}
	}

	out.pendingRenamed[from] = to
	out.moveOpenFile(from, to)
	return out, nil
}

// moveOpenFile rekeys an open editor buffer after a rename. Mutates the
// receiver; only called on freshly cloned workspaces.
func (w *Workspace) moveOpenFile(from, to string) {
	fs, ok := w.files[from]
	if !ok {
		return
	}
	delete(w.files, from)
	fs.Path = to
	w.files[to] = fs
	if w.activeFile == from {
		w.activeFile = to
	}
}

// AddAsset records a pending upload at an already collision-resolved path.
func (w Workspace) AddAsset(path, mimeType string, size int64) Workspace {
	out := w.clone()
	out.assets[path] = AssetState{
		Path:     path,
		MimeType: mimeType,
		Size:     size,
		IsNew:    true,
	}
	return out
}

// RemoveAsset drops a pending upload.
func (w Workspace) RemoveAsset(path string) Workspace {
	out := w.clone()
	delete(out.assets, path)
	return out
}

// AssetPaths returns the destination paths of all pending assets, for
// collision resolution of subsequent uploads.
func (w Workspace) AssetPaths() map[string]struct{} {
	out := make(map[string]struct{}, len(w.assets))
	for p := range w.assets {
		out[p] = struct{}{}
	}
	return out
}
