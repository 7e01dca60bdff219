package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/openscribe/scribe/apps/server/internal/drafts"
	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
	"github.com/openscribe/scribe/apps/server/internal/pathpolicy"
	"github.com/openscribe/scribe/pkg/api"
)

// configPath is the optional per-repository editing policy file.
const configPath = ".scribe.yml"

// PolicyViolationError is returned when a request targets a path the
// repository's editing policy does not allow.
type PolicyViolationError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e PolicyViolationError) Error() string {
	return fmt.Sprintf("path %q rejected: %s", e.Path, e.Reason)
}

// UpstreamFileNotFoundError is returned when a file exists neither upstream
// nor as a pending creation.
type UpstreamFileNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e UpstreamFileNotFoundError) Error() string {
	return fmt.Sprintf("file %q not found", e.Path)
}

// ClientProvider hands out a provider client scoped to one repository.
type ClientProvider interface {
	ClientFor(ctx context.Context, owner, repo string) (gitrepo.Client, error)
}

// Service coordinates the per-session workspaces with the draft store and
// the hosting provider. Registry state is the live truth for a session;
// drafts in Redis survive the session and re-seed the buffer on reopen.
type Service struct {
	registry *Registry
	store    drafts.Store
	clients  ClientProvider
	log      *slog.Logger
}

// NewService wires a workspace service.
func NewService(registry *Registry, store drafts.Store, clients ClientProvider, log *slog.Logger) *Service {
	return &Service{registry: registry, store: store, clients: clients, log: log}
}

func (s *Service) reader(ctx context.Context, owner, repo string) (gitrepo.Client, error) {
	client, err := s.clients.ClientFor(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("acquire provider client: %w", err)
	}
	return client, nil
}

// ensure returns the session's workspace for the repository, creating it
// with the repo's editing policy on first touch.
func (s *Service) ensure(ctx context.Context, sessionID, owner, repo string) (Workspace, error) {
	full := owner + "/" + repo
	if ws, ok := s.registry.Get(sessionID, full); ok {
		return ws, nil
	}

	cfg := pathpolicy.DefaultConfig()
	client, err := s.reader(ctx, owner, repo)
	if err != nil {
		return Workspace{}, err
	}
	if fc, err := client.GetFile(ctx, owner, repo, configPath); err != nil {
		// Policy fetch failing is not fatal; defaults still protect paths.
		s.log.Warn("fetch repo policy", "repo", full, "error", err)
	} else if fc != nil {
		parsed, err := pathpolicy.ParseConfig([]byte(fc.Content))
		if err != nil {
			s.log.Warn("parse repo policy", "repo", full, "error", err)
		} else {
			cfg = parsed
		}
	}

	ws := New(full, cfg)
	s.registry.Put(sessionID, ws)
	return ws, nil
}

// ListTree returns the immediate children of a directory.
func (s *Service) ListTree(ctx context.Context, owner, repo, dir string) ([]gitrepo.DirEntry, error) {
	if dir != "" && !pathpolicy.IsPathSafe(dir) {
		return nil, PolicyViolationError{Path: dir, Reason: "unsafe path"}
	}
	client, err := s.reader(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	entries, err := client.ListDir(ctx, owner, repo, dir)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", dir, err)
	}
	return entries, nil
}

// OpenFile loads a file into the session workspace. A surviving draft for
// the path wins over the upstream content: the buffer opens dirty with the
// draft text so an interrupted session picks up where it left off.
func (s *Service) OpenFile(ctx context.Context, sessionID, owner, repo, filePath string) (api.FileStateView, error) {
	ws, err := s.ensure(ctx, sessionID, owner, repo)
	if err != nil {
		return api.FileStateView{}, err
	}
	if !pathpolicy.IsFileEditable(filePath, ws.Config) {
		return api.FileStateView{}, PolicyViolationError{Path: filePath, Reason: "not editable under repository policy"}
	}
	full := owner + "/" + repo

	client, err := s.reader(ctx, owner, repo)
	if err != nil {
		return api.FileStateView{}, err
	}
	fc, err := client.GetFile(ctx, owner, repo, filePath)
	if err != nil {
		return api.FileStateView{}, fmt.Errorf("fetch %q: %w", filePath, err)
	}
	if fc == nil {
		if _, open := ws.File(filePath); !open {
			return api.FileStateView{}, UpstreamFileNotFoundError{Path: filePath}
		}
		// Pending creation: nothing upstream to merge, just surface it.
		return s.fileView(sessionID, full, filePath)
	}

	ws = ws.OpenFile(filePath, fc.Content, fc.VersionToken)

	draft, err := s.store.GetDraft(ctx, full, filePath)
	if err != nil {
		return api.FileStateView{}, fmt.Errorf("load draft: %w", err)
	}
	if draft != nil && draft.Content != fc.Content {
		if next, err := ws.UpdateFileContent(filePath, draft.Content); err == nil {
			ws = next
			if marked, err := ws.MarkFileAutosaved(filePath); err == nil {
				ws = marked
			}
		}
	}

	s.registry.Put(sessionID, ws)
	return s.fileView(sessionID, full, filePath)
}

// CreateFile adds a new file to the workspace.
func (s *Service) CreateFile(ctx context.Context, sessionID, owner, repo, filePath, content string) (api.FileStateView, error) {
	ws, err := s.ensure(ctx, sessionID, owner, repo)
	if err != nil {
		return api.FileStateView{}, err
	}
	if !pathpolicy.IsFileEditable(filePath, ws.Config) {
		return api.FileStateView{}, PolicyViolationError{Path: filePath, Reason: "not editable under repository policy"}
	}

	next, err := ws.CreateFile(filePath, content)
	if err != nil {
		return api.FileStateView{}, err
	}
	s.registry.Put(sessionID, next)
	return s.fileView(sessionID, owner+"/"+repo, filePath)
}

// UpdateFile replaces the live buffer. Autosave writes additionally persist
// a draft; a stale revision loses the race and the caller gets the winning
// content back so every client converges on one truth.
func (s *Service) UpdateFile(ctx context.Context, sessionID, owner, repo string, req api.UpdateFileRequest) (api.FileStateView, error) {
	full := owner + "/" + repo
	ws, ok := s.registry.Get(sessionID, full)
	if !ok {
		return api.FileStateView{}, NotFoundError{Repo: full}
	}

	next, err := ws.UpdateFileContent(req.Path, req.Content)
	if err != nil {
		return api.FileStateView{}, err
	}
	ws = next

	if req.Autosave {
		fs, _ := ws.File(req.Path)
		if marked, merr := ws.MarkFileSaving(req.Path); merr == nil {
			ws = marked
		}
		stored, err := s.store.SaveDraft(ctx, drafts.Draft{
			Repo:             full,
			Path:             req.Path,
			Content:          req.Content,
			BaseVersionToken: fs.OriginalVersionToken,
			Revision:         req.Revision,
			UpdatedAt:        time.Now().UTC(),
		})
		var stale drafts.StaleWriteError
		switch {
		case errors.As(err, &stale):
			// Another writer won; adopt its content.
			if adopted, aerr := ws.UpdateFileContent(req.Path, stored.Content); aerr == nil {
				ws = adopted
			}
			if marked, merr := ws.MarkFileAutosaved(req.Path); merr == nil {
				ws = marked
			}
		case err != nil:
			if marked, merr := ws.MarkFileError(req.Path); merr == nil {
				ws = marked
			}
			s.registry.Put(sessionID, ws)
			return api.FileStateView{}, fmt.Errorf("autosave %q: %w", req.Path, err)
		default:
			if marked, merr := ws.MarkFileAutosaved(req.Path); merr == nil {
				ws = marked
			}
			s.pruneDrafts(ctx, full)
		}
	}

	s.registry.Put(sessionID, ws)
	return s.fileView(sessionID, full, req.Path)
}

// RenameFile renames a file in the workspace and carries its draft along.
func (s *Service) RenameFile(ctx context.Context, sessionID, owner, repo, from, to string) error {
	full := owner + "/" + repo
	ws, ok := s.registry.Get(sessionID, full)
	if !ok {
		return NotFoundError{Repo: full}
	}
	if !pathpolicy.IsFileEditable(to, ws.Config) {
		return PolicyViolationError{Path: to, Reason: "not editable under repository policy"}
	}

	next, err := ws.RenameFile(from, to)
	if err != nil {
		return err
	}
	s.registry.Put(sessionID, next)

	// Move any draft with the buffer. Best effort: a rename that loses its
	// draft falls back to the upstream content chain at submit time.
	if draft, err := s.store.GetDraft(ctx, full, from); err != nil {
		s.log.Warn("load draft for rename", "path", from, "error", err)
	} else if draft != nil {
		moved := *draft
		moved.Path = to
		moved.Revision = 0
		if _, err := s.store.SaveDraft(ctx, moved); err != nil {
			s.log.Warn("move draft", "from", from, "to", to, "error", err)
		} else if err := s.store.DeleteDraft(ctx, full, from); err != nil {
			s.log.Warn("drop old draft", "path", from, "error", err)
		}
	}
	return nil
}

// DeleteFile marks a file deleted and drops its draft.
func (s *Service) DeleteFile(ctx context.Context, sessionID, owner, repo, filePath string) error {
	full := owner + "/" + repo
	if err := s.registry.Update(sessionID, full, func(ws Workspace) (Workspace, error) {
		return ws.DeleteFile(filePath)
	}); err != nil {
		return err
	}
	if err := s.store.DeleteDraft(ctx, full, filePath); err != nil {
		s.log.Warn("drop draft on delete", "path", filePath, "error", err)
	}
	return nil
}

// RevertFile discards local edits and the stored draft.
func (s *Service) RevertFile(ctx context.Context, sessionID, owner, repo, filePath string) error {
	full := owner + "/" + repo
	if err := s.registry.Update(sessionID, full, func(ws Workspace) (Workspace, error) {
		return ws.RevertFile(filePath)
	}); err != nil {
		return err
	}
	if err := s.store.DeleteDraft(ctx, full, filePath); err != nil {
		s.log.Warn("drop draft on revert", "path", filePath, "error", err)
	}
	return nil
}

// UploadAsset stages binary bytes for the next proposal and returns the
// destination path plus the Markdown-ready relative link.
func (s *Service) UploadAsset(ctx context.Context, sessionID, owner, repo string, req api.UploadAssetRequest, raw []byte) (api.UploadAssetResponse, error) {
	ws, err := s.ensure(ctx, sessionID, owner, repo)
	if err != nil {
		return api.UploadAssetResponse{}, err
	}
	full := owner + "/" + repo

	name := pathpolicy.SanitizeFilename(req.Filename)
	dest := pathpolicy.ComputeAssetDestination(name, req.CurrentFile, ws.Config)

	taken := ws.AssetPaths()
	client, err := s.reader(ctx, owner, repo)
	if err != nil {
		return api.UploadAssetResponse{}, err
	}
	if entries, err := client.ListDir(ctx, owner, repo, path.Dir(dest)); err == nil {
		for _, e := range entries {
			if e.Type == "file" {
				taken[e.Path] = struct{}{}
			}
		}
	}
	dest, err = pathpolicy.ResolveCollision(dest, taken)
	if err != nil {
		return api.UploadAssetResponse{}, err
	}

	if err := s.store.SaveAsset(ctx, drafts.Asset{
		Repo:      full,
		Path:      dest,
		Bytes:     raw,
		MimeType:  req.MimeType,
		Size:      int64(len(raw)),
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return api.UploadAssetResponse{}, fmt.Errorf("store asset: %w", err)
	}

	s.registry.Put(sessionID, ws.AddAsset(dest, req.MimeType, int64(len(raw))))

	return api.UploadAssetResponse{
		Path:         dest,
		RelativeLink: pathpolicy.ComputeRelativePath(dest, req.CurrentFile),
	}, nil
}

// View projects the session's workspace for the client.
func (s *Service) View(sessionID, owner, repo string) (api.WorkspaceView, error) {
	full := owner + "/" + repo
	ws, ok := s.registry.Get(sessionID, full)
	if !ok {
		return api.WorkspaceView{}, NotFoundError{Repo: full}
	}

	view := api.WorkspaceView{
		RepoFullName: full,
		ActiveFile:   ws.ActiveFile(),
		Files:        []api.FileStateView{},
		Assets:       []api.AssetView{},
		PendingNew:   ws.PendingNew(),
		Deleted:      ws.PendingDeleted(),
		Renamed:      ws.PendingRenamed(),
	}
	for _, fs := range ws.Files() {
		view.Files = append(view.Files, fileStateView(fs))
	}
	sort.Slice(view.Files, func(i, j int) bool { return view.Files[i].Path < view.Files[j].Path })
	for _, as := range ws.Assets() {
		view.Assets = append(view.Assets, api.AssetView{Path: as.Path, MimeType: as.MimeType, Size: as.Size})
	}
	sort.Slice(view.Assets, func(i, j int) bool { return view.Assets[i].Path < view.Assets[j].Path })
	return view, nil
}

// Changeset builds, expands and validates the submission-shaped view of the
// session's pending work.
func (s *Service) Changeset(ctx context.Context, sessionID, owner, repo string) (api.Changeset, api.ValidationResponse, error) {
	full := owner + "/" + repo
	ws, ok := s.registry.Get(sessionID, full)
	if !ok {
		return api.Changeset{}, api.ValidationResponse{}, NotFoundError{Repo: full}
	}

	cs := BuildChangeset(ws)

	client, err := s.reader(ctx, owner, repo)
	if err != nil {
		return api.Changeset{}, api.ValidationResponse{}, err
	}
	if err := ExpandRenames(ctx, ws, &cs, draftReader{s.store}, upstreamReader{client}); err != nil {
		return api.Changeset{}, api.ValidationResponse{}, err
	}

	result := ValidateChangeset(cs)
	return cs, api.ValidationResponse{
		Valid:    result.Valid,
		Errors:   result.Errors,
		Warnings: result.Warnings,
	}, nil
}

// AssetBytes collects the staged bytes for every asset in the changeset.
func (s *Service) AssetBytes(ctx context.Context, owner, repo string, paths []string) (map[string][]byte, error) {
	full := owner + "/" + repo
	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		a, err := s.store.GetAsset(ctx, full, p)
		if err != nil {
			return nil, fmt.Errorf("load asset %q: %w", p, err)
		}
		if a == nil {
			continue
		}
		out[p] = a.Bytes
	}
	return out, nil
}

// Clear drops the session workspace and every stored draft for the repo.
// Called after a successful submission.
func (s *Service) Clear(ctx context.Context, sessionID, owner, repo string) error {
	full := owner + "/" + repo
	s.registry.Delete(sessionID, full)
	if err := s.store.DeleteAll(ctx, full); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	return nil
}

// pruneDrafts trims the repo's draft set back to the retention cap. Best
// effort — an eviction failure never fails the save that triggered it.
func (s *Service) pruneDrafts(ctx context.Context, full string) {
	if evicted, err := s.store.Prune(ctx, full, drafts.DefaultKeepPerRepo); err != nil {
		s.log.Warn("prune drafts", "repo", full, "error", err)
	} else if evicted > 0 {
		s.log.Info("pruned drafts", "repo", full, "evicted", evicted)
	}
}

func (s *Service) fileView(sessionID, full, filePath string) (api.FileStateView, error) {
	ws, ok := s.registry.Get(sessionID, full)
	if !ok {
		return api.FileStateView{}, NotFoundError{Repo: full}
	}
	fs, open := ws.File(filePath)
	if !open {
		return api.FileStateView{}, FileNotOpenError{Path: filePath}
	}
	return fileStateView(fs), nil
}

func fileStateView(fs FileState) api.FileStateView {
	return api.FileStateView{
		Path:    fs.Path,
		Content: fs.CurrentContent,
		Status:  string(fs.Status),
		IsNew:   fs.IsNew,
	}
}

// draftReader adapts drafts.Store to the rename resolution port.
type draftReader struct {
	store drafts.Store
}

func (r draftReader) DraftContent(ctx context.Context, repo, path string) (string, bool, error) {
	d, err := r.store.GetDraft(ctx, repo, path)
	if err != nil || d == nil {
		return "", false, err
	}
	return d.Content, true, nil
}

// upstreamReader adapts a provider client to the rename resolution port.
type upstreamReader struct {
	client gitrepo.Reader
}

func (r upstreamReader) FileContent(ctx context.Context, repo, path string) (string, bool, error) {
	owner, name, ok := splitFull(repo)
	if !ok {
		return "", false, fmt.Errorf("malformed repository %q", repo)
	}
	fc, err := r.client.GetFile(ctx, owner, name, path)
	if err != nil || fc == nil {
		return "", false, err
	}
	return fc.Content, true, nil
}

func splitFull(full string) (owner, repo string, ok bool) {
	for i := 0; i < len(full); i++ {
		if full[i] == '/' {
			return full[:i], full[i+1:], i > 0 && i < len(full)-1
		}
	}
	return "", "", false
}
