package handler

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openscribe/scribe/apps/server/internal/pathpolicy"
	"github.com/openscribe/scribe/apps/server/internal/proposals"
	"github.com/openscribe/scribe/apps/server/internal/workspace"
	"github.com/openscribe/scribe/pkg/api"
)

// repoParams reads the owner/repo pair out of the URL.
func repoParams(c *gin.Context) (owner, repo string) {
	return c.Param("owner"), c.Param("repo")
}

// writeWorkspaceError maps domain errors onto HTTP statuses. Messages pass
// through the vocabulary filter so source-control terms never reach the
// editor UI. Anything the caller should not learn about renders as 404.
func (h *Handler) writeWorkspaceError(c *gin.Context, err error) {
	var (
		policy      workspace.PolicyViolationError
		notOpen     workspace.FileNotOpenError
		missing     workspace.UpstreamFileNotFoundError
		wsMissing   workspace.NotFoundError
		pending     workspace.PendingConflictError
		transition  workspace.InvalidTransitionError
		collision   pathpolicy.CollisionOverflowError
		repoMissing proposals.RepositoryNotFoundError
	)
	switch {
	case errors.As(err, &policy), errors.As(err, &missing), errors.As(err, &repoMissing):
		// Policy rejections deliberately look identical to absent files.
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &wsMissing), errors.As(err, &notOpen):
		c.JSON(http.StatusNotFound, gin.H{"error": proposals.SanitizeMessage(err.Error())})
	case errors.As(err, &pending), errors.As(err, &transition), errors.As(err, &collision):
		c.JSON(http.StatusConflict, gin.H{"error": proposals.SanitizeMessage(err.Error())})
	default:
		h.log.Error("workspace operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// ListTree handles GET /repos/:owner/:repo/tree.
func (h *Handler) ListTree(c *gin.Context) {
	owner, repo := repoParams(c)
	entries, err := h.workspaces.ListTree(c.Request.Context(), owner, repo, c.Query("path"))
	if err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GetFile handles GET /repos/:owner/:repo/file — open semantics, so a draft
// overlay is applied when one survives from an earlier session.
func (h *Handler) GetFile(c *gin.Context) {
	owner, repo := repoParams(c)
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter required"})
		return
	}
	view, err := h.workspaces.OpenFile(c.Request.Context(), currentSession(c).ID, owner, repo, path)
	if err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// OpenFile handles POST /repos/:owner/:repo/files/open.
func (h *Handler) OpenFile(c *gin.Context) {
	owner, repo := repoParams(c)
	var req api.OpenFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.workspaces.OpenFile(c.Request.Context(), currentSession(c).ID, owner, repo, req.Path)
	if err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CreateFile handles POST /repos/:owner/:repo/files.
func (h *Handler) CreateFile(c *gin.Context) {
	owner, repo := repoParams(c)
	var req api.CreateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.workspaces.CreateFile(c.Request.Context(), currentSession(c).ID, owner, repo, req.Path, req.Content)
	if err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// UpdateFile handles PUT /repos/:owner/:repo/files.
func (h *Handler) UpdateFile(c *gin.Context) {
	owner, repo := repoParams(c)
	var req api.UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// A stale autosave is not an error here: the service adopts the winning
	// draft, so the view below already carries the content the caller must
	// converge on.
	view, err := h.workspaces.UpdateFile(c.Request.Context(), currentSession(c).ID, owner, repo, req)
	if err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RenameFile handles POST /repos/:owner/:repo/files/rename.
func (h *Handler) RenameFile(c *gin.Context) {
	owner, repo := repoParams(c)
	var req api.RenameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.workspaces.RenameFile(c.Request.Context(), currentSession(c).ID, owner, repo, req.From, req.To); err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteFile handles POST /repos/:owner/:repo/files/delete.
func (h *Handler) DeleteFile(c *gin.Context) {
	owner, repo := repoParams(c)
	var req api.DeleteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.workspaces.DeleteFile(c.Request.Context(), currentSession(c).ID, owner, repo, req.Path); err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RevertFile handles POST /repos/:owner/:repo/files/revert.
func (h *Handler) RevertFile(c *gin.Context) {
	owner, repo := repoParams(c)
	var req api.RevertFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.workspaces.RevertFile(c.Request.Context(), currentSession(c).ID, owner, repo, req.Path); err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadAsset handles POST /repos/:owner/:repo/assets.
func (h *Handler) UploadAsset(c *gin.Context) {
	owner, repo := repoParams(c)
	var req api.UploadAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Bytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bytes must be base64"})
		return
	}
	resp, err := h.workspaces.UploadAsset(c.Request.Context(), currentSession(c).ID, owner, repo, req, raw)
	if err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetWorkspace handles GET /repos/:owner/:repo/workspace.
func (h *Handler) GetWorkspace(c *gin.Context) {
	owner, repo := repoParams(c)
	view, err := h.workspaces.View(currentSession(c).ID, owner, repo)
	if err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PreviewChangeset handles GET /repos/:owner/:repo/changeset.
func (h *Handler) PreviewChangeset(c *gin.Context) {
	owner, repo := repoParams(c)
	cs, validation, err := h.workspaces.Changeset(c.Request.Context(), currentSession(c).ID, owner, repo)
	if err != nil {
		h.writeWorkspaceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"changeset":  cs,
		"validation": validation,
		"summary":    workspace.SummarizeChangeset(cs),
	})
}
