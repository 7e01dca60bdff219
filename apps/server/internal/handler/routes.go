package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/openscribe/scribe/apps/server/internal/platform/csrf"
	"github.com/openscribe/scribe/apps/server/internal/proposals"
	"github.com/openscribe/scribe/apps/server/internal/workspace"
)

// Handler translates HTTP requests into calls on the workspace and proposal
// services.
type Handler struct {
	workspaces *workspace.Service
	proposals  *proposals.Service
	log        *slog.Logger
}

// RegisterRoutes mounts the Scribe API onto the given Gin engine. The
// session middleware runs on every route; CSRF protection only guards the
// mutating ones.
func RegisterRoutes(r *gin.Engine, ws *workspace.Service, ps *proposals.Service, sessions *Sessions, log *slog.Logger) {
	h := &Handler{workspaces: ws, proposals: ps, log: log}

	r.Use(sessions.Middleware())

	r.GET("/session", h.GetSession)
	r.GET("/healthz", h.Health)

	authed := r.Group("", csrf.Middleware())

	// Repository browsing and the editing workspace
	authed.GET("/repos/:owner/:repo/tree", h.ListTree)
	authed.GET("/repos/:owner/:repo/file", h.GetFile)
	authed.GET("/repos/:owner/:repo/workspace", h.GetWorkspace)
	authed.GET("/repos/:owner/:repo/changeset", h.PreviewChangeset)
	authed.POST("/repos/:owner/:repo/files/open", h.OpenFile)
	authed.POST("/repos/:owner/:repo/files", h.CreateFile)
	authed.PUT("/repos/:owner/:repo/files", h.UpdateFile)
	authed.POST("/repos/:owner/:repo/files/rename", h.RenameFile)
	authed.POST("/repos/:owner/:repo/files/delete", h.DeleteFile)
	authed.POST("/repos/:owner/:repo/files/revert", h.RevertFile)
	authed.POST("/repos/:owner/:repo/assets", h.UploadAsset)

	// Proposals
	authed.POST("/changesets/validate", h.ValidateChangeset)
	authed.POST("/proposals", h.CreateProposal)
	authed.GET("/proposals/:owner/:repo", h.ListProposals)
	authed.GET("/proposals/:owner/:repo/:id", h.GetProposal)
	authed.GET("/proposals/:owner/:repo/:id/mergeability", h.CheckMergeability)
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
