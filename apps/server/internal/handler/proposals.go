package handler

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
	"github.com/openscribe/scribe/apps/server/internal/proposals"
	"github.com/openscribe/scribe/pkg/api"
)

// CreateProposal handles POST /proposals. When the request omits asset
// bytes, the staged bytes from the caller's workspace are used, and a
// successful submission clears that workspace.
func (h *Handler) CreateProposal(c *gin.Context) {
	var req api.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := currentSession(c)
	owner, repo, ok := splitRepoParam(req.Changeset.RepoFullName)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "changeset.repoFullName must be owner/name"})
		return
	}

	if len(req.Assets) == 0 && len(req.Changeset.Assets) > 0 {
		staged, err := h.workspaces.AssetBytes(c.Request.Context(), owner, repo, req.Changeset.Assets)
		if err != nil {
			h.writeWorkspaceError(c, err)
			return
		}
		req.Assets = encodeAssets(staged)
	}

	author := proposals.Author{Login: sess.Login, GitHubUserID: sess.GitHubUserID}
	p, err := h.proposals.Submit(c.Request.Context(), req, author)
	if err != nil {
		h.writeProposalError(c, err)
		return
	}

	if err := h.workspaces.Clear(c.Request.Context(), sess.ID, owner, repo); err != nil {
		// The proposal exists; a dangling workspace only means stale drafts.
		h.log.Warn("clear workspace after submit", "repo", req.Changeset.RepoFullName, "error", err)
	}

	c.JSON(http.StatusCreated, api.CreateProposalResponse{Proposal: *p})
}

// ListProposals handles GET /proposals/:owner/:repo.
func (h *Handler) ListProposals(c *gin.Context) {
	owner, repo := repoParams(c)
	items, err := h.proposals.List(c.Request.Context(), owner+"/"+repo)
	if err != nil {
		h.log.Error("failed to list proposals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if items == nil {
		items = []api.Proposal{}
	}
	c.JSON(http.StatusOK, api.ListProposalsResponse{Proposals: items})
}

// GetProposal handles GET /proposals/:owner/:repo/:id.
func (h *Handler) GetProposal(c *gin.Context) {
	owner, repo := repoParams(c)
	p, err := h.proposals.Get(c.Request.Context(), owner+"/"+repo, c.Param("id"))
	if err != nil {
		h.writeProposalError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CheckMergeability handles GET /proposals/:owner/:repo/:id/mergeability.
func (h *Handler) CheckMergeability(c *gin.Context) {
	owner, repo := repoParams(c)
	resp, err := h.proposals.CheckMergeability(c.Request.Context(), owner+"/"+repo, c.Param("id"))
	if err != nil {
		h.writeProposalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ValidateChangeset handles POST /changesets/validate.
func (h *Handler) ValidateChangeset(c *gin.Context) {
	var cs api.Changeset
	if err := c.ShouldBindJSON(&cs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.proposals.Validate(cs))
}

func (h *Handler) writeProposalError(c *gin.Context, err error) {
	var (
		validation  proposals.ValidationFailedError
		notFound    proposals.ProposalNotFoundError
		repoMissing proposals.RepositoryNotFoundError
		conflict    gitrepo.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"errors": validation.Errors})
	case errors.As(err, &notFound), errors.As(err, &repoMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": "a proposal for this workspace already exists or it contains no changes"})
	default:
		h.log.Error("proposal operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func splitRepoParam(full string) (owner, repo string, ok bool) {
	for i := 0; i < len(full); i++ {
		if full[i] == '/' {
			return full[:i], full[i+1:], i > 0 && i < len(full)-1
		}
	}
	return "", "", false
}

func encodeAssets(raw map[string][]byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for p, b := range raw {
		out[p] = base64.StdEncoding.EncodeToString(b)
	}
	return out
}
