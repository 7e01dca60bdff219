package proposals

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/openscribe/scribe/apps/server/internal/workspace"
	"github.com/openscribe/scribe/pkg/api"
)

const (
	maxTitleLen       = 256
	maxDescriptionLen = 65536

	// statusBudget bounds how long a user-facing status check waits for the
	// provider's merge computation before answering "still pending".
	statusBudget = 15 * time.Second
)

// Service coordinates proposal submission and status tracking.
type Service struct {
	clients  ClientProvider
	store    Store
	workflow WorkflowEngine
	log      *slog.Logger
	appName  string
	appURL   string
}

// NewService wires a proposal service.
func NewService(clients ClientProvider, store Store, workflow WorkflowEngine, log *slog.Logger, appName, appURL string) *Service {
	return &Service{
		clients:  clients,
		store:    store,
		workflow: workflow,
		log:      log,
		appName:  appName,
		appURL:   appURL,
	}
}

// Submit validates the request, runs the commit pipeline and records the
// resulting proposal. Asset bytes arrive base64-encoded alongside the
// changeset because the draft store is per-session and the pipeline runs
// stateless.
func (s *Service) Submit(ctx context.Context, req api.CreateProposalRequest, author Author) (*api.Proposal, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > maxTitleLen {
		return nil, ValidationFailedError{Errors: []string{fmt.Sprintf("title must be 1-%d characters", maxTitleLen)}}
	}
	if len(req.Description) > maxDescriptionLen {
		return nil, ValidationFailedError{Errors: []string{fmt.Sprintf("description must be at most %d characters", maxDescriptionLen)}}
	}

	result := workspace.ValidateChangeset(req.Changeset)
	if !result.Valid {
		return nil, ValidationFailedError{Errors: result.Errors}
	}
	for _, w := range result.Warnings {
		s.log.Warn("changeset warning", "repo", req.Changeset.RepoFullName, "warning", w)
	}

	owner, repo, err := splitRepo(req.Changeset.RepoFullName)
	if err != nil {
		return nil, ValidationFailedError{Errors: []string{err.Error()}}
	}

	assetBytes := make(map[string][]byte, len(req.Assets))
	for path, encoded := range req.Assets {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, ValidationFailedError{Errors: []string{fmt.Sprintf("asset %s: invalid base64 payload", path)}}
		}
		assetBytes[path] = raw
	}

	client, err := s.clients.ClientFor(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("acquire provider client: %w", err)
	}

	pipeline := NewPipeline(client, s.log, s.appName, s.appURL)
	pr, err := pipeline.Run(ctx, owner, repo, req.Changeset, title, req.Description, assetBytes, author)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	proposal := api.Proposal{
		ID:           strconv.Itoa(pr.PRNumber),
		RepoFullName: req.Changeset.RepoFullName,
		Title:        title,
		Description:  req.Description,
		Status:       api.ProposalStatusPending,
		URL:          pr.PRURL,
		BranchName:   pr.BranchName,
		AuthorLogin:  author.Login,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Save(ctx, proposal); err != nil {
		// The PR exists either way; losing the record only degrades listing.
		s.log.Error("persist proposal", "repo", proposal.RepoFullName, "id", proposal.ID, "error", err)
	}

	if s.workflow != nil {
		if err := s.workflow.StartStatusWorkflow(ctx, proposal.RepoFullName, proposal.ID); err != nil {
			s.log.Warn("start status workflow", "repo", proposal.RepoFullName, "id", proposal.ID, "error", err)
		}
	}

	return &proposal, nil
}

// CheckMergeability fetches the live pull request state, updates the stored
// proposal when the status moved, and returns the interpreted result.
func (s *Service) CheckMergeability(ctx context.Context, repoFullName, id string) (*api.MergeabilityResponse, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, ValidationFailedError{Errors: []string{err.Error()}}
	}
	number, err := strconv.Atoi(id)
	if err != nil {
		return nil, ProposalNotFoundError{Repo: repoFullName, ID: id}
	}

	client, err := s.clients.ClientFor(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("acquire provider client: %w", err)
	}

	m, err := PollMergeability(ctx, client, owner, repo, number, statusBudget)
	if err != nil {
		return nil, err
	}

	if stored, err := s.store.Get(ctx, repoFullName, id); err != nil {
		s.log.Error("load proposal", "repo", repoFullName, "id", id, "error", err)
	} else if stored != nil && stored.Status != m.Status {
		if err := s.store.SetStatus(ctx, repoFullName, id, m.Status); err != nil {
			s.log.Error("update proposal status", "repo", repoFullName, "id", id, "error", err)
		}
	}

	resp := &api.MergeabilityResponse{
		Status:          m.Status,
		CanMerge:        m.CanMerge,
		HasConflicts:    m.HasConflicts,
		CheckInProgress: m.CheckInProgress,
	}
	switch {
	case m.HasConflicts:
		resp.Message = "This proposal has conflicts with newer changes and cannot be published as-is."
	case m.CheckInProgress:
		resp.Message = "Publishability is still being computed; check back shortly."
	}
	return resp, nil
}

// Get returns one stored proposal.
func (s *Service) Get(ctx context.Context, repoFullName, id string) (*api.Proposal, error) {
	p, err := s.store.Get(ctx, repoFullName, id)
	if err != nil {
		return nil, fmt.Errorf("load proposal: %w", err)
	}
	if p == nil {
		return nil, ProposalNotFoundError{Repo: repoFullName, ID: id}
	}
	return p, nil
}

// List returns all stored proposals for a repository, newest first.
func (s *Service) List(ctx context.Context, repoFullName string) ([]api.Proposal, error) {
	ps, err := s.store.List(ctx, repoFullName)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return ps, nil
}

// Validate runs changeset validation without submitting anything.
func (s *Service) Validate(cs api.Changeset) api.ValidationResponse {
	result := workspace.ValidateChangeset(cs)
	return api.ValidationResponse{
		Valid:    result.Valid,
		Errors:   result.Errors,
		Warnings: result.Warnings,
	}
}

func splitRepo(full string) (owner, repo string, err error) {
	parts := strings.Split(full, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be owner/name, got %q", full)
	}
	return parts[0], parts[1], nil
}
