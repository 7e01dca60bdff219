package execution

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openscribe/scribe/pkg/api"
)

const instrName = "github.com/openscribe/scribe"

// StatusChecker is the slice of the proposal service the activities need.
type StatusChecker interface {
	CheckMergeability(ctx context.Context, repoFullName, id string) (*api.MergeabilityResponse, error)
}

// CheckStatusInput is the input for the CheckProposalStatus activity.
type CheckStatusInput struct {
	RepoFullName string `json:"repoFullName"`
	ProposalID   string `json:"proposalId"`
}

// CheckStatusResult is returned by the CheckProposalStatus activity.
type CheckStatusResult struct {
	Status          api.ProposalStatus `json:"status"`
	CheckInProgress bool               `json:"checkInProgress"`
}

// Activities groups Temporal activity methods. The struct holds dependencies
// injected at startup (idiomatic Temporal pattern).
type Activities struct {
	checker StatusChecker
	log     *slog.Logger
}

// NewActivities creates a new Activities instance with the given dependencies.
func NewActivities(checker StatusChecker, log *slog.Logger) *Activities {
	return &Activities{checker: checker, log: log}
}

// CheckProposalStatus fetches the proposal's live pull request state. The
// checker already persists status transitions, so the workflow only has to
// decide whether to keep polling.
func (a *Activities) CheckProposalStatus(ctx context.Context, input CheckStatusInput) (CheckStatusResult, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "CheckProposalStatus",
		trace.WithAttributes(
			attribute.String("proposal.repo", input.RepoFullName),
			attribute.String("proposal.id", input.ProposalID),
		),
	)
	defer span.End()

	resp, err := a.checker.CheckMergeability(ctx, input.RepoFullName, input.ProposalID)
	if err != nil {
		span.RecordError(err)
		return CheckStatusResult{}, fmt.Errorf("check proposal %s/%s: %w", input.RepoFullName, input.ProposalID, err)
	}

	a.log.Info("checked proposal status",
		"repo", input.RepoFullName,
		"proposal", input.ProposalID,
		"status", resp.Status,
	)
	return CheckStatusResult{Status: resp.Status, CheckInProgress: resp.CheckInProgress}, nil
}
