package execution

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/openscribe/scribe/pkg/api"
)

// StatusWorkflowInput identifies the proposal a status workflow tracks.
type StatusWorkflowInput struct {
	RepoFullName string `json:"repoFullName"`
	ProposalID   string `json:"proposalId"`
}

const (
	statusPollInitial = 30 * time.Second
	statusPollMax     = 10 * time.Minute
	statusPollFactor  = 2.0

	// statusMaxLifetime bounds how long one workflow follows a proposal.
	// Long-lived open proposals fall back to on-demand refresh after this.
	statusMaxLifetime = 7 * 24 * time.Hour
)

// ProposalStatusWorkflow follows one proposal's pull request until it
// reaches a terminal state (published, closed or conflict).
//
// Each round it runs the CheckProposalStatus activity, which also persists
// any status transition, then sleeps with exponential backoff. A query
// handler ("status") exposes the last observed status in real time.
func ProposalStatusWorkflow(ctx workflow.Context, input StatusWorkflowInput) (api.ProposalStatus, error) {
	last := api.ProposalStatusPending

	if err := workflow.SetQueryHandler(ctx, "status", func() (api.ProposalStatus, error) {
		return last, nil
	}); err != nil {
		return last, fmt.Errorf("register query handler: %w", err)
	}

	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           workflow.GetInfo(ctx).TaskQueueName,
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 5,
		},
	})

	deadline := workflow.Now(ctx).Add(statusMaxLifetime)
	delay := statusPollInitial

	for {
		var result CheckStatusResult
		err := workflow.ExecuteActivity(actCtx, "CheckProposalStatus", CheckStatusInput(input)).Get(ctx, &result)
		if err != nil {
			return last, fmt.Errorf("check status for %s/%s: %w", input.RepoFullName, input.ProposalID, err)
		}
		last = result.Status

		switch last {
		case api.ProposalStatusPublished, api.ProposalStatusClosed, api.ProposalStatusConflict:
			return last, nil
		}

		if workflow.Now(ctx).Add(delay).After(deadline) {
			workflow.GetLogger(ctx).Info("status workflow lifetime exhausted",
				"repo", input.RepoFullName, "proposal", input.ProposalID, "status", last)
			return last, nil
		}
		if err := workflow.Sleep(ctx, delay); err != nil {
			return last, err
		}
		delay = time.Duration(float64(delay) * statusPollFactor)
		if delay > statusPollMax {
			delay = statusPollMax
		}
	}
}
