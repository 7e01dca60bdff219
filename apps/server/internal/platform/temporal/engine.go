package temporalplatform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/openscribe/scribe/apps/server/internal/proposals"
	"github.com/openscribe/scribe/apps/server/internal/proposals/execution"
)

// Compile-time check: *Engine implements proposals.WorkflowEngine.
var _ proposals.WorkflowEngine = (*Engine)(nil)

const taskQueue = "scribe-proposals"

// Engine implements proposals.WorkflowEngine using the Temporal SDK client.
type Engine struct {
	c client.Client
}

// NewEngine creates a new Temporal workflow engine.
func NewEngine(c client.Client) *Engine {
	return &Engine{c: c}
}

// TaskQueue returns the Temporal task queue name used by the engine.
func TaskQueue() string { return taskQueue }

// StartStatusWorkflow starts a status workflow for one proposal. The
// workflow ID is derived from the proposal identity so a duplicate start
// for the same proposal is a no-op rather than a second poller.
func (e *Engine) StartStatusWorkflow(ctx context.Context, repoFullName, proposalID string) error {
	opts := client.StartWorkflowOptions{
		ID:        workflowID(repoFullName, proposalID),
		TaskQueue: taskQueue,
	}
	input := execution.StatusWorkflowInput{RepoFullName: repoFullName, ProposalID: proposalID}
	_, err := e.c.ExecuteWorkflow(ctx, opts, "ProposalStatusWorkflow", input)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return nil
		}
		return fmt.Errorf("start status workflow for %s/%s: %w", repoFullName, proposalID, err)
	}
	return nil
}

func workflowID(repoFullName, proposalID string) string {
	return "proposal-" + strings.ReplaceAll(repoFullName, "/", "-") + "-" + proposalID
}
