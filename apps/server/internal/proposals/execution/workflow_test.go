package execution_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/openscribe/scribe/apps/server/internal/proposals/execution"
	"github.com/openscribe/scribe/pkg/api"
)

// newActivities returns an Activities instance suitable for workflow tests.
// Every activity call is mocked via env.OnActivity so the nil checker is
// never actually used.
func newActivities() *execution.Activities {
	return execution.NewActivities(nil, slog.Default())
}

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	ts := &testsuite.WorkflowTestSuite{}
	return ts.NewTestWorkflowEnvironment()
}

var input = execution.StatusWorkflowInput{RepoFullName: "acme/handbook", ProposalID: "41"}

// ─── Terminal transitions ────────────────────────────────────────────────────

func TestProposalStatusWorkflow_PublishedEndsWorkflow(t *testing.T) {
	env := newEnv(t)
	acts := newActivities()
	env.RegisterActivity(acts)

	env.OnActivity(acts.CheckProposalStatus, mock.Anything, mock.Anything).
		Return(execution.CheckStatusResult{Status: api.ProposalStatusPublished}, nil).Once()

	env.ExecuteWorkflow(execution.ProposalStatusWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var status api.ProposalStatus
	require.NoError(t, env.GetWorkflowResult(&status))
	require.Equal(t, api.ProposalStatusPublished, status)
}

func TestProposalStatusWorkflow_PollsUntilTerminal(t *testing.T) {
	env := newEnv(t)
	acts := newActivities()
	env.RegisterActivity(acts)

	env.OnActivity(acts.CheckProposalStatus, mock.Anything, mock.Anything).
		Return(execution.CheckStatusResult{Status: api.ProposalStatusPending, CheckInProgress: true}, nil).Twice()
	env.OnActivity(acts.CheckProposalStatus, mock.Anything, mock.Anything).
		Return(execution.CheckStatusResult{Status: api.ProposalStatusConflict}, nil).Once()

	env.ExecuteWorkflow(execution.ProposalStatusWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var status api.ProposalStatus
	require.NoError(t, env.GetWorkflowResult(&status))
	require.Equal(t, api.ProposalStatusConflict, status)
}

func TestProposalStatusWorkflow_LifetimeExhaustedReturnsLastStatus(t *testing.T) {
	env := newEnv(t)
	acts := newActivities()
	env.RegisterActivity(acts)

	// Never settles; the test environment fast-forwards the sleeps until
	// the workflow gives up at its lifetime bound.
	env.OnActivity(acts.CheckProposalStatus, mock.Anything, mock.Anything).
		Return(execution.CheckStatusResult{Status: api.ProposalStatusPending, CheckInProgress: true}, nil)

	env.ExecuteWorkflow(execution.ProposalStatusWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var status api.ProposalStatus
	require.NoError(t, env.GetWorkflowResult(&status))
	require.Equal(t, api.ProposalStatusPending, status)
}
