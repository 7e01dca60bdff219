package proposals

import (
	"context"

	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
	"github.com/openscribe/scribe/pkg/api"
)

// Store persists proposal records. Implementations must treat (repo, id) as
// the natural key; Save is an upsert so status refreshes reuse it.
type Store interface {
	Save(ctx context.Context, p api.Proposal) error
	Get(ctx context.Context, repoFullName, id string) (*api.Proposal, error) //nolint:nilnil // nil,nil means not found
	List(ctx context.Context, repoFullName string) ([]api.Proposal, error)
	SetStatus(ctx context.Context, repoFullName, id string, status api.ProposalStatus) error
}

// ClientProvider hands out a git provider client per repository. The factory
// behind it mints installation-scoped tokens, so clients must not be cached
// across requests.
type ClientProvider interface {
	ClientFor(ctx context.Context, owner, repo string) (gitrepo.Client, error)
}

// WorkflowEngine starts the background status workflow for a new proposal.
// Starting is best-effort: a proposal without a workflow is still valid and
// gets refreshed on demand.
type WorkflowEngine interface {
	StartStatusWorkflow(ctx context.Context, repoFullName, proposalID string) error
}
