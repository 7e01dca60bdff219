package proposals

import (
	"context"
	"fmt"
	"time"

	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
	"github.com/openscribe/scribe/pkg/api"
)

// Mergeability is the interpreted state of a proposal's pull request.
type Mergeability struct {
	Status          api.ProposalStatus
	CanMerge        bool
	HasConflicts    bool
	CheckInProgress bool
}

// PullRequestFetcher is the slice of the provider client the checker needs.
type PullRequestFetcher interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*gitrepo.PullRequestInfo, error)
}

// MapPullRequest interprets the raw pull request fields. The provider leaves
// mergeable unset while its background merge check runs, so an absent value
// means "ask again later", not "unknown forever".
func MapPullRequest(pr gitrepo.PullRequestInfo) Mergeability {
	switch {
	case pr.Merged:
		return Mergeability{Status: api.ProposalStatusPublished}
	case pr.State == "closed":
		return Mergeability{Status: api.ProposalStatusClosed}
	case pr.Mergeable == nil:
		return Mergeability{Status: api.ProposalStatusPending, CheckInProgress: true}
	case !*pr.Mergeable || pr.MergeableState == "dirty":
		return Mergeability{Status: api.ProposalStatusConflict, HasConflicts: true}
	default:
		return Mergeability{Status: api.ProposalStatusPending, CanMerge: true}
	}
}

const (
	pollBase   = time.Second
	pollFactor = 1.5
	pollCap    = 10 * time.Second
)

// PollMergeability re-fetches the pull request until the merge check settles
// or the budget elapses. On budget exhaustion the last observed state is
// returned with CheckInProgress still set rather than an error; the caller
// can surface it as pending and try again later.
func PollMergeability(ctx context.Context, client PullRequestFetcher, owner, repo string, number int, budget time.Duration) (Mergeability, error) {
	return pollMergeability(ctx, client, owner, repo, number, budget, pollBase)
}

func pollMergeability(ctx context.Context, client PullRequestFetcher, owner, repo string, number int, budget time.Duration, base time.Duration) (Mergeability, error) {
	deadline := time.Now().Add(budget)
	delay := base

	for {
		pr, err := client.GetPullRequest(ctx, owner, repo, number)
		if err != nil {
			return Mergeability{}, fmt.Errorf("fetch pull request #%d: %w", number, err)
		}
		m := MapPullRequest(*pr)
		if !m.CheckInProgress {
			return m, nil
		}
		if time.Now().Add(delay).After(deadline) {
			return m, nil
		}

		select {
		case <-ctx.Done():
			return Mergeability{}, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * pollFactor)
		if delay > pollCap {
			delay = pollCap
		}
	}
}
