package proposals

import (
	"fmt"
	"strings"
)

// ValidationFailedError is returned when a submission fails pre-flight
// validation. Recoverable locally; never retried automatically.
type ValidationFailedError struct {
	Errors []string
}

// Error implements the error interface.
func (e ValidationFailedError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// ProposalNotFoundError is returned when the requested proposal does not
// exist in the store.
type ProposalNotFoundError struct {
	Repo string
	ID   string
}

// Error implements the error interface.
func (e ProposalNotFoundError) Error() string {
	return fmt.Sprintf("proposal %q not found in %q", e.ID, e.Repo)
}

// RepositoryNotFoundError is returned when the target repository has no
// resolvable default branch — empty, missing, or not covered by the
// installation. Callers surface this as "not found" regardless of the cause
// so the existence of private repositories is never leaked.
type RepositoryNotFoundError struct {
	Owner string
	Repo  string
}

// Error implements the error interface.
func (e RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository %s/%s not found", e.Owner, e.Repo)
}

// AssetMissingError is returned when a changeset references an asset path
// with no bytes supplied for it.
type AssetMissingError struct {
	Path string
}

// Error implements the error interface.
func (e AssetMissingError) Error() string {
	return fmt.Sprintf("no bytes supplied for asset %q", e.Path)
}
