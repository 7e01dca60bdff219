package pathpolicy

import (
	"fmt"
	"path"
	"strings"
)

// maxCollisionAttempts caps suffix probing. Hitting it means the existing set
// is pathological (abuse or misconfiguration), so we fail rather than spin.
const maxCollisionAttempts = 1000

// CollisionOverflowError is returned when no free path is found within the
// attempt cap.
type CollisionOverflowError struct {
	Candidate string
}

// Error implements the error interface.
func (e CollisionOverflowError) Error() string {
	return fmt.Sprintf("no available name for %q after %d attempts", e.Candidate, maxCollisionAttempts)
}

// ResolveCollision returns candidate unchanged when it does not collide with
// existing; otherwise it appends -1, -2, ... before the extension until a free
// name is found.
func ResolveCollision(candidate string, existing map[string]struct{}) (string, error) {
	if _, taken := existing[candidate]; !taken {
		return candidate, nil
	}

	ext := path.Ext(candidate)
	stem := strings.TrimSuffix(candidate, ext)
	for i := 1; i <= maxCollisionAttempts; i++ {
		next := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, taken := existing[next]; !taken {
			return next, nil
		}
	}
	return "", CollisionOverflowError{Candidate: candidate}
}

// ResolveCollisionBatch resolves each candidate against existing plus every
// path already resolved in this batch, so two files uploaded together can
// never collide with each other.
func ResolveCollisionBatch(candidates []string, existing map[string]struct{}) ([]string, error) {
	taken := make(map[string]struct{}, len(existing)+len(candidates))
	for p := range existing {
		taken[p] = struct{}{}
	}

	resolved := make([]string, 0, len(candidates))
	for _, c := range candidates {
		r, err := ResolveCollision(c, taken)
		if err != nil {
			return nil, err
		}
		taken[r] = struct{}{}
		resolved = append(resolved, r)
	}
	return resolved, nil
}
