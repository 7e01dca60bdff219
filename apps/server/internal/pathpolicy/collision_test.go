package pathpolicy_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/scribe/apps/server/internal/pathpolicy"
)

func existingSet(paths ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

func TestResolveCollision_NoCollision(t *testing.T) {
	got, err := pathpolicy.ResolveCollision("docs/assets/pic.png", existingSet("docs/assets/other.png"))
	require.NoError(t, err)
	assert.Equal(t, "docs/assets/pic.png", got)
}

func TestResolveCollision_SuffixesBeforeExtension(t *testing.T) {
	got, err := pathpolicy.ResolveCollision("docs/assets/pic.png", existingSet("docs/assets/pic.png"))
	require.NoError(t, err)
	assert.Equal(t, "docs/assets/pic-1.png", got)
}

func TestResolveCollision_SkipsTakenSuffixes(t *testing.T) {
	existing := existingSet("pic.png", "pic-1.png", "pic-2.png")
	got, err := pathpolicy.ResolveCollision("pic.png", existing)
	require.NoError(t, err)
	assert.Equal(t, "pic-3.png", got)
}

func TestResolveCollision_ReturnsUnusedPath(t *testing.T) {
	existing := existingSet()
	for i := 0; i < 500; i++ {
		existing[fmt.Sprintf("f-%d.png", i)] = struct{}{}
	}
	existing["f.png"] = struct{}{}

	got, err := pathpolicy.ResolveCollision("f.png", existing)
	require.NoError(t, err)
	_, taken := existing[got]
	assert.False(t, taken)
}

func TestResolveCollision_OverflowsAtCap(t *testing.T) {
	existing := existingSet("f.png")
	for i := 1; i <= 1000; i++ {
		existing[fmt.Sprintf("f-%d.png", i)] = struct{}{}
	}

	_, err := pathpolicy.ResolveCollision("f.png", existing)
	var overflow pathpolicy.CollisionOverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, "f.png", overflow.Candidate)
}

func TestResolveCollisionBatch_AvoidsIntraBatchCollisions(t *testing.T) {
	existing := existingSet("img.png")
	got, err := pathpolicy.ResolveCollisionBatch([]string{"img.png", "img.png", "img.png"}, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"img-1.png", "img-2.png", "img-3.png"}, got)

	seen := map[string]bool{}
	for _, p := range got {
		assert.False(t, seen[p], "duplicate resolved path %q", p)
		seen[p] = true
	}
}

func TestResolveCollisionBatch_LeavesInputUntouched(t *testing.T) {
	existing := existingSet("a.png")
	got, err := pathpolicy.ResolveCollisionBatch([]string{"b.png", "c.png"}, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.png", "c.png"}, got)
	_, mutated := existing["b.png"]
	assert.False(t, mutated, "caller's existing set must not be mutated")
}
