package proposals_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openscribe/scribe/apps/server/internal/proposals"
)

func TestSanitizeMessage(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"A pull request already exists", "A proposal already exists"},
		{"could not create commit on branch", "could not create save on workspace"},
		{"merge failed for repository", "publish failed for project"},
		{"reference refs/heads/scribe/fix-typo-17 exists", "reference exists"},
		{
			"object 3f786850e387550fdab836ed7e6dc881de23001b missing",
			"object missing",
		},
		{"Branches diverged in both repositories", "workspace diverged in both project"},
		{"nothing to change here", "nothing to change here"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, proposals.SanitizeMessage(tc.in), "input %q", tc.in)
	}
}
