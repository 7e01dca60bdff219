package proposals_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/scribe/apps/server/internal/proposals"
)

var editStamp = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestAppendEditHistory_NoMarkerAppendsSection(t *testing.T) {
	out := proposals.AppendEditHistory("# Title\n\nBody text.\n", "octocat", editStamp)

	assert.True(t, strings.HasPrefix(out, "# Title\n\nBody text."))
	assert.Contains(t, out, "<!-- EDIT_HISTORY -->")
	assert.Contains(t, out, "<details>")
	assert.Contains(t, out, "| Date | Author |")
	assert.Contains(t, out, "| 2026-03-14 | @octocat |")
}

func TestAppendEditHistory_ExistingRowsGainOneMore(t *testing.T) {
	doc := strings.Join([]string{
		"# Title",
		"",
		"<details>",
		"<summary>Edit history</summary>",
		"",
		"<!-- EDIT_HISTORY -->",
		"| Date | Author |",
		"| --- | --- |",
		"| 2025-12-01 | @hubot |",
		"",
		"</details>",
	}, "\n")

	out := proposals.AppendEditHistory(doc, "octocat", editStamp)

	// One section, new row after the last existing one.
	assert.Equal(t, 1, strings.Count(out, "<!-- EDIT_HISTORY -->"))
	assert.Equal(t, 1, strings.Count(out, "<details>"))
	lines := strings.Split(out, "\n")
	hubot := indexOf(t, lines, "| 2025-12-01 | @hubot |")
	octo := indexOf(t, lines, "| 2026-03-14 | @octocat |")
	assert.Equal(t, hubot+1, octo)
}

func TestAppendEditHistory_TwoEditsStack(t *testing.T) {
	out := proposals.AppendEditHistory("content", "first", editStamp)
	out = proposals.AppendEditHistory(out, "second", editStamp.Add(24*time.Hour))

	assert.Equal(t, 1, strings.Count(out, "<!-- EDIT_HISTORY -->"))
	first := strings.Index(out, "@first")
	second := strings.Index(out, "@second")
	require.Positive(t, first)
	assert.Greater(t, second, first)
}

func indexOf(t *testing.T, lines []string, want string) int {
	t.Helper()
	for i, l := range lines {
		if strings.TrimSpace(l) == want {
			return i
		}
	}
	t.Fatalf("line %q not found", want)
	return -1
}
