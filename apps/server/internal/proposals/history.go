package proposals

import (
	"fmt"
	"strings"
	"time"
)

// historyMarker is the sentinel that anchors the edit-history table inside a
// document. Attribution lives in the file itself because the commit author is
// the app's bot identity, not the person who edited.
const historyMarker = "<!-- EDIT_HISTORY -->"

// AppendEditHistory returns content with an edit-history row for author at
// the given time. If the sentinel marker already exists the new row is
// inserted directly after the existing rows; otherwise a fresh collapsible
// section is appended to the document.
func AppendEditHistory(content, author string, at time.Time) string {
	row := fmt.Sprintf("| %s | @%s |", at.UTC().Format("2006-01-02"), author)

	idx := strings.Index(content, historyMarker)
	if idx < 0 {
		section := fmt.Sprintf(
			"\n\n<details>\n<summary>Edit history</summary>\n\n%s\n| Date | Author |\n| --- | --- |\n%s\n\n</details>\n",
			historyMarker, row,
		)
		return strings.TrimRight(content, "\n") + section
	}

	lines := strings.Split(content, "\n")
	markerLine := -1
	for i, line := range lines {
		if strings.Contains(line, historyMarker) {
			markerLine = i
			break
		}
	}

	// Walk past the header, separator and any existing rows so the new row
	// lands after the last one instead of opening a duplicate section.
	insertAt := markerLine + 1
	for insertAt < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[insertAt]), "|") {
		insertAt++
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insertAt]...)
	out = append(out, row)
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, "\n")
}
