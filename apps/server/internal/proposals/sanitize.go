package proposals

import (
	"regexp"
	"strings"
)

// The product never shows source-control vocabulary to end users. Upstream
// error text passes through this table before display.
var vocabulary = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)pull request`), "proposal"},
	{regexp.MustCompile(`(?i)\bcommits?\b`), "save"},
	{regexp.MustCompile(`(?i)\bbranch(es)?\b`), "workspace"},
	{regexp.MustCompile(`(?i)\bmerge[ds]?\b`), "publish"},
	{regexp.MustCompile(`(?i)\brepositor(y|ies)\b`), "project"},
	{regexp.MustCompile(`refs/heads/\S+`), ""},
	{regexp.MustCompile(`\b[0-9a-f]{40}\b`), ""}, // content identifiers
}

// SanitizeMessage strips source-control vocabulary and internal identifiers
// from a message before it reaches the user.
func SanitizeMessage(msg string) string {
	out := msg
	for _, v := range vocabulary {
		out = v.pattern.ReplaceAllString(out, v.replacement)
	}
	out = strings.Join(strings.Fields(out), " ")
	return out
}
