package workspace

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openscribe/scribe/apps/server/internal/pathpolicy"
	"github.com/openscribe/scribe/pkg/api"
)

// FileOp is the tagged union of operations a changeset can carry. Using a
// closed set of variants keeps the builder's branching exhaustive instead of
// reasoning about reachable boolean-flag combinations.
type FileOp interface {
	isFileOp()
}

// ModifiedOp edits an existing upstream file.
type ModifiedOp struct {
	Path    string
	Content string
}

// CreatedOp adds a file that does not exist upstream.
type CreatedOp struct {
	Path    string
	Content string
}

// DeletedOp removes an upstream file.
type DeletedOp struct {
	Path string
}

// RenamedOp moves an upstream file. At submission time it is expressed as
// delete-From plus create-To; there is no native rename in the commit flow.
type RenamedOp struct {
	From string
	To   string
}

func (ModifiedOp) isFileOp() {}
func (CreatedOp) isFileOp()  {}
func (DeletedOp) isFileOp()  {}
func (RenamedOp) isFileOp()  {}

// Ops enumerates the workspace's pending operations as the tagged union.
func (w Workspace) Ops() []FileOp {
	var ops []FileOp
	for _, fs := range w.files {
		if fs.Status == StatusClean {
			continue
		}
		if fs.IsNew {
			ops = append(ops, CreatedOp{Path: fs.Path, Content: fs.CurrentContent})
		} else {
			ops = append(ops, ModifiedOp{Path: fs.Path, Content: fs.CurrentContent})
		}
	}
	for p := range w.pendingDeleted {
		ops = append(ops, DeletedOp{Path: p})
	}
	for from, to := range w.pendingRenamed {
		ops = append(ops, RenamedOp{From: from, To: to})
	}
	return ops
}

// BuildChangeset derives the transmittable changeset from the workspace.
// Renames are not yet expanded here: their content may live outside the
// workspace (draft store, or upstream) and is resolved by ExpandRenames.
func BuildChangeset(w Workspace) api.Changeset {
	cs := api.Changeset{
		RepoFullName: w.RepoFullName,
		Modified:     map[string]string{},
		Created:      map[string]string{},
		Deleted:      []string{},
		Assets:       []string{},
	}

	for _, op := range w.Ops() {
		switch o := op.(type) {
		case ModifiedOp:
			cs.Modified[o.Path] = o.Content
		case CreatedOp:
			cs.Created[o.Path] = o.Content
		case DeletedOp:
			cs.Deleted = append(cs.Deleted, o.Path)
		case RenamedOp:
			// expanded later
		}
	}

	for _, as := range w.assets {
		if as.IsNew {
			cs.Assets = append(cs.Assets, as.Path)
		}
	}

	sort.Strings(cs.Deleted)
	sort.Strings(cs.Assets)
	return cs
}

// DraftReader is the slice of the draft store the rename chain needs.
type DraftReader interface {
	DraftContent(ctx context.Context, repo, path string) (string, bool, error)
}

// UpstreamReader fetches current file content from the hosting provider.
type UpstreamReader interface {
	FileContent(ctx context.Context, repo, path string) (string, bool, error)
}

// ExpandRenames rewrites each pending rename into delete-old + create-new on
// the changeset. Content for the new path is resolved in priority order: the
// live editor buffer if the path is open, the draft at the new path, the
// draft at the old path, and finally the upstream file at the old path. A
// rename whose content cannot be found anywhere is dropped — best effort,
// matching the behavior when the upstream file disappeared between edit and
// submit.
func ExpandRenames(
	ctx context.Context,
	w Workspace,
	cs *api.Changeset,
	drafts DraftReader,
	upstream UpstreamReader,
) error {
	origins := make([]string, 0, len(w.pendingRenamed))
	for from := range w.pendingRenamed {
		origins = append(origins, from)
	}
	sort.Strings(origins)

	for _, from := range origins {
		to := w.pendingRenamed[from]

		content, found, err := renameContent(ctx, w, from, to, drafts, upstream)
		if err != nil {
			return fmt.Errorf("resolve rename %s -> %s: %w", from, to, err)
		}
		if !found {
			continue
		}
		cs.Created[to] = content
		cs.Deleted = append(cs.Deleted, from)
	}
	sort.Strings(cs.Deleted)
	return nil
}

func renameContent(
	ctx context.Context,
	w Workspace,
	from, to string,
	drafts DraftReader,
	upstream UpstreamReader,
) (string, bool, error) {
	if fs, ok := w.files[to]; ok {
		return fs.CurrentContent, true, nil
	}
	for _, p := range []string{to, from} {
		content, ok, err := drafts.DraftContent(ctx, w.RepoFullName, p)
		if err != nil {
			return "", false, fmt.Errorf("read draft %s: %w", p, err)
		}
		if ok {
			return content, true, nil
		}
	}
	content, ok, err := upstream.FileContent(ctx, w.RepoFullName, from)
	if err != nil {
		return "", false, fmt.Errorf("fetch upstream %s: %w", from, err)
	}
	return content, ok, nil
}

// Validation thresholds. Warnings are informational; they never block.
const (
	warnFileCount    = 20
	warnContentBytes = 1 << 20
)

// ValidationResult is the outcome of changeset validation.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateChangeset checks a changeset before submission. Errors (empty
// changeset, unsafe paths, a path duplicated across collections) block
// submission; warnings (large file counts, large aggregate content) do not.
func ValidateChangeset(cs api.Changeset) ValidationResult {
	var res ValidationResult

	total := len(cs.Modified) + len(cs.Created) + len(cs.Deleted) + len(cs.Assets)
	if total == 0 {
		res.Errors = append(res.Errors, "No changes to propose")
	}

	seen := map[string]string{}
	check := func(p, collection string) {
		if !pathpolicy.IsPathSafe(p) {
			res.Errors = append(res.Errors, fmt.Sprintf("invalid path %q", p))
		}
		if prev, dup := seen[p]; dup {
			res.Errors = append(res.Errors, fmt.Sprintf("path %q appears in both %s and %s", p, prev, collection))
			return
		}
		seen[p] = collection
	}

	var bytes int
	for p, content := range cs.Modified {
		check(p, "modified")
		bytes += len(content)
	}
	for p, content := range cs.Created {
		check(p, "created")
		bytes += len(content)
	}
	for _, p := range cs.Deleted {
		check(p, "deleted")
	}
	for _, p := range cs.Assets {
		check(p, "assets")
	}

	if total > warnFileCount {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d files touched; consider splitting the proposal", total))
	}
	if bytes > warnContentBytes {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d bytes of content; large proposals are slow to review", bytes))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// SummarizeChangeset renders a one-line description for logs.
func SummarizeChangeset(cs api.Changeset) string {
	parts := []string{}
	if n := len(cs.Modified); n > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", n))
	}
	if n := len(cs.Created); n > 0 {
		parts = append(parts, fmt.Sprintf("%d created", n))
	}
	if n := len(cs.Deleted); n > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", n))
	}
	if n := len(cs.Assets); n > 0 {
		parts = append(parts, fmt.Sprintf("%d assets", n))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}
