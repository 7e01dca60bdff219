package proposals

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openscribe/scribe/apps/server/internal/gitrepo"
	"github.com/openscribe/scribe/pkg/api"
)

const instrName = "github.com/openscribe/scribe"

// Author identifies the person submitting a proposal. The pipeline credits
// them via a Co-authored-by trailer because the API token belongs to the app
// installation, not the user.
type Author struct {
	Login        string
	GitHubUserID int64
}

// PipelineResult is the outcome of a successful pipeline run.
type PipelineResult struct {
	PRNumber   int
	PRURL      string
	BranchName string
	CommitSHA  string
}

// Pipeline turns a validated changeset plus raw asset bytes into one commit
// and an open pull request using only the git data primitives. Steps run in
// a fixed order; blob creation fans out per file, everything after it is
// strictly sequential. Any failure aborts the run — there is no partial
// rollback and no automatic retry, since re-running a half-finished sequence
// would risk duplicate blobs and branches.
type Pipeline struct {
	client       gitrepo.Client
	log          *slog.Logger
	branchPrefix string
	appName      string
	appURL       string
	now          func() time.Time
}

// NewPipeline creates a Pipeline over the given provider client.
func NewPipeline(client gitrepo.Client, log *slog.Logger, appName, appURL string) *Pipeline {
	return &Pipeline{
		client:       client,
		log:          log,
		branchPrefix: "scribe",
		appName:      appName,
		appURL:       appURL,
		now:          time.Now,
	}
}

// WithClock overrides the pipeline clock. Tests use this to pin branch names.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run executes the full sequence for one changeset.
func (p *Pipeline) Run(
	ctx context.Context,
	owner, repo string,
	cs api.Changeset,
	title, description string,
	assetBytes map[string][]byte,
	author Author,
) (*PipelineResult, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "ProposalPipeline",
		trace.WithAttributes(
			attribute.String("repo", owner+"/"+repo),
			attribute.Int("files", len(cs.Modified)+len(cs.Created)),
			attribute.Int("assets", len(cs.Assets)),
		),
	)
	defer span.End()

	// 1–2. Resolve the default branch and its base tree.
	baseRef, err := p.client.GetDefaultBranchRef(ctx, owner, repo)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("resolve default branch: %w", err)
	}
	if baseRef == nil {
		return nil, RepositoryNotFoundError{Owner: owner, Repo: repo}
	}
	baseCommit, err := p.client.GetCommit(ctx, owner, repo, baseRef.SHA)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch base commit: %w", err)
	}

	// 3–4. Create blobs: annotated text first, then base64 assets.
	entries, err := p.createBlobs(ctx, owner, repo, cs, assetBytes, author)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Deletions ride in the same tree as entries without a blob.
	for _, path := range cs.Deleted {
		entries = append(entries, gitrepo.TreeEntry{Path: path})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	// 5. Create the tree on top of the base tree.
	treeSHA, err := p.client.CreateTree(ctx, owner, repo, baseCommit.TreeSHA, entries)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create tree: %w", err)
	}

	// 6. Create the commit with the co-author trailer.
	commitSHA, err := p.client.CreateCommit(ctx, owner, repo, gitrepo.NewCommit{
		Message:   commitMessage(title, description, author),
		TreeSHA:   treeSHA,
		ParentSHA: baseRef.SHA,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create commit: %w", err)
	}

	// 7. Create the branch. The millisecond suffix keeps concurrent
	// proposals with similar titles from colliding on the ref name.
	branch := fmt.Sprintf("%s/%s-%d", p.branchPrefix, slugify(title), p.now().UnixMilli())
	if err := p.client.CreateRef(ctx, owner, repo, "refs/heads/"+branch, commitSHA); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create branch: %w", err)
	}

	// 8. Open the pull request into the default branch.
	pr, err := p.client.OpenPullRequest(ctx, owner, repo, gitrepo.PullRequestSpec{
		Title: title,
		Body:  prBody(description, author, p.appName, p.appURL),
		Head:  branch,
		Base:  strings.TrimPrefix(baseRef.Ref, "refs/heads/"),
	})
	if err != nil {
		span.RecordError(err)
		// The 422 conflict is typed; pass it through unwrapped so callers
		// can distinguish it from transport failures.
		return nil, err
	}

	p.log.Info("proposal created",
		"repo", owner+"/"+repo,
		"pr", pr.Number,
		"branch", branch,
		"author", author.Login,
	)

	return &PipelineResult{
		PRNumber:   pr.Number,
		PRURL:      pr.HTMLURL,
		BranchName: branch,
		CommitSHA:  commitSHA,
	}, nil
}

// createBlobs fans blob creation out per file. Creating a blob has no
// dependency on any other blob, so this is the one step that parallelizes;
// the slice of entries is assembled deterministically afterwards.
func (p *Pipeline) createBlobs(
	ctx context.Context,
	owner, repo string,
	cs api.Changeset,
	assetBytes map[string][]byte,
	author Author,
) ([]gitrepo.TreeEntry, error) {
	type blobJob struct {
		path     string
		content  string
		encoding gitrepo.BlobEncoding
	}

	jobs := make([]blobJob, 0, len(cs.Modified)+len(cs.Created)+len(cs.Assets))
	stamp := p.now()
	for path, content := range cs.Modified {
		jobs = append(jobs, blobJob{path, AppendEditHistory(content, author.Login, stamp), gitrepo.EncodingUTF8})
	}
	for path, content := range cs.Created {
		jobs = append(jobs, blobJob{path, AppendEditHistory(content, author.Login, stamp), gitrepo.EncodingUTF8})
	}
	for _, path := range cs.Assets {
		raw, ok := assetBytes[path]
		if !ok {
			return nil, AssetMissingError{Path: path}
		}
		jobs = append(jobs, blobJob{path, base64.StdEncoding.EncodeToString(raw), gitrepo.EncodingBase64})
	}

	entries := make([]gitrepo.TreeEntry, len(jobs))
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job blobJob) {
			defer wg.Done()
			sha, err := p.client.CreateBlob(ctx, owner, repo, job.content, job.encoding)
			if err != nil {
				errs[i] = fmt.Errorf("create blob %s: %w", job.path, err)
				return
			}
			entries[i] = gitrepo.TreeEntry{Path: job.path, BlobSHA: sha}
		}(i, job)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func commitMessage(title, description string, author Author) string {
	var b strings.Builder
	b.WriteString(title)
	if description != "" {
		b.WriteString("\n\n")
		b.WriteString(description)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Co-authored-by: %s <%d+%s@users.noreply.github.com>",
		author.Login, author.GitHubUserID, author.Login)
	return b.String()
}

func prBody(description string, author Author, appName, appURL string) string {
	var b strings.Builder
	if description != "" {
		b.WriteString(description)
		b.WriteString("\n\n")
	}
	b.WriteString("---\n")
	fmt.Fprintf(&b, "Proposed by [@%s](https://github.com/%s) via [%s](%s).",
		author.Login, author.Login, appName, appURL)
	return b.String()
}

// slugify reduces a title to a ref-safe slug.
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "proposal"
	}
	if len(out) > 60 {
		out = strings.Trim(out[:60], "-")
	}
	return out
}
