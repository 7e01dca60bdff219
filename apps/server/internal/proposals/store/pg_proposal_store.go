package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openscribe/scribe/apps/server/internal/proposals"
	"github.com/openscribe/scribe/pkg/api"
)

// Compile-time check: *PGProposalStore implements proposals.Store.
var _ proposals.Store = (*PGProposalStore)(nil)

// PGProposalStore implements proposals.Store using PostgreSQL. Proposals are
// keyed by (repo, id) where id is the pull request number; the underlying PR
// is the source of truth, this table only carries what listing needs.
type PGProposalStore struct {
	pool *pgxpool.Pool
}

// NewPGProposalStore creates a new PGProposalStore.
func NewPGProposalStore(pool *pgxpool.Pool) *PGProposalStore {
	return &PGProposalStore{pool: pool}
}

// Save upserts a proposal record.
func (s *PGProposalStore) Save(ctx context.Context, p api.Proposal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO proposals (repo_full_name, id, title, description, status, url, branch_name, author_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (repo_full_name, id) DO UPDATE SET
			title        = EXCLUDED.title,
			description  = EXCLUDED.description,
			status       = EXCLUDED.status,
			url          = EXCLUDED.url,
			branch_name  = EXCLUDED.branch_name,
			author_login = EXCLUDED.author_login,
			updated_at   = EXCLUDED.updated_at`,
		p.RepoFullName, p.ID, p.Title, p.Description, string(p.Status),
		p.URL, p.BranchName, p.AuthorLogin, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert proposal %s/%s: %w", p.RepoFullName, p.ID, err)
	}
	return nil
}

// Get retrieves one proposal. Returns nil, nil when not found.
func (s *PGProposalStore) Get(ctx context.Context, repoFullName, id string) (*api.Proposal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT repo_full_name, id, title, description, status, url, branch_name, author_login, created_at, updated_at
		 FROM proposals WHERE repo_full_name = $1 AND id = $2`, repoFullName, id)

	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil
		}
		return nil, fmt.Errorf("get proposal %s/%s: %w", repoFullName, id, err)
	}
	return p, nil
}

// List returns all proposals for a repository, newest first.
func (s *PGProposalStore) List(ctx context.Context, repoFullName string) ([]api.Proposal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT repo_full_name, id, title, description, status, url, branch_name, author_login, created_at, updated_at
		 FROM proposals WHERE repo_full_name = $1 ORDER BY created_at DESC`, repoFullName)
	if err != nil {
		return nil, fmt.Errorf("list proposals for %q: %w", repoFullName, err)
	}
	defer rows.Close()

	var out []api.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SetStatus updates a proposal's status.
func (s *PGProposalStore) SetStatus(ctx context.Context, repoFullName, id string, status api.ProposalStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE proposals SET status = $1, updated_at = NOW()
		 WHERE repo_full_name = $2 AND id = $3`,
		string(status), repoFullName, id)
	if err != nil {
		return fmt.Errorf("set proposal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return proposals.ProposalNotFoundError{Repo: repoFullName, ID: id}
	}
	return nil
}

// pgScanner is implemented by both pgx.Row and pgx.Rows.
type pgScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row pgScanner) (*api.Proposal, error) {
	var p api.Proposal
	var status string
	err := row.Scan(&p.RepoFullName, &p.ID, &p.Title, &p.Description, &status,
		&p.URL, &p.BranchName, &p.AuthorLogin, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = api.ProposalStatus(status)
	return &p, nil
}
