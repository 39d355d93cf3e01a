package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// ContributionRepositoryPG reads contributions and owns the
// collected-amount ledger.
type ContributionRepositoryPG struct {
	pool *pgxpool.Pool
	sql  infra.SQLExecutor
}

// NewContributionRepository creates a new contribution repo.
func NewContributionRepository(pool *pgxpool.Pool, sql infra.SQLExecutor) *ContributionRepositoryPG {
	return &ContributionRepositoryPG{pool: pool, sql: sql}
}

func (r *ContributionRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Contribution, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectContributionByID, id)
	var c domain.Contribution
	var status string
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.TargetAmount, &c.CollectedAmount,
		&c.StartDate, &c.EndDate, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	c.Status = domain.ContributionStatus(status)
	return &c, nil
}

func (r *ContributionRepositoryPG) List(ctx context.Context) ([]domain.Contribution, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListContributions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Contribution
	for rows.Next() {
		var c domain.Contribution
		var status string
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.TargetAmount, &c.CollectedAmount,
			&c.StartDate, &c.EndDate, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Status = domain.ContributionStatus(status)
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ContributionRepositoryPG) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListContributionIDsWithTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ApplyDelta adds the signed amount to the collected total in a single
// statement, so concurrent deltas accumulate without a read window.
func (r *ContributionRepositoryPG) ApplyDelta(ctx context.Context, contributionID string, delta int64) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QApplyCollectedDelta, contributionID, delta)
	if err != nil {
		return fmt.Errorf("apply collected delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contribution %s: %w", contributionID, domain.ErrNotFound)
	}
	return nil
}

// Recompute re-derives the collected total from completed transactions
// under a row lock and writes it back when it differs.
func (r *ContributionRepositoryPG) Recompute(ctx context.Context, contributionID string) (int64, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var stored int64
	if err := tx.QueryRow(ctx, sqlinline.QSelectCollectedAmountForUpdate, contributionID).Scan(&stored); err != nil {
		if infra.IsNoRows(err) {
			return 0, false, fmt.Errorf("contribution %s: %w", contributionID, domain.ErrNotFound)
		}
		return 0, false, err
	}
	var derived int64
	if err := tx.QueryRow(ctx, sqlinline.QDerivedCollectedAmount, contributionID).Scan(&derived); err != nil {
		return 0, false, err
	}
	if derived == stored {
		return derived, false, tx.Commit(ctx)
	}
	if _, err := tx.Exec(ctx, sqlinline.QSetCollectedAmount, contributionID, derived); err != nil {
		return 0, false, err
	}
	return derived, true, tx.Commit(ctx)
}

var (
	_ domain.ContributionReader = (*ContributionRepositoryPG)(nil)
	_ domain.Ledger             = (*ContributionRepositoryPG)(nil)
)
