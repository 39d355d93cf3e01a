package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// TransactionRepositoryPG is the PostgreSQL-backed transaction store.
// Multi-statement units (create, transition) run inside a database
// transaction on the pool; single reads go through the SQL runner so
// they share its marker logging.
type TransactionRepositoryPG struct {
	pool *pgxpool.Pool
	sql  infra.SQLExecutor
}

// NewTransactionRepository creates a new transaction repo.
func NewTransactionRepository(pool *pgxpool.Pool, sql infra.SQLExecutor) *TransactionRepositoryPG {
	return &TransactionRepositoryPG{pool: pool, sql: sql}
}

// Create inserts the transaction and its payment projection in one
// database transaction: both rows or neither.
func (r *TransactionRepositoryPG) Create(ctx context.Context, txn *domain.Transaction, pay *domain.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var contributionID string
	if txn.ContributionID != nil {
		contributionID = *txn.ContributionID
	}
	if _, err := tx.Exec(ctx, sqlinline.QInsertTransaction,
		txn.ID, txn.UserID, contributionID, txn.Amount, string(txn.Type), string(txn.Status),
		txn.OrderRef, txn.PaymentMethod, txn.Description, txn.Notes, txn.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if pay != nil {
		if _, err := tx.Exec(ctx, sqlinline.QInsertPayment,
			pay.ID, pay.TransactionID, pay.UserID, contributionID, pay.Amount, string(pay.Status), pay.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *TransactionRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectTransactionByID, id)
	return scanTransaction(row)
}

func (r *TransactionRepositoryPG) GetByOrderRef(ctx context.Context, orderRef string) (*domain.Transaction, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectTransactionByOrderRef, orderRef)
	return scanTransaction(row)
}

// ApplyTransition compare-and-sets the transaction status against
// txn.Status and mirrors the mapped status onto the payment projection,
// all inside one database transaction. Zero affected rows means another
// writer won the race: ErrConflict.
func (r *TransactionRepositoryPG) ApplyTransition(ctx context.Context, txn *domain.Transaction, target domain.TransactionStatus, paymentMethod, notes string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, sqlinline.QUpdateTransactionStatusCAS,
		txn.ID, string(txn.Status), string(target), paymentMethod, notes,
	)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	if txn.Type == domain.TransactionTypePayment {
		if _, err := tx.Exec(ctx, sqlinline.QUpdatePaymentStatusForTransaction,
			txn.ID, string(domain.PaymentStatusFor(target)),
		); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *TransactionRepositoryPG) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectPendingTransactionsBefore, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *TransactionRepositoryPG) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	args := []any{
		filter.UserID, filter.ContributionID, string(filter.Status), string(filter.Type),
		filter.OrderRef, filter.StartDate, filter.EndDate,
	}

	rows, err := r.sql.Query(ctx, sqlinline.QListTransactions, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	row := r.sql.QueryRow(ctx, sqlinline.QCountTransactions, args...)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var txn domain.Transaction
	var txnType, status string
	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.ContributionID, &txn.Amount, &txnType, &status,
		&txn.OrderRef, &txn.PaymentMethod, &txn.Description, &txn.Notes,
		&txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	txn.Type = domain.TransactionType(txnType)
	txn.Status = domain.TransactionStatus(status)
	return &txn, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var items []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		var txnType, status string
		if err := rows.Scan(
			&txn.ID, &txn.UserID, &txn.ContributionID, &txn.Amount, &txnType, &status,
			&txn.OrderRef, &txn.PaymentMethod, &txn.Description, &txn.Notes,
			&txn.CreatedAt, &txn.UpdatedAt,
		); err != nil {
			return nil, err
		}
		txn.Type = domain.TransactionType(txnType)
		txn.Status = domain.TransactionStatus(status)
		items = append(items, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

var _ domain.TransactionStore = (*TransactionRepositoryPG)(nil)
