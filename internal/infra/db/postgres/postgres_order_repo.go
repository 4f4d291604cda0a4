package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"zarinpal-payment-service/internal/domain"
	"zarinpal-payment-service/internal/domain/model"
	"zarinpal-payment-service/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, token, total_rials, currency, authority, ref_id, status, email, phone, created_at, updated_at, paid_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	if err := row.Scan(&o.ID, &o.Token, &o.TotalRials, &o.Currency, &o.Authority, &o.RefID, &o.Status, &o.Email, &o.Phone, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (
  id, token, total_rials, currency, authority, ref_id, status, email, phone, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  token=$2, total_rials=$3, currency=$4, authority=$5, ref_id=$6, status=$7, email=$8, phone=$9, updated_at=$11, paid_at=$12;`

	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.Token, o.TotalRials, o.Currency, o.Authority, o.RefID, o.Status, o.Email, o.Phone, o.CreatedAt, o.UpdatedAt, o.PaidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE token=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, token)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) SetAuthority(ctx context.Context, tx repository.Tx, orderID, authority string) error {
	const q = `UPDATE orders SET authority=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, orderID, authority)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkPaid is the linearization point for concurrent callbacks: the guarded
// UPDATE succeeds for exactly one caller, everyone else observes won=false.
func (r *orderRepo) MarkPaid(ctx context.Context, tx repository.Tx, orderID, refID string) (bool, error) {
	const q = `UPDATE orders SET status=$2, ref_id=$3, paid_at=NOW(), updated_at=NOW() WHERE id=$1 AND status <> $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, orderID, model.PaymentStatusPaid, refID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderRepo) AppendNote(ctx context.Context, tx repository.Tx, n *model.OrderNote) error {
	const q = `INSERT INTO order_notes (id, order_id, note, display_to_customer, created_at) VALUES ($1,$2,$3,$4,$5);`
	_, err := execSQL(ctx, r.pool, tx, q, n.ID, n.OrderID, n.Note, n.DisplayToCustomer, n.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) ListNotes(ctx context.Context, tx repository.Tx, orderID string) ([]*model.OrderNote, error) {
	const q = `SELECT id, order_id, note, display_to_customer, created_at FROM order_notes WHERE order_id=$1 ORDER BY id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, orderID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.OrderNote
	for rows.Next() {
		n := new(model.OrderNote)
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Note, &n.DisplayToCustomer, &n.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, n)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}
