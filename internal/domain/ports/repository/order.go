package repository

import (
	"context"

	"zarinpal-payment-service/internal/domain/model"
)

// -----------------------------
// Orders
// -----------------------------

type OrderRepository interface {
	Save(ctx context.Context, qx Tx, o *model.Order) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Order, error)
	// FindByToken resolves the callback correlation token to exactly one order.
	FindByToken(ctx context.Context, qx Tx, token string) (*model.Order, error)
	// SetAuthority records the gateway authority token after a successful
	// payment request.
	SetAuthority(ctx context.Context, qx Tx, orderID, authority string) error
	// MarkPaid transitions the order to paid and records the gateway
	// reference id. It must be idempotent: won=false means another call
	// already paid the order and nothing was changed.
	MarkPaid(ctx context.Context, qx Tx, orderID, refID string) (won bool, err error)
	AppendNote(ctx context.Context, qx Tx, n *model.OrderNote) error
	ListNotes(ctx context.Context, qx Tx, orderID string) ([]*model.OrderNote, error)
}
