package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // order placed; awaiting gateway verification
	PaymentStatusPaid      PaymentStatus = "paid"      // verified OK at the gateway
	PaymentStatusCancelled PaymentStatus = "cancelled" // buyer abandoned or admin cancelled
)

// Order is the checkout attempt this service drives through the gateway.
// It is owned by the host storefront; this service reads it by correlation
// token and mutates only its payment state.
type Order struct {
	ID         string // UUID
	Token      string // correlation token embedded in the callback URL (UUID, immutable)
	TotalRials int64  // order total in Rials (integer minor units)
	Currency   string // "IRR"
	Authority  string // gateway authority token, set after a successful payment request
	RefID      string // gateway reference id, set after successful verification
	Status     PaymentStatus
	Email      string // buyer contact resolved by the storefront at order creation
	Phone      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	PaidAt     *time.Time
}

// OrderNote is an audit line appended to the order for every verification
// attempt, mirroring what the buyer sees on the order-details page.
type OrderNote struct {
	ID                string // ULID, sortable by creation time
	OrderID           string
	Note              string
	DisplayToCustomer bool
	CreatedAt         time.Time
}
