package adapter

import "context"

// PaymentRequest carries everything the gateway needs to open a payment.
// Amount is already converted to the gateway's expected unit.
type PaymentRequest struct {
	Amount      int64
	Description string
	Email       string
	Phone       string
	CallbackURL string
}

// VerificationRequest closes the handshake for a redirected buyer. Amount
// must be recomputed with the exact conversion used at request time or the
// gateway rejects the verification.
type VerificationRequest struct {
	Authority string
	Amount    int64
}

// GatewayTransport is the hex port for the two remote gateway operations.
// REST and SOAP variants implement it; the variant is chosen once at
// construction from settings. Implementations must be safe for concurrent
// use across orders.
type GatewayTransport interface {
	// RequestPayment returns the gateway status code and, on success, the
	// authority token for the redirect. A non-nil error means the call never
	// produced a gateway answer (network, timeout, malformed body).
	RequestPayment(ctx context.Context, req PaymentRequest) (status int, authority string, err error)
	// VerifyPayment returns the gateway status code and, on success, the
	// reference id of the settled transaction.
	VerifyPayment(ctx context.Context, req VerificationRequest) (status int, refID string, err error)
}
