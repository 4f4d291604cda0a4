package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// Payment handshake errors
	ErrMerchantNotConfigured = errors.New("merchant id is not configured")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrGatewayRejected       = errors.New("payment gateway rejected the request")
	ErrInvalidCallbackToken  = errors.New("callback token does not resolve to an order")
	ErrAlreadyPaid           = errors.New("order already marked as paid")
	ErrLockContended         = errors.New("resource lock is held by another request")

	// Storage errors
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid query execution context")
)
