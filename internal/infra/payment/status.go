package payment

// Gateway status codes we act on. StatusOK is the success code of both
// WebGate operations; StatusAlreadyVerified is returned when a verification
// is replayed for a transaction that was already settled.
const (
	StatusOK              = 100
	StatusAlreadyVerified = 101
)

var statusMessages = map[int]string{
	-1:  "Information submitted is incomplete.",
	-2:  "Merchant ID or acceptor IP is not correct.",
	-3:  "Amount should be above 100 Toman.",
	-4:  "Approved level of acceptor is lower than the silver level.",
	-11: "Request not found.",
	-12: "Editing the request is not possible.",
	-21: "No financial operation found for this transaction.",
	-22: "Transaction is unsuccessful.",
	-33: "Transaction amount does not match the amount paid.",
	-34: "Transaction split limit has been exceeded.",
	-40: "Access to the requested method is not allowed.",
	-41: "Additional data related to the submitted information is invalid.",
	-42: "The lifespan of the payment id must be between 30 minutes and 45 days.",
	-54: "Request has been archived.",
	100: "Operation was successful.",
	101: "Operation was successful; this transaction had already been verified.",
}

// MapStatusCode translates a gateway status code into a success flag and a
// human-readable message. It is total over all ints: undocumented codes fall
// back to a generic failure rather than panicking or returning empty text.
// Code 101 counts as success so that a replayed verification of a settled
// transaction does not read as a failure.
func MapStatusCode(code int) (ok bool, message string) {
	msg, known := statusMessages[code]
	if !known {
		return false, "Unknown gateway error."
	}
	return code == StatusOK || code == StatusAlreadyVerified, msg
}
