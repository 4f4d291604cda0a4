package model

// VerificationOutcome is the immutable result of one callback round.
// Succeeded=false with an empty RefID also covers the cancelled/abandoned
// case, where no verification call was made at all.
type VerificationOutcome struct {
	Succeeded bool
	Message   string
	RefID     string
}
