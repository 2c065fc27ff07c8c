package payment

// FailureReason is a closed, enumerated tag for why a charge failed.
// Free-form gateway strings are normalized through ParseFailureReason so the
// retry policy can be exhaustively checked against this set.
type FailureReason string

const (
	ReasonInsufficientFunds FailureReason = "insufficient_funds"
	ReasonCardExpired       FailureReason = "card_expired"
	ReasonStolenCard        FailureReason = "stolen_card"
	ReasonGatewayTimeout    FailureReason = "timeout"
	ReasonUnknown           FailureReason = "unknown"
)

// DeclineKind classifies a failure reason by its likelihood of succeeding
// on retry without customer action.
type DeclineKind int

const (
	// DeclineSoft failures are transient and likely to succeed on retry.
	DeclineSoft DeclineKind = iota
	// DeclineHard failures will not succeed without customer action.
	// Repeated charges against a dead instrument waste gateway reputation.
	DeclineHard
)

// kinds is the explicit classification table for the closed reason set.
var kinds = map[FailureReason]DeclineKind{
	ReasonInsufficientFunds: DeclineSoft,
	ReasonCardExpired:       DeclineHard,
	ReasonStolenCard:        DeclineHard,
	ReasonGatewayTimeout:    DeclineSoft,
	ReasonUnknown:           DeclineSoft,
}

// Kind returns the decline classification for the reason. Reasons outside
// the closed set are treated as soft (benefit of the doubt).
func (r FailureReason) Kind() DeclineKind {
	if k, ok := kinds[r]; ok {
		return k
	}
	return DeclineSoft
}

// ParseFailureReason normalizes a raw gateway reason string into the closed
// tag set. Unrecognized strings map to ReasonUnknown.
func ParseFailureReason(raw string) FailureReason {
	r := FailureReason(raw)
	if _, ok := kinds[r]; ok {
		return r
	}
	return ReasonUnknown
}
