package payment

import "testing"

func TestFailureReasonKind(t *testing.T) {
	tests := []struct {
		reason FailureReason
		want   DeclineKind
	}{
		{ReasonInsufficientFunds, DeclineSoft},
		{ReasonGatewayTimeout, DeclineSoft},
		{ReasonUnknown, DeclineSoft},
		{ReasonCardExpired, DeclineHard},
		{ReasonStolenCard, DeclineHard},
		{FailureReason("weird_gateway_code"), DeclineSoft},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			if got := tt.reason.Kind(); got != tt.want {
				t.Errorf("Kind(%s) = %v, want %v", tt.reason, got, tt.want)
			}
		})
	}
}

func TestParseFailureReason(t *testing.T) {
	tests := []struct {
		raw  string
		want FailureReason
	}{
		{"insufficient_funds", ReasonInsufficientFunds},
		{"card_expired", ReasonCardExpired},
		{"stolen_card", ReasonStolenCard},
		{"timeout", ReasonGatewayTimeout},
		{"unknown", ReasonUnknown},
		{"do_not_honor", ReasonUnknown},
		{"", ReasonUnknown},
	}

	for _, tt := range tests {
		if got := ParseFailureReason(tt.raw); got != tt.want {
			t.Errorf("ParseFailureReason(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	terminal := []Status{StatusPaid, StatusRefunded, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	// failed is non-terminal: it triggers retry creation
	if StatusFailed.IsTerminal() {
		t.Error("failed should not be terminal")
	}
	if StatusCreated.IsTerminal() {
		t.Error("created should not be terminal")
	}
}
