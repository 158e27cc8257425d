package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConsent(t *testing.T) {
	tests := []struct {
		in   string
		want Consent
		ok   bool
	}{
		{"ya", ConsentYes, true},
		{"Ya", ConsentYes, true},
		{"  YA \n", ConsentYes, true},
		{"tidak", ConsentNo, true},
		{"TIDAK", ConsentNo, true},
		{"yes", 0, false},
		{"no", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"ya tidak", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseConsent(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"a@b.co", "a@b.co", true},
		{"  alice@example.com  ", "alice@example.com", true},
		{"first.last@sub.domain.id", "first.last@sub.domain.id", true},
		{"a@b.co trailing", "a@b.co trailing", true},
		{"not-an-email", "", false},
		{"@b.co", "", false},
		{"a@.co", "", false},
		{"a@b.", "", false},
		{"a@bco", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseEmail(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestDecidePhone(t *testing.T) {
	assert.Equal(t, PhoneDecision{Outcome: OutcomeDeclined}, DecidePhone(ConsentNo, "+62811"))
	assert.Equal(t, PhoneDecision{Outcome: OutcomeUnavailable}, DecidePhone(ConsentYes, ""))
	assert.Equal(t, PhoneDecision{Outcome: OutcomeUnavailable}, DecidePhone(ConsentYes, "0"))
	assert.Equal(t, PhoneDecision{Outcome: OutcomeUnavailable}, DecidePhone(ConsentYes, "  "))
	assert.Equal(t, PhoneDecision{Outcome: OutcomeAccepted, Phone: "+62811"}, DecidePhone(ConsentYes, " +62811 "))
}
