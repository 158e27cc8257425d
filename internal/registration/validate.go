package registration

import (
	"regexp"
	"strings"
)

// Consent is a parsed yes/no answer.
type Consent int

const (
	ConsentNo Consent = iota + 1
	ConsentYes
)

const (
	tokenYes = "ya"
	tokenNo  = "tidak"
)

// ParseConsent accepts "ya" or "tidak" in any case, ignoring surrounding whitespace.
func ParseConsent(text string) (Consent, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case tokenYes:
		return ConsentYes, true
	case tokenNo:
		return ConsentNo, true
	}
	return 0, false
}

// Matches local@domain.tld at the start of the input; anything after the tld is accepted.
var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+`)

// ParseEmail trims text and reports whether it looks like an email address.
func ParseEmail(text string) (string, bool) {
	email := strings.TrimSpace(text)
	if !emailPattern.MatchString(email) {
		return "", false
	}
	return email, true
}

// Outcome records how the phone step concluded.
type Outcome string

const (
	OutcomeDeclined    Outcome = "declined"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeAccepted    Outcome = "accepted"
)

// PhoneDecision is the result of the phone consent step.
type PhoneDecision struct {
	Outcome Outcome
	// Phone is set only for OutcomeAccepted.
	Phone string
}

// DecidePhone maps a consent answer and the phone reported by the platform to an outcome.
// An empty phone or the placeholder "0" counts as unavailable.
func DecidePhone(consent Consent, phone string) PhoneDecision {
	if consent != ConsentYes {
		return PhoneDecision{Outcome: OutcomeDeclined}
	}
	phone = strings.TrimSpace(phone)
	if phone == "" || phone == "0" {
		return PhoneDecision{Outcome: OutcomeUnavailable}
	}
	return PhoneDecision{Outcome: OutcomeAccepted, Phone: phone}
}
