// Package status defines the application lifecycle states and the guard that
// decides whether an incoming email is allowed to overwrite the current state.
package status

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a tracked job application.
type Status string

const (
	Applied           Status = "Applied"
	RecruiterReachOut Status = "Recruiter Reach-out"
	OA                Status = "OA"
	Interview         Status = "Interview"
	Offer             Status = "Offer"
	Onboarding        Status = "Onboarding"
	Rejected          Status = "Rejected"
	Unknown           Status = "Unknown"
)

// progressed marks states beyond initial submission. A fresh "applied" signal
// against one of these is a re-application cycle, never a regression.
var progressed = map[Status]struct{}{
	OA:         {},
	Interview:  {},
	Offer:      {},
	Onboarding: {},
	Rejected:   {},
}

// Progressed reports whether the state is beyond initial submission.
func (s Status) Progressed() bool {
	_, ok := progressed[s]
	return ok
}

func (s Status) String() string { return string(s) }

var aliases = map[string]Status{
	"applied":               Applied,
	"application received":  Applied,
	"application submitted": Applied,
	"recruiter reach-out":   RecruiterReachOut,
	"recruiter reach out":   RecruiterReachOut,
	"oa":                    OA,
	"online assessment":     OA,
	"online test":           OA,
	"coding challenge":      OA,
	"assessment":            OA,
	"take-home":             OA,
	"take home":             OA,
	"interview":             Interview,
	"offer":                 Offer,
	"onboarding":            Onboarding,
	"background check":      Onboarding,
	"background screening":  Onboarding,
	"rejected":              Rejected,
	"rejection":             Rejected,
	"unknown":               Unknown,
}

// Parse maps a free-form extracted status string onto a lifecycle state.
// Unrecognized or empty input yields Unknown.
func Parse(raw string) Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "_", " ")
	if s, ok := aliases[key]; ok {
		return s
	}
	return Unknown
}

// Verdict explains a guard decision.
type Verdict struct {
	Allow  bool
	Reason string
}

// Allow decides whether next may overwrite current.
//
// An update dated earlier than the application's recorded last-email date is
// rejected: a late-delivered message must not regress an application that has
// already moved on. When either date is missing there is nothing to compare
// and the update passes. Unknown carries no signal and never overwrites.
func Allow(current Status, lastEmailDate *time.Time, next Status, emailDate *time.Time) Verdict {
	if next == "" || next == Unknown {
		return Verdict{Allow: false, Reason: "no status signal"}
	}
	if next == current {
		return Verdict{Allow: false, Reason: "status unchanged"}
	}
	if lastEmailDate != nil && emailDate != nil && emailDate.Before(*lastEmailDate) {
		return Verdict{Allow: false, Reason: "email predates last recorded email"}
	}
	return Verdict{Allow: true}
}
