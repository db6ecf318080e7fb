// Package ai defines the LLM link-confirmation capability consumed by the
// linking resolver. A nil Confirmer is a valid configuration: the resolver
// then behaves conservatively and never merges on ambiguity.
package ai

import "context"

// TimelineEvent is one dated email or status event on a candidate application.
type TimelineEvent struct {
	Date    string
	Status  string
	Subject string
}

// Timeline is the compact context handed to the confirmation prompt. It
// enriches the LLM's view of a candidate but never changes rule outcomes.
type Timeline struct {
	NewEmailDate       string
	AppCreatedAt       string
	AppLastEmailDate   string
	DaysSinceLastEmail int // -1 when unknown
	RecentEvents       []TimelineEvent
}

// EmptyTimeline returns a timeline with no comparable dates.
func EmptyTimeline() Timeline {
	return Timeline{DaysSinceLastEmail: -1}
}

// ConfirmRequest carries everything the model needs to judge whether a new
// email belongs to an existing application.
type ConfirmRequest struct {
	EmailSubject         string
	EmailSender          string
	EmailBody            string
	CandidateCompany     string
	CandidateTitle       string
	CandidateStatus      string
	CandidateLastSubject string
	Timeline             Timeline
}

// ConfirmResult is the model's verdict.
type ConfirmResult struct {
	Same   bool
	Reason string
	Raw    string
}

// Confirmer answers whether a new email and an existing application refer to
// the same real-world job application.
type Confirmer interface {
	ConfirmSameApplication(ctx context.Context, req *ConfirmRequest) (*ConfirmResult, error)
}
