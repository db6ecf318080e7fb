package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jackychen-2/job-application-monitor/internal/ai"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestConfirmSameApplication(t *testing.T) {
	stub := &stubGenerator{response: `{"same": true, "reason": "Same requisition and sender"}`}
	confirmer := NewConfirmer(stub, zap.NewNop(), 0)

	result, err := confirmer.ConfirmSameApplication(context.Background(), &ai.ConfirmRequest{
		EmailSubject:     "Interview invitation - Stripe",
		EmailSender:      "recruiting@stripe.com",
		EmailBody:        "We would like to schedule an interview.",
		CandidateCompany: "Stripe",
		CandidateTitle:   "Data Engineer",
		CandidateStatus:  "Applied",
		Timeline:         ai.EmptyTimeline(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Same {
		t.Fatalf("expected same to be true")
	}
	if result.Reason == "" {
		t.Fatalf("expected reason to be populated")
	}
	if result.Raw == "" {
		t.Fatalf("expected the raw response to be preserved")
	}

	if stub.lastPrompt == "" {
		t.Fatalf("expected prompt to be sent")
	}
	if !strings.Contains(stub.lastPrompt, "Stripe") {
		t.Fatalf("expected candidate company in the prompt")
	}
	if !strings.Contains(stub.lastPrompt, "Interview invitation - Stripe") {
		t.Fatalf("expected email subject in the prompt")
	}
	if strings.Contains(stub.lastPrompt, "{{") {
		t.Fatalf("expected all placeholders to be replaced, got: %s", stub.lastPrompt)
	}
}

func TestConfirmSameApplicationFencedResponse(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"same\": false, \"reason\": \"different role\"}\n```"}
	confirmer := NewConfirmer(stub, zap.NewNop(), 0)

	result, err := confirmer.ConfirmSameApplication(context.Background(), &ai.ConfirmRequest{Timeline: ai.EmptyTimeline()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Same {
		t.Fatalf("expected same to be false")
	}
	if result.Reason != "different role" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestConfirmSameApplicationCoercion(t *testing.T) {
	stub := &stubGenerator{response: `{"same": "yes", "reason": 42}`}
	confirmer := NewConfirmer(stub, zap.NewNop(), 0)

	result, err := confirmer.ConfirmSameApplication(context.Background(), &ai.ConfirmRequest{Timeline: ai.EmptyTimeline()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Same {
		t.Fatalf("expected string yes to coerce to true")
	}
	if result.Reason != "42" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestConfirmSameApplicationErrors(t *testing.T) {
	stub := &stubGenerator{err: errors.New("quota exceeded")}
	confirmer := NewConfirmer(stub, zap.NewNop(), 0)

	if _, err := confirmer.ConfirmSameApplication(context.Background(), &ai.ConfirmRequest{}); err == nil {
		t.Fatalf("expected generator errors to propagate")
	}

	stub = &stubGenerator{response: "not json at all"}
	confirmer = NewConfirmer(stub, zap.NewNop(), 0)
	if _, err := confirmer.ConfirmSameApplication(context.Background(), &ai.ConfirmRequest{}); err == nil {
		t.Fatalf("expected a parse error for a non-json response")
	}

	if _, err := confirmer.ConfirmSameApplication(context.Background(), nil); err == nil {
		t.Fatalf("expected an error for a nil request")
	}
}

func TestBuildPromptTruncatesBody(t *testing.T) {
	stub := &stubGenerator{response: `{"same": false}`}
	confirmer := NewConfirmer(stub, zap.NewNop(), 0)

	longBody := strings.Repeat("a", 5000)
	_, err := confirmer.ConfirmSameApplication(context.Background(), &ai.ConfirmRequest{
		EmailBody: longBody,
		Timeline:  ai.EmptyTimeline(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(stub.lastPrompt, longBody) {
		t.Fatalf("expected the body to be truncated before prompting")
	}
}
