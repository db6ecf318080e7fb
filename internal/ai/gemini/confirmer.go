package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/jackychen-2/job-application-monitor/internal/ai"
	"github.com/jackychen-2/job-application-monitor/internal/logger"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	maxBodyRunes        = 2000
)

// Confirmer asks Gemini whether a new email belongs to an existing tracked
// application. It implements ai.Confirmer.
type Confirmer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewConfirmer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Confirmer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Confirmer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// ConfirmSameApplication renders the confirmation prompt, sends it to Gemini
// and parses the strict-JSON verdict.
func (c *Confirmer) ConfirmSameApplication(ctx context.Context, req *ai.ConfirmRequest) (*ai.ConfirmResult, error) {
	if req == nil {
		return nil, fmt.Errorf("confirm request is required")
	}

	prompt := buildPrompt(req)

	c.logger.Debug("gemini link confirmation request",
		zap.String("candidate_company", req.CandidateCompany),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini link confirmation response",
		zap.String("candidate_company", req.CandidateCompany),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, c.maxLogLen)),
	)

	result, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	result.Raw = raw
	return result, nil
}

func buildPrompt(req *ai.ConfirmRequest) string {
	body := req.EmailBody
	if utf8.RuneCountInString(body) > maxBodyRunes {
		body = string([]rune(body)[:maxBodyRunes])
	}

	replacements := map[string]string{
		"{{CANDIDATE_COMPANY}}":      orUnknown(req.CandidateCompany),
		"{{CANDIDATE_TITLE}}":        orUnknown(req.CandidateTitle),
		"{{CANDIDATE_STATUS}}":       orUnknown(req.CandidateStatus),
		"{{CANDIDATE_LAST_SUBJECT}}": req.CandidateLastSubject,
		"{{TIMELINE}}":               formatTimeline(req.Timeline),
		"{{EMAIL_SUBJECT}}":          req.EmailSubject,
		"{{EMAIL_SENDER}}":           req.EmailSender,
		"{{EMAIL_DATE}}":             orUnknown(req.Timeline.NewEmailDate),
		"{{EMAIL_BODY}}":             body,
	}

	prompt := promptTemplate
	for placeholder, value := range replacements {
		prompt = strings.ReplaceAll(prompt, placeholder, value)
	}
	return prompt
}

func formatTimeline(t ai.Timeline) string {
	var lines []string
	if t.AppCreatedAt != "" {
		lines = append(lines, fmt.Sprintf("- Application created: %s", t.AppCreatedAt))
	}
	if t.AppLastEmailDate != "" {
		lines = append(lines, fmt.Sprintf("- Last email for this application: %s", t.AppLastEmailDate))
	}
	if t.DaysSinceLastEmail >= 0 {
		lines = append(lines, fmt.Sprintf("- Days between last email and new email: %d", t.DaysSinceLastEmail))
	}
	for _, event := range t.RecentEvents {
		entry := fmt.Sprintf("- %s", event.Date)
		if event.Status != "" {
			entry += fmt.Sprintf(" status: %s", event.Status)
		}
		if event.Subject != "" {
			entry += fmt.Sprintf(" subject: %q", event.Subject)
		}
		lines = append(lines, entry)
	}
	if len(lines) == 0 {
		return "- (no timeline available)"
	}
	return strings.Join(lines, "\n")
}

func parseResponse(raw string) (*ai.ConfirmResult, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	return &ai.ConfirmResult{
		Same:   coerceBool(data["same"]),
		Reason: coerceString(data["reason"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes" || lower == "same"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unknown)"
	}
	return s
}
