// Package eval replays a labeled email dataset through the extraction and
// linking logic against an in-memory registry, without touching a database.
// Used to measure linking accuracy before changing rules or prompts.
package eval

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jackychen-2/job-application-monitor/internal/extract"
	"github.com/jackychen-2/job-application-monitor/internal/linking"
)

// Case is one labeled email. Key names the application the email truly
// belongs to; emails sharing a Key belong to the same application. The first
// email of a key is expected to create, later ones to link.
type Case struct {
	Subject string `yaml:"subject"`
	Sender  string `yaml:"sender"`
	Body    string `yaml:"body"`
	Date    string `yaml:"date"`
	Key     string `yaml:"key"`
}

type dataset struct {
	Cases []Case `yaml:"cases"`
}

// LoadCases reads a YAML dataset file.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %q: %w", path, err)
	}
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset %q: %w", path, err)
	}
	for i, c := range ds.Cases {
		if strings.TrimSpace(c.Key) == "" {
			return nil, fmt.Errorf("dataset %q: case %d has no key", path, i)
		}
	}
	return ds.Cases, nil
}

// Mismatch is one replay decision that disagreed with the label.
type Mismatch struct {
	Index    int
	Subject  string
	Expected string
	Actual   string
	Method   linking.Method
}

// Report aggregates a replay run.
type Report struct {
	Total      int
	Correct    int
	Mismatches []Mismatch
}

func (r *Report) Accuracy() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(r.Correct) / float64(r.Total)
}

// registry is the in-memory stand-in for the application table. It holds the
// same Candidate projections the resolver sees in production.
type registry struct {
	candidates []linking.Candidate
	keys       map[int64]string
	nextID     int64
}

func newRegistry() *registry {
	return &registry{keys: map[int64]string{}}
}

func (r *registry) register(key string, fields extract.Fields, subject string) int64 {
	r.nextID++
	r.candidates = append(r.candidates, linking.Candidate{
		ID:                r.nextID,
		Company:           fields.Company,
		NormalizedCompany: linking.NormalizeCompany(fields.Company),
		JobTitle:          fields.JobTitle,
		ReqID:             fields.ReqID,
		Status:            fields.Status,
		LastEmailSubject:  subject,
	})
	r.keys[r.nextID] = key
	return r.nextID
}

func (r *registry) touch(id int64, fields extract.Fields, subject string) {
	for i := range r.candidates {
		if r.candidates[i].ID != id {
			continue
		}
		r.candidates[i].Status = fields.Status
		r.candidates[i].LastEmailSubject = subject
		if r.candidates[i].JobTitle == "" {
			r.candidates[i].JobTitle = fields.JobTitle
		}
		if r.candidates[i].ReqID == "" {
			r.candidates[i].ReqID = fields.ReqID
		}
		return
	}
}

// Harness runs the replay. The resolver may carry a live confirmer or none;
// with none the replay measures the deterministic rules alone.
type Harness struct {
	resolver *linking.Resolver
	logger   *zap.Logger
}

func NewHarness(resolver *linking.Resolver, logger *zap.Logger) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{resolver: resolver, logger: logger}
}

// Run replays the cases in order. A decision is correct when it links to the
// application created by an earlier case with the same key, or creates a new
// application for a first-seen key.
func (h *Harness) Run(ctx context.Context, cases []Case) (*Report, error) {
	report := &Report{}
	reg := newRegistry()
	seen := map[string]int64{}

	for i, c := range cases {
		date, err := parseCaseDate(c.Date)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}

		fields := extract.All(c.Subject, c.Sender, c.Body)
		if !fields.JobRelated {
			h.logger.Debug("case classified as not job-related, treated as new",
				zap.Int("case", i),
				zap.String("subject", c.Subject),
			)
		}

		result := h.resolver.ResolveByCompany(ctx, &linking.CompanyRequest{
			Company:         fields.Company,
			Candidates:      reg.candidates,
			ExtractedStatus: fields.Status,
			JobTitle:        fields.JobTitle,
			ReqID:           fields.ReqID,
			Email: linking.EmailContext{
				Subject: c.Subject,
				Sender:  c.Sender,
				Body:    c.Body,
				Date:    date,
			},
		})

		report.Total++
		expectedID, known := seen[c.Key]
		var actualKey string
		if result.Linked() {
			actualKey = reg.keys[result.ApplicationID]
			reg.touch(result.ApplicationID, fields, c.Subject)
		} else {
			id := reg.register(c.Key, fields, c.Subject)
			if !known {
				seen[c.Key] = id
			}
		}

		correct := false
		switch {
		case result.Linked():
			correct = known && result.ApplicationID == expectedID
		default:
			correct = !known
		}

		if correct {
			report.Correct++
			continue
		}
		expected := "new"
		if known {
			expected = c.Key
		}
		actual := "new"
		if result.Linked() {
			actual = actualKey
		}
		report.Mismatches = append(report.Mismatches, Mismatch{
			Index:    i,
			Subject:  c.Subject,
			Expected: expected,
			Actual:   actual,
			Method:   result.Method,
		})
	}

	h.logger.Info("replay finished",
		zap.Int("total", report.Total),
		zap.Int("correct", report.Correct),
		zap.Float64("accuracy", report.Accuracy()),
	)
	return report, nil
}

var caseDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseCaseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range caseDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", raw)
}
