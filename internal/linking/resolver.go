// Package linking decides which tracked job application an incoming email
// belongs to. Tiers run in priority order: conversation-thread continuity,
// then deterministic company/title/requisition rules with LLM confirmation,
// then a fuzzy rescue pass. The resolver is read-only over its inputs; the
// caller applies the decision.
package linking

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jackychen-2/job-application-monitor/internal/ai"
	"github.com/jackychen-2/job-application-monitor/internal/status"
)

// Method tags the tier that produced a link decision.
type Method string

const (
	MethodThread       Method = "thread"
	MethodCompany      Method = "company"
	MethodCompanyReqID Method = "company_req_id"
	MethodCompanyFuzzy Method = "company_fuzzy"
	MethodManual       Method = "manual"
	MethodNew          Method = "new"
)

const (
	threadLinkConfidence  = 0.95
	reqIDLinkConfidence   = 0.98
	companyLinkConfidence = 0.80
	fuzzyLinkConfidence   = 0.75

	fuzzyCompanyThreshold = 0.75
	fuzzyMaxCandidates    = 3
	// Short normalized keys collide above the fuzzy threshold by pure
	// coincidence; rescue refuses to run on them.
	fuzzyMinKeyRunes = 4
)

// Candidate is a read-only projection of an existing application. The same
// decision logic runs against live persisted rows and against the in-memory
// registry used for offline replay.
type Candidate struct {
	ID                int64
	Company           string
	NormalizedCompany string
	JobTitle          string
	ReqID             string
	Status            status.Status
	LastEmailSubject  string
}

func (c Candidate) normalizedKey() string {
	if c.NormalizedCompany != "" {
		return c.NormalizedCompany
	}
	return NormalizeCompany(c.Company)
}

// LinkResult is the outcome of a resolution attempt. ApplicationID is zero
// when no existing application matched.
type LinkResult struct {
	ApplicationID int64
	Confidence    float64
	Method        Method
	NeedsReview   bool
}

// Linked reports whether the email was matched to an existing application.
func (r LinkResult) Linked() bool { return r.ApplicationID != 0 }

func newApplication() LinkResult { return LinkResult{Method: MethodNew} }

// EmailContext carries the raw email fields handed to LLM confirmation.
type EmailContext struct {
	Subject string
	Sender  string
	Body    string
	Date    *time.Time
}

// TimelineProvider supplies per-candidate timeline context for the
// confirmation prompt. It never alters deterministic rule outcomes.
type TimelineProvider func(Candidate) ai.Timeline

// ThreadLookup resolves a conversation-thread identifier to the application
// the most recent job-related email in that thread linked to.
type ThreadLookup interface {
	ApplicationIDForThread(threadID string) (int64, bool, error)
}

// CompanyRequest is the input to ResolveByCompany.
type CompanyRequest struct {
	Company         string
	Candidates      []Candidate
	ExtractedStatus status.Status
	JobTitle        string
	ReqID           string
	Email           EmailContext
	Timeline        TimelineProvider
}

// Resolver runs the company link tier. A nil confirmer is a fully supported
// configuration in which the resolver never merges on ambiguity.
type Resolver struct {
	confirmer      ai.Confirmer
	confirmTimeout time.Duration
	logger         *zap.Logger
}

func NewResolver(confirmer ai.Confirmer, confirmTimeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		confirmer:      confirmer,
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}
}

// ResolveByThread reuses the application a previous email in the same
// conversation thread resolved to. Checked before any content heuristic:
// thread continuity is a stronger signal than anything extracted from text.
func (r *Resolver) ResolveByThread(lookup ThreadLookup, threadID string) (LinkResult, error) {
	if threadID == "" || lookup == nil {
		return newApplication(), nil
	}

	appID, found, err := lookup.ApplicationIDForThread(threadID)
	if err != nil {
		return newApplication(), err
	}
	if !found {
		r.logger.Debug("thread link miss", zap.String("thread_id", threadID))
		return newApplication(), nil
	}

	r.logger.Info("linked by thread",
		zap.String("thread_id", threadID),
		zap.Int64("application_id", appID),
	)
	return LinkResult{
		ApplicationID: appID,
		Confidence:    threadLinkConfidence,
		Method:        MethodThread,
	}, nil
}

// ResolveByCompany is the company link tier decision core.
//
// Order of operations: exact normalized-company filter, requisition-id rule,
// title narrowing, re-application rule, then LLM confirmation over whatever
// survived. When the rules empty the candidate set a fuzzy rescue pass
// searches all candidates by company-name similarity. Without a confirmer
// the resolver returns "new" rather than guessing.
func (r *Resolver) ResolveByCompany(ctx context.Context, req *CompanyRequest) LinkResult {
	normalized := NormalizeCompany(req.Company)
	if normalized == "" {
		r.logger.Debug("company link skipped, no usable company name")
		return newApplication()
	}

	var sameCompany []Candidate
	for _, c := range req.Candidates {
		if c.normalizedKey() == normalized {
			sameCompany = append(sameCompany, c)
		}
	}
	if len(sameCompany) == 0 {
		r.logger.Debug("company link no match",
			zap.String("company", req.Company),
			zap.String("normalized_company", normalized),
		)
		return newApplication()
	}

	filtered := sameCompany

	// Rule 0: requisition id. A direct link needs BOTH an exact req-id match
	// and a strictly equal title; a matching req id with a missing or
	// different title narrows the set and defers to LLM confirmation, since
	// requisition codes get reused across roles.
	incomingReq := NormalizeReqID(req.ReqID)
	if incomingReq != "" {
		var exactReq []Candidate
		for _, c := range filtered {
			if NormalizeReqID(c.ReqID) == incomingReq {
				exactReq = append(exactReq, c)
			}
		}
		switch {
		case len(exactReq) > 0 && req.JobTitle != "":
			for _, c := range exactReq {
				if TitlesEqualStrict(req.JobTitle, c.JobTitle) {
					r.logger.Info("linked by requisition id with strict title match",
						zap.String("company", req.Company),
						zap.String("req_id", incomingReq),
						zap.Int64("application_id", c.ID),
					)
					return LinkResult{
						ApplicationID: c.ID,
						Confidence:    reqIDLinkConfidence,
						Method:        MethodCompanyReqID,
					}
				}
			}
			r.logger.Info("req id matched but title differs, deferring to llm",
				zap.String("company", req.Company),
				zap.String("req_id", incomingReq),
				zap.Int("candidates", len(exactReq)),
			)
			filtered = exactReq
		case len(exactReq) > 0:
			r.logger.Info("req id matched but title missing, deferring to llm",
				zap.String("company", req.Company),
				zap.String("req_id", incomingReq),
				zap.Int("candidates", len(exactReq)),
			)
			filtered = exactReq
		default:
			// No exact req-id match: fall back to legacy rows that carry no
			// req id at all, tightened by title similarity when possible.
			var legacyNoReq []Candidate
			for _, c := range filtered {
				if NormalizeReqID(c.ReqID) == "" {
					legacyNoReq = append(legacyNoReq, c)
				}
			}
			filtered = legacyNoReq
			if req.JobTitle != "" {
				if matched := filterSimilarTitles(legacyNoReq, req.JobTitle); len(matched) > 0 {
					filtered = matched
				}
			}
		}
	} else if req.JobTitle != "" {
		// No incoming req id: prioritize same-title candidates. Narrowing
		// only tightens; an empty match leaves the set untouched.
		if matched := filterSimilarTitles(filtered, req.JobTitle); len(matched) > 0 {
			filtered = matched
		}
	}

	// Rule 1: re-application. A fresh "applied" against a progressed
	// candidate starts a new application cycle, never a regression.
	if req.ExtractedStatus == status.Applied && len(filtered) > 0 {
		var remaining []Candidate
		for _, c := range filtered {
			if !c.Status.Progressed() {
				remaining = append(remaining, c)
			}
		}
		if dropped := len(filtered) - len(remaining); dropped > 0 {
			r.logger.Info("re-application filter dropped progressed candidates",
				zap.String("company", req.Company),
				zap.Int("dropped", dropped),
				zap.Int("remaining", len(remaining)),
			)
		}
		filtered = remaining
	}

	if len(filtered) == 0 {
		r.logger.Info("all candidates filtered out",
			zap.String("company", req.Company),
			zap.Int("same_company_candidates", len(sameCompany)),
			zap.String("extracted_status", req.ExtractedStatus.String()),
		)
		return r.fuzzyRescue(ctx, req, normalized)
	}

	if r.confirmer == nil {
		r.logger.Info("no llm confirmer configured, conservative new",
			zap.String("company", req.Company),
			zap.Int("candidates", len(filtered)),
		)
		return newApplication()
	}

	for _, c := range filtered {
		same, ok := r.confirm(ctx, req, c)
		if !ok {
			continue
		}
		if same {
			r.logger.Info("linked by company, llm confirmed",
				zap.String("company", req.Company),
				zap.Int64("application_id", c.ID),
			)
			return LinkResult{
				ApplicationID: c.ID,
				Confidence:    companyLinkConfidence,
				Method:        MethodCompany,
			}
		}
		r.logger.Info("llm rejected candidate",
			zap.String("company", req.Company),
			zap.Int64("application_id", c.ID),
		)
	}

	r.logger.Info("llm rejected all candidates",
		zap.String("company", req.Company),
		zap.Int("candidates", len(filtered)),
	)
	return newApplication()
}

// fuzzyRescue broadens the search to every candidate whose normalized company
// name is similar to the incoming key, exact matches included: they may have
// been dropped by title or status rules and still deserve an LLM check.
func (r *Resolver) fuzzyRescue(ctx context.Context, req *CompanyRequest, normalized string) LinkResult {
	if r.confirmer == nil {
		return newApplication()
	}
	if len([]rune(normalized)) < fuzzyMinKeyRunes {
		r.logger.Debug("fuzzy rescue skipped, normalized key too short",
			zap.String("normalized_company", normalized),
		)
		return newApplication()
	}

	fuzzy := fuzzyCandidates(req.Candidates, normalized)
	if len(fuzzy) == 0 {
		return newApplication()
	}

	// Title co-gate: a name-similarity hit with a clearly different role is
	// a coincidence, not a match. Missing titles never block.
	var gated []Candidate
	for _, c := range fuzzy {
		if TitlesSimilar(req.JobTitle, c.JobTitle) {
			gated = append(gated, c)
		}
	}
	if len(gated) == 0 {
		return newApplication()
	}

	r.logger.Info("fuzzy rescue attempt",
		zap.String("company", req.Company),
		zap.String("normalized_company", normalized),
		zap.Int("candidates", len(gated)),
	)

	if len(gated) > fuzzyMaxCandidates {
		gated = gated[:fuzzyMaxCandidates]
	}
	for _, c := range gated {
		same, ok := r.confirm(ctx, req, c)
		if !ok {
			continue
		}
		if same {
			r.logger.Info("linked by fuzzy rescue, llm confirmed",
				zap.String("company", req.Company),
				zap.String("matched_company", c.Company),
				zap.Int64("application_id", c.ID),
			)
			return LinkResult{
				ApplicationID: c.ID,
				Confidence:    fuzzyLinkConfidence,
				Method:        MethodCompanyFuzzy,
				NeedsReview:   true,
			}
		}
		r.logger.Info("fuzzy rescue rejected by llm",
			zap.String("company", req.Company),
			zap.String("matched_company", c.Company),
			zap.Int64("application_id", c.ID),
		)
	}

	return newApplication()
}

// confirm asks the LLM whether the email and candidate refer to the same
// application. The second return value is false when the call failed and the
// candidate should simply be skipped.
func (r *Resolver) confirm(ctx context.Context, req *CompanyRequest, c Candidate) (bool, bool) {
	timeline := ai.EmptyTimeline()
	if req.Timeline != nil {
		timeline = req.Timeline(c)
	}

	result, err := ai.ConfirmWithTimeout(ctx, r.confirmer, &ai.ConfirmRequest{
		EmailSubject:         req.Email.Subject,
		EmailSender:          req.Email.Sender,
		EmailBody:            req.Email.Body,
		CandidateCompany:     c.Company,
		CandidateTitle:       c.JobTitle,
		CandidateStatus:      c.Status.String(),
		CandidateLastSubject: c.LastEmailSubject,
		Timeline:             timeline,
	}, r.confirmTimeout)
	if err != nil {
		r.logger.Warn("llm confirmation failed, skipping candidate",
			zap.String("company", req.Company),
			zap.Int64("application_id", c.ID),
			zap.Error(err),
		)
		return false, false
	}
	return result.Same, true
}

func filterSimilarTitles(candidates []Candidate, title string) []Candidate {
	var matched []Candidate
	for _, c := range candidates {
		if TitlesSimilar(title, c.JobTitle) {
			matched = append(matched, c)
		}
	}
	return matched
}

// fuzzyCandidates scores every candidate's normalized company name against
// the incoming key and returns those at or above the threshold, best first.
// Ties break toward the newer (higher id) application.
func fuzzyCandidates(candidates []Candidate, normalized string) []Candidate {
	type scored struct {
		sim float64
		c   Candidate
	}
	var hits []scored
	for _, c := range candidates {
		key := c.normalizedKey()
		if key == "" {
			continue
		}
		sim := matchRatio(normalized, key)
		if sim >= fuzzyCompanyThreshold {
			hits = append(hits, scored{sim: sim, c: c})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		return hits[i].c.ID > hits[j].c.ID
	})

	result := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		result = append(result, h.c)
	}
	return result
}
