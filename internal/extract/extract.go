// Package extract derives structured fields (company, job title, requisition
// id, status) from raw email text with keyword and pattern rules. The linking
// resolver is agnostic to where its fields come from; this is the shipped
// rule-based producer.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jackychen-2/job-application-monitor/internal/linking"
	"github.com/jackychen-2/job-application-monitor/internal/status"
)

// Fields is the extractor output consumed by the scan pipeline.
type Fields struct {
	JobRelated bool
	Company    string
	JobTitle   string
	ReqID      string
	Status     status.Status
}

var jobRelatedKeywords = []string{
	"application", "applied", "interview", "offer", "recruiter",
	"position", "candidacy", "your candidacy", "hiring", "talent acquisition",
	"assessment", "coding challenge", "phone screen", "onboarding",
	"background check", "thank you for applying",
}

var junkSubjectMarkers = []string{
	"job alert", "jobs you may be interested in", "new jobs", "more jobs",
	"newsletter", "unsubscribe", "password reset", "verify your email",
}

// JobRelated is the keyword classifier used when no LLM classification is
// available. Digest and account-noise subjects are rejected before the
// keyword match.
func JobRelated(subject, sender string) bool {
	searchable := strings.ToLower(subject + "\n" + sender)
	for _, marker := range junkSubjectMarkers {
		if strings.Contains(searchable, marker) {
			return false
		}
	}
	for _, kw := range jobRelatedKeywords {
		if strings.Contains(searchable, kw) {
			return true
		}
	}
	return false
}

var companyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*([A-Za-z0-9&.'\- ]{2,50})\s*[-:|]`),
	regexp.MustCompile(`(?i)[-:|]\s*([A-Za-z0-9&.'\- ]{2,50})\s*(?:application|job|position|role|careers?)\b`),
	regexp.MustCompile(`(?i)\b(?:at|to)\s+([A-Za-z0-9&.,'\- ]{2,60})(?:\s+(?:has|for|about|on)\b|$)`),
	regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z0-9&.,'\- ]{2,60})(?:\s+(?:has|for|about|on)\b|$)`),
}

var (
	companyTrailerRe  = regexp.MustCompile(`(?i)\b(team|careers?|jobs?)\b$`)
	companyStopwordRe = regexp.MustCompile(`(?i)\b(application|applied|position|role)\b.*$`)
	senderDomainRe    = regexp.MustCompile(`@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`)
	mailSubdomainRe   = regexp.MustCompile(`^(mail|email|notifications|notify|jobs?|careers?)\.`)
)

var genericCompanyNames = map[string]struct{}{
	"thank you": {}, "application received": {}, "application": {}, "job": {},
}

// Company pulls a company name from the subject, falling back to the sender
// domain. Returns "Unknown" when neither yields anything usable.
func Company(subject, sender string) string {
	if company := companyFromSubject(subject); company != "" {
		return company
	}
	if company := companyFromSender(sender); company != "" {
		return company
	}
	return "Unknown"
}

func companyFromSubject(subject string) string {
	for _, pattern := range companyPatterns {
		match := pattern.FindStringSubmatch(subject)
		if match == nil {
			continue
		}
		company := cleanText(match[1])
		company = strings.TrimSpace(companyTrailerRe.ReplaceAllString(company, ""))
		company = strings.TrimSpace(companyStopwordRe.ReplaceAllString(company, ""))
		if _, generic := genericCompanyNames[strings.ToLower(company)]; generic {
			continue
		}
		if company != "" {
			return company
		}
	}
	return ""
}

func companyFromSender(sender string) string {
	match := senderDomainRe.FindStringSubmatch(sender)
	if match == nil {
		return ""
	}
	domain := mailSubdomainRe.ReplaceAllString(strings.ToLower(match[1]), "")
	pieces := strings.Split(domain, ".")
	if len(pieces) < 2 {
		return titleCase(strings.ReplaceAll(domain, "-", " "))
	}
	name := pieces[len(pieces)-2]
	if strings.HasSuffix(domain, ".co.uk") && len(pieces) >= 3 {
		name = pieces[len(pieces)-3]
	}
	return titleCase(strings.ReplaceAll(name, "-", " "))
}

func titleCase(value string) string {
	words := strings.Fields(value)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|\s)(?:position|role|title)\s*[:\-]\s*([^\n\r]{2,100})`),
	regexp.MustCompile(`(?i)\bfor\s+(?:the\s+)?([A-Za-z0-9 /&,+.#()\-]{2,90})\s+(?:position|role)\b`),
	// "application to X" names the company, not the role, so only the
	// "for" form is a title signal.
	regexp.MustCompile(`(?i)\b(?:applied|applying|application)\s+for\s+([A-Za-z0-9 /&,+.#()\-]{2,90})`),
}

var (
	titlePipeTrailerRe = regexp.MustCompile(`\s*\|\s*.*$`)
	titleTrailerRe     = regexp.MustCompile(`(?i)\b(application|submitted|received|confirmation|thank you|thanks)\b.*$`)
	// Broad captures drag surrounding phrase words along; these peel them off.
	titleLeadRe = regexp.MustCompile(`(?i)^(?:(?:applying|apply|applied|application)\s+(?:for|to)\s+)?(?:the\s+|a\s+|an\s+|your\s+)?`)
	titleTailRe = regexp.MustCompile(`(?i)\s+(?:position|role|opening|opportunity)$`)
)

var invalidTitles = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "to": {}, "for": {}, "at": {}, "in": {},
	"on": {}, "of": {}, "and": {}, "or": {}, "your": {}, "our": {},
	"this": {}, "that": {}, "it": {}, "application": {}, "job": {},
	"position": {}, "role": {}, "unknown": {}, "n/a": {}, "none": {},
}

// Title extracts a job title from subject and body. Garbage matches
// (stopwords, fragments under 3 characters) come back empty rather than
// polluting the title comparator.
func Title(subject, body string) string {
	combined := subject + "\n" + body
	for _, pattern := range titlePatterns {
		match := pattern.FindStringSubmatch(combined)
		if match == nil {
			continue
		}
		if title := validateTitle(cleanTitle(match[1])); title != "" {
			return title
		}
	}
	return ""
}

func cleanTitle(raw string) string {
	value := cleanText(raw)
	value = titlePipeTrailerRe.ReplaceAllString(value, "")
	value = titleTrailerRe.ReplaceAllString(value, "")
	value = titleLeadRe.ReplaceAllString(value, "")
	value = titleTailRe.ReplaceAllString(value, "")
	return strings.TrimSpace(value)
}

func validateTitle(title string) string {
	cleaned := strings.TrimSpace(title)
	if len(cleaned) < 3 {
		return ""
	}
	if _, bad := invalidTitles[strings.ToLower(cleaned)]; bad {
		return ""
	}
	return cleaned
}

var reqIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:requisition|req\.?|job)\s*(?:id|number|#)\s*[:\-]?\s*([A-Za-z0-9\-]{4,20})`),
	regexp.MustCompile(`(?i)\b(r-?\d{5,}|jr\d{5,}|\d{4}-\d{3,6})\b`),
}

// ReqID finds a requisition code in the subject or body, preferring one
// embedded in the title.
func ReqID(subject, body, title string) string {
	if _, fromTitle := linking.SplitTitleReqID(title); fromTitle != "" {
		return fromTitle
	}
	combined := subject + "\n" + body
	for _, pattern := range reqIDPatterns {
		match := pattern.FindStringSubmatch(combined)
		if match == nil {
			continue
		}
		if id := linking.NormalizeReqID(match[1]); id != "" {
			return id
		}
	}
	return ""
}

// statusRules are checked in order; the first keyword hit wins, so offers
// beat interview wording and rejections beat the generic "application" match.
var statusRules = []struct {
	keywords []string
	status   status.Status
}{
	{[]string{"offer letter", "congratulations", "pleased to offer"}, status.Offer},
	{[]string{"onboarding", "background check", "background screening", "first day"}, status.Onboarding},
	{[]string{"online assessment", "coding challenge", "take-home", "hackerrank", "codesignal", "codility"}, status.OA},
	{[]string{"interview", "phone screen", "onsite", "schedule a call"}, status.Interview},
	{[]string{"regret", "unfortunately", "not moving forward", "will not be moving", "other candidates"}, status.Rejected},
	{[]string{"reaching out", "came across your profile", "your background caught"}, status.RecruiterReachOut},
	{[]string{"application", "applied", "thank you for applying", "received your"}, status.Applied},
}

// StatusOf infers the lifecycle status signalled by an email.
func StatusOf(subject, body string) status.Status {
	searchable := strings.ToLower(subject + "\n" + body)
	for _, rule := range statusRules {
		for _, kw := range rule.keywords {
			if strings.Contains(searchable, kw) {
				return rule.status
			}
		}
	}
	return status.Applied
}

var cleanRe = regexp.MustCompile(`\s+`)

func cleanText(text string) string {
	value := cleanRe.ReplaceAllString(text, " ")
	value = strings.Trim(value, " \t\r\n-:;,.")
	if len(value) > 90 {
		value = strings.TrimSpace(value[:90])
	}
	return value
}

// All runs the full rule pipeline over one email.
func All(subject, sender, body string) Fields {
	if !JobRelated(subject, sender) {
		return Fields{}
	}

	title := Title(subject, body)
	base, fromTitle := linking.SplitTitleReqID(title)

	reqID := fromTitle
	if reqID == "" {
		reqID = ReqID(subject, body, title)
	}

	return Fields{
		JobRelated: true,
		Company:    Company(subject, sender),
		JobTitle:   base,
		ReqID:      reqID,
		Status:     StatusOf(subject, body),
	}
}
