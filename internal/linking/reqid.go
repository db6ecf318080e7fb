package linking

import (
	"regexp"
	"strings"
)

var (
	reqIDShapeRe = regexp.MustCompile(`(?i)^(?:r-?\d{5,}|jr\d{5,}|\d{4}-\d{3,6}|\d{5,8}|[a-z]{1,4}-?\d{4,8})$`)
	// Trailing requisition token in a title, e.g. "Data Engineer (R-12345)"
	// or "Data Engineer - 2024-1234".
	titleTrailingReqRe = regexp.MustCompile(`(?i)[\s\-–—(\[#]*\b(r-?\d{5,}|jr\d{5,}|\d{4}-\d{3,6}|\d{5,8})\b[)\]]?\s*$`)
)

// NormalizeReqID canonicalizes a requisition identifier for exact matching.
// Whitespace and surrounding punctuation are dropped and the code is
// upper-cased; input that does not look like a structured code yields "".
func NormalizeReqID(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.Trim(id, "#()[]{}.,:; ")
	id = whitespaceRe.ReplaceAllString(id, "")
	if id == "" {
		return ""
	}
	if !reqIDShapeRe.MatchString(id) {
		return ""
	}
	return strings.ToUpper(id)
}

// SplitTitleReqID peels a trailing requisition code off a job title.
// Returns the base title and the normalized code ("" when none is embedded).
func SplitTitleReqID(title string) (string, string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ""
	}

	match := titleTrailingReqRe.FindStringSubmatch(title)
	if match == nil {
		return title, ""
	}

	reqID := NormalizeReqID(match[1])
	if reqID == "" {
		return title, ""
	}

	base := strings.TrimSpace(titleTrailingReqRe.ReplaceAllString(title, ""))
	if base == "" {
		// The whole title was a requisition code; keep it as a title of
		// last resort rather than returning nothing.
		return title, reqID
	}
	return base, reqID
}
