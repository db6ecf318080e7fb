package linking

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Legal entity suffixes are stripped first, at most one. Comma variants come
// before bare variants so ", inc." wins over " inc.".
var legalSuffixes = []string{
	", inc.", " inc.", ", inc", " inc",
	", llc", " llc",
	", corp.", " corp.", ", corp", " corp",
	", ltd.", " ltd.", ", ltd", " ltd",
	", gmbh", " gmbh",
	" limited", ", limited",
	" co.", ", co.",
	" company", ", company",
}

// Generic descriptors commonly appended to brand names in email subjects and
// sender headers. " services" is intentionally absent: it appears in branded
// product names ("Amazon Web Services") where stripping produces a wrong key.
var typeSuffixes = []string{
	" communications", " communication",
	" technologies", " technology",
	" solutions", " solution",
	" systems", " system",
	" group",
	" labs", " lab",
	" global",
	" international",
	" enterprises", " enterprise",
	" holdings", " holding",
}

var artifactPrefixes = []string{"your "}

// NormalizeCompany canonicalizes a free-text company name into the grouping
// key used for exact candidate matching. "Zoom Communications", "Your Zoom"
// and "Zoom" all collapse to "zoom". Returns "" when nothing usable remains.
func NormalizeCompany(name string) string {
	name = strings.ToLower(strings.TrimSpace(whitespaceRe.ReplaceAllString(name, " ")))
	if name == "" {
		return ""
	}

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSpace(name[:len(name)-len(suffix)])
			break
		}
	}

	// Only strip a descriptor when at least 3 characters remain, so short
	// names like "IBM Systems" are not reduced past recognition.
	for _, suffix := range typeSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix)+2 {
			name = strings.TrimSpace(name[:len(name)-len(suffix)])
			break
		}
	}

	for _, prefix := range artifactPrefixes {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}

	return strings.TrimSpace(name)
}
