package linking

import (
	"regexp"
	"strings"
)

const titleSimilarityThreshold = 0.9

var (
	titleSeparatorsRe = regexp.MustCompile(`[,\-–—/|()\[\]{}]`)
	// Requisition-shaped tokens are removed before comparison so that
	// "Data Engineer R-12345" and "Data Engineer" compare equal.
	titleReqTokenRe = regexp.MustCompile(`(?i)\b(?:r-?\d{5,}|jr\d{5,}|\d{4}-\d{3,6}|\d{5,8})\b`)
)

var titleSynonyms = map[string]string{
	"sr.": "senior", "sr": "senior",
	"jr.": "junior", "jr": "junior",
	"mgr": "manager", "eng": "engineer", "dev": "developer",
	"swe": "software engineer", "sde": "software development engineer",
	"mts": "member of technical staff",
	"i":   "1", "ii": "2", "iii": "3", "iv": "4", "v": "5",
}

func normalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = titleSeparatorsRe.ReplaceAllString(t, " ")
	t = titleReqTokenRe.ReplaceAllString(t, " ")
	t = whitespaceRe.ReplaceAllString(t, " ")
	t = strings.TrimSpace(t)

	words := strings.Fields(t)
	for i, w := range words {
		if folded, ok := titleSynonyms[w]; ok {
			words[i] = folded
		}
	}
	return strings.Join(words, " ")
}

// TitlesSimilar reports whether two job titles describe the same role.
//
// It is deliberately permissive when either title is missing: without both
// sides there is nothing to judge, and blocking a link on absent data would
// split applications that belong together. With both present, titles are
// similar when their normalized forms match or the Jaccard similarity of
// their word sets reaches 0.9.
func TitlesSimilar(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return true
	}

	na, nb := normalizeTitle(a), normalizeTitle(b)
	if na == nb {
		return true
	}

	wordsA := toSet(strings.Fields(na))
	wordsB := toSet(strings.Fields(nb))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return true
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection

	return float64(intersection)/float64(union) >= titleSimilarityThreshold
}

// TitlesEqualStrict requires both titles to be present and their normalized
// forms to match exactly. This is the only comparator allowed to gate a
// direct, no-confirmation link.
func TitlesEqualStrict(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return normalizeTitle(a) == normalizeTitle(b)
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
