package stages

import "regexp"

var (
	doiRe    = regexp.MustCompile(`\b10\.\d{4,9}/[^\s"'<>]+`)
	isbnRe   = regexp.MustCompile(`\bISBN(?:-1[03])?:?\s*((?:97[89][- ]?)?(?:\d[- ]?){9}[\dXx])`)
	urlRe    = regexp.MustCompile(`\bhttps?://[^\s"'<>]+`)
	yearRe   = regexp.MustCompile(`\((?:19|20)\d{2}\)`)
	numericRe = regexp.MustCompile(`\[\d+\]`)
)

type citations struct {
	dois    []string
	isbns   []string
	urls    []string
	years   []string
	numeric []string
}

// extractCitations performs the regex-style scans spec.md §4.8's citation
// extraction stage names: DOI, ISBN, URL, parenthesised year, and
// bracketed numeric reference.
func extractCitations(text string) citations {
	return citations{
		dois:    dedupe(doiRe.FindAllString(text, -1)),
		isbns:   dedupe(matchGroups(isbnRe, text)),
		urls:    dedupe(urlRe.FindAllString(text, -1)),
		years:   dedupe(yearRe.FindAllString(text, -1)),
		numeric: dedupe(numericRe.FindAllString(text, -1)),
	}
}

func matchGroups(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			out = append(out, m[1])
		}
	}
	return out
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
