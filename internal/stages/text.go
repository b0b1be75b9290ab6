package stages

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hyperpolymath/docudactyl/internal/wire"
)

// runTextStages performs the single read of in.ExtractedText that language
// detection, readability, keyword extraction and citation extraction all
// share, matching spec.md §4.8's "group (b)" I/O grouping.
func runTextStages(b *wire.Builder, in Input, has func(Bit) bool) {
	text := in.ExtractedText

	if has(Language) {
		label, iso, confidence := detectLanguage(text)
		b.SetFloat64(offLanguageConf, confidence)
		b.SetText(ptrLanguageLabel, label)
		b.SetText(ptrLanguageISO, iso)
	}

	if has(Readability) {
		grade, ease := readability(text)
		b.SetFloat64(offReadabilityGrade, grade)
		b.SetFloat64(offReadabilityEase, ease)
	}

	if has(Keywords) {
		kws := topKeywords(text, 20)
		b.SetUint32(offKeywordCount, uint32(len(kws)))
		b.SetTextList(ptrKeywords, kws)
	}

	if has(Citations) {
		c := extractCitations(text)
		total := len(c.dois) + len(c.isbns) + len(c.urls) + len(c.years) + len(c.numeric)
		b.SetUint32(offCitationCount, uint32(total))
		b.SetTextList(ptrCitationDOIs, c.dois)
		b.SetTextList(ptrCitationISBNs, c.isbns)
		b.SetTextList(ptrCitationURLs, c.urls)
		b.SetTextList(ptrCitationYears, c.years)
		b.SetTextList(ptrCitationNumeric, c.numeric)
	}
}

// scriptRanges maps a handful of Unicode scripts to a coarse ISO-639-1
// guess. This is a histogram over script usage, not a statistical language
// model: good enough to separate "mostly Latin" from "mostly Han" text,
// not to distinguish English from French.
var scriptRanges = []struct {
	name  string
	iso   string
	table *unicode.RangeTable
}{
	{"Latin", "en", unicode.Latin},
	{"Han", "zh", unicode.Han},
	{"Cyrillic", "ru", unicode.Cyrillic},
	{"Arabic", "ar", unicode.Arabic},
	{"Hiragana", "ja", unicode.Hiragana},
	{"Katakana", "ja", unicode.Katakana},
	{"Hangul", "ko", unicode.Hangul},
	{"Greek", "el", unicode.Greek},
	{"Devanagari", "hi", unicode.Devanagari},
	{"Hebrew", "he", unicode.Hebrew},
}

// detectLanguage builds a script histogram over the runes of text and
// returns the best-script label, its ISO code, and confidence as
// max-script-count / total-letters-counted.
func detectLanguage(text string) (label, iso string, confidence float64) {
	counts := make([]int, len(scriptRanges))
	total := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		for i, s := range scriptRanges {
			if unicode.Is(s.table, r) {
				counts[i]++
				break
			}
		}
	}
	if total == 0 {
		return "unknown", "und", 0
	}
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	if counts[best] == 0 {
		return "unknown", "und", 0
	}
	return scriptRanges[best].name, scriptRanges[best].iso, float64(counts[best]) / float64(total)
}

// readability computes a Flesch-Kincaid grade level and reading-ease score
// from naive sentence/word/syllable counts.
func readability(text string) (grade, ease float64) {
	words := splitWords(text)
	if len(words) == 0 {
		return 0, 0
	}
	sentences := countSentences(text)
	if sentences == 0 {
		sentences = 1
	}
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wordsPerSentence := float64(len(words)) / float64(sentences)
	syllablesPerWord := float64(syllables) / float64(len(words))

	grade = 0.39*wordsPerSentence + 11.8*syllablesPerWord - 15.59
	ease = 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
	return grade, ease
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func countSentences(text string) int {
	n := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			n++
		}
	}
	return n
}

// countSyllables approximates syllable count as the number of vowel-group
// runs in the word, with a floor of one syllable per word.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	isVowel := func(r rune) bool {
		switch r {
		case 'a', 'e', 'i', 'o', 'u', 'y':
			return true
		}
		return false
	}
	count := 0
	prevWasVowel := false
	for _, r := range word {
		v := isVowel(r)
		if v && !prevWasVowel {
			count++
		}
		prevWasVowel = v
	}
	if count == 0 {
		count = 1
	}
	return count
}

var stopWords = buildStopWordSet([]string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and", "any", "are", "as",
	"at", "be", "because", "been", "before", "being", "below", "between", "both", "but", "by", "could",
	"did", "do", "does", "doing", "down", "during", "each", "few", "for", "from", "further", "had",
	"has", "have", "having", "he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"i", "if", "in", "into", "is", "it", "its", "itself", "me", "more", "most", "my", "myself", "nor",
	"not", "of", "off", "on", "once", "only", "or", "other", "our", "ours", "ourselves", "out", "over",
	"own", "same", "she", "should", "so", "some", "such", "than", "that", "the", "their", "theirs",
	"them", "themselves", "then", "there", "these", "they", "this", "those", "through", "to", "too",
	"under", "until", "up", "very", "was", "we", "were", "what", "when", "where", "which", "while",
	"who", "whom", "why", "will", "with", "would", "you", "your", "yours", "yourself", "yourselves",
})

// buildStopWordSet is the fixed English stop-word list spec.md §4.8 calls
// a "perfect-hash lookup": a Go map literal is the idiomatic equivalent of
// a perfect hash over a small fixed key set.
func buildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// topKeywords lowercases, strips stop words, frequency-counts, and returns
// the top n keywords by count (ties broken lexicographically for
// determinism).
func topKeywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, w := range splitWords(text) {
		lw := strings.ToLower(w)
		if _, stop := stopWords[lw]; stop {
			continue
		}
		if len(lw) < 2 {
			continue
		}
		counts[lw]++
	}

	type kv struct {
		word  string
		count int
	}
	list := make([]kv, 0, len(counts))
	for w, c := range counts {
		list = append(list, kv{w, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].word < list[j].word
	})

	if len(list) > n {
		list = list[:n]
	}
	out := make([]string, len(list))
	for i, kv := range list {
		out[i] = kv.word
	}
	return out
}
