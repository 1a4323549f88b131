package match

import (
	"math"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// ratio is the normalized Levenshtein similarity of a and b in [0, 1].
func ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// partialRatio is the best ratio of the shorter string against every
// equal-length window of the longer one, in [0, 1].
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 1
		}
		return 0
	}

	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		if r := ratio(s, string(long[i:i+len(short)])); r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

// normalize lower-cases s and turns every non alphanumeric rune into a
// single space.
func normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// phraseScore is 1 for a whole-word occurrence of phrase in text, otherwise
// the best ratio of phrase against every run of the same number of whole
// words in text. Both arguments must already be normalized.
func phraseScore(phrase, text string) float64 {
	if phrase == "" || text == "" {
		return 0
	}
	if strings.Contains(" "+text+" ", " "+phrase+" ") {
		return 1
	}

	words := strings.Fields(text)
	n := len(strings.Fields(phrase))
	if len(words) <= n {
		return ratio(phrase, text)
	}
	best := 0.0
	for i := 0; i+n <= len(words); i++ {
		if r := ratio(phrase, strings.Join(words[i:i+n], " ")); r > best {
			best = r
		}
	}
	return best
}

// Words that carry no identity when comparing party names.
var nameStopWords = map[string]bool{
	"plaintiff": true, "plaintiffs": true, "defendant": true, "defendants": true,
	"the": true, "and": true, "et": true, "al": true, "all": true, "other": true,
	"occupants": true, "inc": true, "llc": true, "ltd": true, "co": true,
}

func nameWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(normalize(s)) {
		if len(w) < 2 || nameStopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// wordwiseScore sums the similarity of every word pair scoring above
// partyWordThreshold, on a 0..100 scale per pair. Word order and "Last, First"
// versus "First Last" spelling do not matter.
func wordwiseScore(a, b string) int {
	total := 0
	for _, w1 := range nameWords(a) {
		for _, w2 := range nameWords(b) {
			r := int(math.Round(partialRatio(w1, w2) * 100))
			if r > partyWordThreshold {
				total += r
			}
		}
	}
	return total
}
