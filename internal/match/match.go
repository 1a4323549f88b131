// Package match classifies free-text disposition content into a canonical
// judgment category with a bounded confidence score, and attributes the
// judgment to the case's parties.
package match

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JustJay7/eviction-hearing-parser/internal/extract"
	"github.com/JustJay7/eviction-hearing-parser/internal/vocab"
)

const (
	// MinScore is the floor of the score scale, given to Unknown outcomes.
	MinScore = 0.0
	// MaxScore is an exact phrase hit.
	MaxScore = 1.0
	// HighConfidence is the score above which a match needs no review.
	HighConfidence = 0.9
	// DefaultThreshold is the minimum category score; a category must
	// score strictly above it to be chosen.
	DefaultThreshold = 0.8

	partyWordThreshold = 75
)

var (
	forAgainstPattern = regexp.MustCompile(`(?i)\b(?:for|in favor of)\s+(?:the\s+)?(?:plaintiffs?|defendants?)?\s*(.*?)\s+against\s+(?:the\s+)?(?:plaintiffs?|defendants?)?\s*(.*?)\s*(?:\$|,|;|\.|$)`)
	inFavorPattern    = regexp.MustCompile(`(?i)\bin favor of\s+(?:the\s+)?(?:plaintiffs?|defendants?)?\s*(.*?)\s*(?:\$|,|;|\.|$)`)
	dismissalStatus   = regexp.MustCompile(`(?i)dismissed|\bdwop\b`)
)

// Input is everything the matcher needs for one case.
type Input struct {
	// Text is the raw disposition text.
	Text string
	// Status is the court status of the case, when known.
	Status     string
	Plaintiffs []string
	Defendants []string
	// AwardedTo and AwardedAgainst are explicitly labeled party names from
	// the register, preferred over names found in Text.
	AwardedTo      string
	AwardedAgainst string
}

// Result is the classified disposition.
type Result struct {
	Category       Category
	Type           string
	Amount         *string
	AwardedTo      *string
	AwardedAgainst *string
	JudgmentFor    *string
	Score          float64
}

type compiledCategory struct {
	category Category
	phrases  []string
}

// Matcher holds the compiled vocabulary. It is safe for concurrent use.
type Matcher struct {
	threshold  float64
	categories []compiledCategory
}

// New compiles the vocabulary's judgment categories.
func New(v *vocab.Vocabulary, threshold float64) (*Matcher, error) {
	if threshold < MinScore || threshold > MaxScore {
		return nil, fmt.Errorf("threshold %v outside [%v, %v]", threshold, MinScore, MaxScore)
	}
	m := &Matcher{threshold: threshold}
	for _, c := range v.Categories {
		category, err := ParseCategory(c.Name)
		if err != nil {
			return nil, err
		}
		if category == CategoryUnknown {
			return nil, fmt.Errorf("category %q cannot have phrases", c.Name)
		}
		compiled := compiledCategory{category: category}
		for _, p := range c.Phrases {
			if n := normalize(p); n != "" {
				compiled.phrases = append(compiled.phrases, n)
			}
		}
		m.categories = append(m.categories, compiled)
	}
	return m, nil
}

// Classify returns the best category for text and its score. Ties keep the
// category listed first in the vocabulary.
func (m *Matcher) Classify(text string) (Category, float64) {
	normalized := normalize(text)
	best, bestScore := CategoryUnknown, MinScore
	for _, c := range m.categories {
		score := MinScore
		for _, p := range c.phrases {
			if s := phraseScore(p, normalized); s > score {
				score = s
			}
		}
		if score > m.threshold && score > bestScore {
			best, bestScore = c.category, score
		}
	}
	return best, bestScore
}

// Match classifies the disposition and attributes it to the parties. It never
// fails: unrecognized text is a valid Unknown result at the floor score.
func (m *Matcher) Match(in Input) Result {
	category, score := m.Classify(in.Text)
	if dismissalStatus.MatchString(in.Status) {
		category, score = CategoryDismissed, MaxScore
	}

	res := Result{
		Category: category,
		Type:     category.Type(),
		Score:    clamp(score),
	}
	if amount, ok := extract.NormalizeAmount(in.Text); ok {
		res.Amount = &amount
	}

	toFragment, againstFragment := in.AwardedTo, in.AwardedAgainst
	if toFragment == "" && againstFragment == "" {
		toFragment, againstFragment = partyFragments(in.Text)
	}

	toName, toSide := resolveParty(toFragment, in.Plaintiffs, in.Defendants)
	againstName, againstSide := resolveParty(againstFragment, in.Plaintiffs, in.Defendants)
	res.AwardedTo = toName
	res.AwardedAgainst = againstName

	switch {
	case category == CategoryUnknown:
	case category.FixedSide() != "":
		side := category.FixedSide()
		res.JudgmentFor = &side
	case toSide != "":
		res.JudgmentFor = &toSide
	case againstSide != "":
		side := opposite(againstSide)
		res.JudgmentFor = &side
	}
	return res
}

func partyFragments(text string) (string, string) {
	text = strings.Join(strings.Fields(text), " ")
	if m := forAgainstPattern.FindStringSubmatch(text); m != nil {
		return m[1], m[2]
	}
	if m := inFavorPattern.FindStringSubmatch(text); m != nil {
		return m[1], ""
	}
	return "", ""
}

// resolveParty matches a name fragment against both party lists. The side
// with the strictly higher score wins and its best-scoring name, spelled as on
// the case, is returned; ties and zero scores resolve to nothing.
func resolveParty(fragment string, plaintiffs, defendants []string) (*string, string) {
	if strings.TrimSpace(fragment) == "" {
		return nil, ""
	}
	pName, pScore := bestName(fragment, plaintiffs)
	dName, dScore := bestName(fragment, defendants)

	switch {
	case pScore > dScore:
		return &pName, SidePlaintiff
	case dScore > pScore:
		return &dName, SideDefendant
	default:
		return nil, ""
	}
}

func bestName(fragment string, names []string) (string, int) {
	bestName, bestScore := "", 0
	for _, n := range names {
		if s := wordwiseScore(fragment, n); s > bestScore {
			bestName, bestScore = n, s
		}
	}
	return bestName, bestScore
}

func opposite(side string) string {
	if side == SidePlaintiff {
		return SideDefendant
	}
	return SidePlaintiff
}

func clamp(score float64) float64 {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
