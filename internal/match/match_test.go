package match

import (
	"testing"

	"github.com/JustJay7/eviction-hearing-parser/internal/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := New(vocab.Default(), DefaultThreshold)
	require.NoError(t, err)
	return m
}

func TestMatchJudgmentForPlaintiff(t *testing.T) {
	m := newMatcher(t)

	res := m.Match(Input{
		Text:       "JUDGMENT FOR PLAINTIFF JOHN DOE AGAINST JANE ROE $1200",
		Plaintiffs: []string{"John Doe"},
		Defendants: []string{"Jane Roe"},
	})

	assert.Equal(t, CategoryJudgmentForPlaintiff, res.Category)
	assert.Equal(t, "Judgment", res.Type)
	require.NotNil(t, res.Amount)
	assert.Equal(t, "1200", *res.Amount)
	require.NotNil(t, res.AwardedTo)
	assert.Equal(t, "John Doe", *res.AwardedTo)
	require.NotNil(t, res.AwardedAgainst)
	assert.Equal(t, "Jane Roe", *res.AwardedAgainst)
	require.NotNil(t, res.JudgmentFor)
	assert.Equal(t, SidePlaintiff, *res.JudgmentFor)
	assert.GreaterOrEqual(t, res.Score, HighConfidence)
}

func TestMatchUnknownIsNotAnError(t *testing.T) {
	m := newMatcher(t)

	res := m.Match(Input{
		Text:       "The quick brown fox jumps over the lazy dog",
		Plaintiffs: []string{"John Doe"},
		Defendants: []string{"Jane Roe"},
	})

	assert.Equal(t, CategoryUnknown, res.Category)
	assert.Equal(t, "Unknown", res.Type)
	assert.Equal(t, MinScore, res.Score)
	assert.Nil(t, res.JudgmentFor)
	assert.Nil(t, res.Amount)
}

func TestMatchCategories(t *testing.T) {
	m := newMatcher(t)

	tests := []struct {
		name        string
		text        string
		status      string
		want        Category
		judgmentFor string
	}{
		{"default judgment", "Default Judgment (Judicial Officer Williams, Nicholas) Judgment $1,200.00.", "", CategoryDefaultJudgment, SidePlaintiff},
		{"judgment for defendant", "Judgment for Defendant, take nothing", "", CategoryJudgmentForDefendant, SideDefendant},
		{"dismissed", "Nonsuited/Dismissed by Plaintiff", "", CategoryDismissed, SideNoJudgment},
		{"dwop", "DWOP", "", CategoryDismissed, SideNoJudgment},
		{"misspelled judgement", "Agreed Judgement entered", "", CategoryAgreedJudgment, ""},
		{"dismissal status wins", "Judgment for Plaintiff", "Dismissed for Want of Prosecution", CategoryDismissed, SideNoJudgment},
		{"generic judgment", "Final Judgment", "", CategoryJudgment, ""},
		{"judgement spelling", "JUDGEMENT", "", CategoryJudgment, ""},
		{"default judgement spelling", "Default Judgement", "", CategoryDefaultJudgment, SidePlaintiff},
		{"judgement for defendant spelling", "Judgement for Defendant", "", CategoryJudgmentForDefendant, SideDefendant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(Input{Text: tt.text, Status: tt.status})
			assert.Equal(t, tt.want, res.Category)
			assert.Greater(t, res.Score, DefaultThreshold)
			if tt.judgmentFor == "" {
				assert.Nil(t, res.JudgmentFor)
				return
			}
			require.NotNil(t, res.JudgmentFor)
			assert.Equal(t, tt.judgmentFor, *res.JudgmentFor)
		})
	}
}

func TestMatchNearWordsAreUnknown(t *testing.T) {
	m := newMatcher(t)

	for _, text := range []string{
		"Motion to dismiss denied",
		"Motion to Dismiss (Judicial Officer Hobbs, Edna)",
		"Plaintiff's petition",
	} {
		t.Run(text, func(t *testing.T) {
			res := m.Match(Input{Text: text})
			assert.Equal(t, CategoryUnknown, res.Category)
			assert.Equal(t, MinScore, res.Score)
			assert.Nil(t, res.JudgmentFor)
		})
	}
}

func TestMatchScoreAlwaysBounded(t *testing.T) {
	m := newMatcher(t)

	texts := []string{
		"",
		"$",
		"judgment",
		"JUDGMENT FOR PLAINTIFF",
		"jdugment fro plaintif",
		"Writ of possession issued 04/13/2020",
		"dismissed dismissed dismissed",
	}
	for _, text := range texts {
		res := m.Match(Input{Text: text})
		assert.GreaterOrEqual(t, res.Score, MinScore, text)
		assert.LessOrEqual(t, res.Score, MaxScore, text)
		if res.Category == CategoryUnknown {
			assert.Equal(t, MinScore, res.Score, text)
		}
	}
}

func TestMatchGenericJudgmentUsesParties(t *testing.T) {
	m := newMatcher(t)

	res := m.Match(Input{
		Text:       "Final Judgment in favor of Acme Properties LLC",
		Plaintiffs: []string{"Acme Properties LLC"},
		Defendants: []string{"Tenant, Sam"},
	})

	assert.Equal(t, CategoryJudgment, res.Category)
	require.NotNil(t, res.AwardedTo)
	assert.Equal(t, "Acme Properties LLC", *res.AwardedTo)
	require.NotNil(t, res.JudgmentFor)
	assert.Equal(t, SidePlaintiff, *res.JudgmentFor)
}

func TestMatchLabeledPartiesPreferred(t *testing.T) {
	m := newMatcher(t)

	res := m.Match(Input{
		Text:           "Agreed Judgment. Awarded To: Roe, Jane",
		Plaintiffs:     []string{"Doe, John"},
		Defendants:     []string{"Roe, Jane", "Roe, Richard"},
		AwardedTo:      "Roe, Jane",
		AwardedAgainst: "Doe, John",
	})

	require.NotNil(t, res.AwardedTo)
	assert.Equal(t, "Roe, Jane", *res.AwardedTo)
	require.NotNil(t, res.AwardedAgainst)
	assert.Equal(t, "Doe, John", *res.AwardedAgainst)
	require.NotNil(t, res.JudgmentFor)
	assert.Equal(t, SideDefendant, *res.JudgmentFor)
}

func TestResolvePartyTieLeavesNull(t *testing.T) {
	name, side := resolveParty("Smith", []string{"John Smith"}, []string{"Mary Smith"})
	assert.Nil(t, name)
	assert.Empty(t, side)

	name, side = resolveParty("Nobody Known", []string{"John Doe"}, []string{"Jane Roe"})
	assert.Nil(t, name)
	assert.Empty(t, side)
}

func TestEveryCategoryHasVocabulary(t *testing.T) {
	m := newMatcher(t)

	seen := map[Category]bool{}
	for _, c := range m.categories {
		seen[c.category] = true
	}
	for _, c := range Categories() {
		if c == CategoryUnknown {
			continue
		}
		assert.True(t, seen[c], "category %s has no phrases", c)
		parsed, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func TestNewRejectsBadThreshold(t *testing.T) {
	_, err := New(vocab.Default(), 1.5)
	assert.Error(t, err)
}
