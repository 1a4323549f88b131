package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 1.0, partialRatio("doe", "john doe"))
	assert.Equal(t, 1.0, partialRatio("john doe", "doe"))
	assert.Equal(t, 1.0, partialRatio("", ""))
	assert.Equal(t, 0.0, partialRatio("", "doe"))
	assert.InDelta(t, 0.875, partialRatio("judgment entered", "agreed judgement entered"), 0.001)
}

func TestPhraseScore(t *testing.T) {
	// Whole words only for the exact path.
	assert.Equal(t, 1.0, phraseScore("judgment", "final judgment entered"))
	assert.Less(t, phraseScore("dismissed", "judgment"), DefaultThreshold)
	// A short text does not fully match a longer phrase.
	assert.Less(t, phraseScore("judgment for plaintiff", "judgment"), DefaultThreshold)
	// Fuzzy matches compare whole words, not character windows.
	assert.Less(t, phraseScore("dismissed", "motion to dismiss denied"), DefaultThreshold)
	assert.Less(t, phraseScore("dismissal", "motion to dismiss denied"), DefaultThreshold)
	assert.Greater(t, phraseScore("judgment", "judgement"), DefaultThreshold)
	assert.Greater(t, phraseScore("judgment for plaintiff", "agreed judgement for plaintif"), DefaultThreshold)
}

func TestWordwiseScore(t *testing.T) {
	assert.Equal(t, 200, wordwiseScore("JOHN DOE", "Doe, John"))
	assert.Equal(t, 0, wordwiseScore("Jane Roe", "John Doe"))
	// Role words and initials are ignored.
	assert.Equal(t, 100, wordwiseScore("Plaintiff J. Doe", "Doe, John"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "nonsuited dismissed by plaintiff", normalize("Nonsuited/Dismissed  by Plaintiff."))
	assert.Equal(t, "judgment 1 200 00", normalize("JUDGMENT $1,200.00"))
}
