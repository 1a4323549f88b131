package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVocabulary(t *testing.T) {
	v := Default()

	require.NotEmpty(t, v.Categories)
	assert.Equal(t, "judgment_for_plaintiff", v.Categories[0].Name)

	info, ok := v.Status("  Final   Disposition ")
	require.True(t, ok)
	assert.False(t, info.Active)
	assert.Equal(t, GroupJudgment, info.Group)

	_, ok = v.Status("Under Advisement")
	assert.False(t, ok)

	assert.True(t, v.IsHearingType("Eviction Hearing"))
	assert.False(t, v.IsHearingType("Original Petition"))
}

func TestInactiveStatuses(t *testing.T) {
	inactive := Default().InactiveStatuses()

	assert.Contains(t, inactive, "dismissed")
	assert.Contains(t, inactive, "closed")
	assert.NotContains(t, inactive, "active")
	assert.IsIncreasing(t, inactive)
}

func TestLoadRejectsEmptyCategory(t *testing.T) {
	_, err := Load([]byte("categories:\n  - name: dismissed\n"))
	assert.Error(t, err)

	_, err = Load([]byte("statuses: {}\n"))
	assert.Error(t, err)
}
