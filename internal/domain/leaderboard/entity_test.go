package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

func sample() []*Entry {
	return []*Entry{
		{ProfileID: "c", DisplayName: "Bota", XP: 300, Streak: 2, CompletedLessons: 5},
		{ProfileID: "a", DisplayName: "Arman", XP: 300, Streak: 7, CompletedLessons: 1},
		{ProfileID: "b", DisplayName: "Aru", XP: 500, Streak: 2, CompletedLessons: 5},
	}
}

func ids(entries []*Entry) []shared.ProfileID {
	out := make([]shared.ProfileID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ProfileID)
	}
	return out
}

func TestRank(t *testing.T) {
	tests := []struct {
		key  SortKey
		want []shared.ProfileID
	}{
		{SortByXP, []shared.ProfileID{"b", "a", "c"}},
		{SortByStreak, []shared.ProfileID{"a", "b", "c"}},
		{SortByCompletedLessons, []shared.ProfileID{"b", "c", "a"}},
		{SortByName, []shared.ProfileID{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			entries := sample()
			Rank(entries, tt.key)
			assert.Equal(t, tt.want, ids(entries))
			for i, e := range entries {
				assert.Equal(t, i+1, e.Rank)
			}
		})
	}
}

func TestRank_DeterministicAcrossInputOrder(t *testing.T) {
	first := sample()
	second := []*Entry{sample()[2], sample()[0], sample()[1]}
	Rank(first, SortByXP)
	Rank(second, SortByXP)
	assert.Equal(t, ids(first), ids(second))
}

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortByXP, k)

	_, err = ParseSortKey("age")
	assert.True(t, shared.IsValidation(err))

	assert.False(t, SortByStreak.Cacheable())
	assert.True(t, SortByName.Cacheable())
}

func TestPage(t *testing.T) {
	entries := sample()
	assert.Len(t, Page(entries, 0, 0), 3)
	assert.Len(t, Page(entries, 1, 1), 1)
	assert.Len(t, Page(entries, 2, 10), 1)
	assert.Empty(t, Page(entries, 5, 10))
}
