package personality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		answers []Category
		want    Type
	}{
		{"majority A", []Category{CategoryA, CategoryB, CategoryA}, TypeImpulsive},
		{"tie A B", []Category{CategoryA, CategoryB}, TypeImpulsive},
		{"tie B C", []Category{CategoryC, CategoryB}, TypeBalanced},
		{"three-way tie", []Category{CategoryC, CategoryB, CategoryA}, TypeImpulsive},
		{"majority C", []Category{CategoryC, CategoryC, CategoryA}, TypeStrategic},
		{"single B", []Category{CategoryB}, TypeBalanced},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.answers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Errors(t *testing.T) {
	c := NewClassifier()

	_, err := c.Classify(nil)
	assert.True(t, shared.IsValidation(err))

	_, err = c.Classify([]Category{CategoryA, "D"})
	assert.True(t, shared.IsValidation(err))
}

func TestParseAnswers(t *testing.T) {
	got, err := ParseAnswers([]string{"a", " B ", "c"})
	require.NoError(t, err)
	assert.Equal(t, []Category{CategoryA, CategoryB, CategoryC}, got)

	_, err = ParseAnswers([]string{"A", "x"})
	assert.True(t, shared.IsValidation(err))
}
