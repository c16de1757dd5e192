package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

func TestComputeAward_ReattemptSequence(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	first, err := calc.ComputeAward(Result{Score: 8, TotalQuestions: 10, TimeRemainingSeconds: 60}, nil)
	require.NoError(t, err)
	assert.True(t, first.Passed)
	assert.False(t, first.PerfectScore)
	assert.False(t, first.HasHistory)
	assert.Equal(t, 10, first.TimeBonus)
	assert.Equal(t, 110, first.XPEarned)

	history := []PriorScore{{Score: 8, TotalQuestions: 10}}
	second, err := calc.ComputeAward(Result{Score: 10, TotalQuestions: 10}, history)
	require.NoError(t, err)
	assert.True(t, second.PerfectScore)
	assert.Equal(t, 80.0, second.PreviousBestPercent)
	assert.Equal(t, 70, second.XPEarned)

	history = append(history, PriorScore{Score: 10, TotalQuestions: 10})
	third, err := calc.ComputeAward(Result{Score: 10, TotalQuestions: 10}, history)
	require.NoError(t, err)
	assert.True(t, third.Passed)
	assert.Equal(t, 0, third.XPEarned)
}

func TestComputeAward_FailedAttempt(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	award, err := calc.ComputeAward(Result{Score: 7, TotalQuestions: 10, TimeRemainingSeconds: 300}, nil)
	require.NoError(t, err)
	assert.False(t, award.Passed)
	assert.Equal(t, 0, award.XPEarned)
	assert.Equal(t, 0, award.TimeBonus)
}

func TestComputeAward_PerfectFirstAttemptWithCappedBonus(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	award, err := calc.ComputeAward(Result{Score: 5, TotalQuestions: 5, TimeRemainingSeconds: 3600}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTimeBonus, award.TimeBonus)
	assert.Equal(t, DefaultBaseXP+DefaultPerfectBonus+DefaultMaxTimeBonus, award.XPEarned)
}

func TestComputeAward_EquivalentRatioIsNotImprovement(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	// 4/5 and 8/10 are both 80%.
	award, err := calc.ComputeAward(
		Result{Score: 8, TotalQuestions: 10, TimeRemainingSeconds: 120},
		[]PriorScore{{Score: 4, TotalQuestions: 5}},
	)
	require.NoError(t, err)
	assert.Equal(t, 0, award.XPEarned)
}

func TestComputeAward_ImprovementWithFailedHistory(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	// Best prior attempt failed at 50%; the passing attempt earns the delta.
	award, err := calc.ComputeAward(
		Result{Score: 9, TotalQuestions: 10, TimeRemainingSeconds: 30},
		[]PriorScore{{Score: 3, TotalQuestions: 10}, {Score: 5, TotalQuestions: 10}},
	)
	require.NoError(t, err)
	assert.Equal(t, 50.0, award.PreviousBestPercent)
	assert.Equal(t, 90-50+5, award.XPEarned)
}

func TestComputeAward_Validation(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	tests := []struct {
		name   string
		result Result
	}{
		{"zero questions", Result{Score: 0, TotalQuestions: 0}},
		{"score above total", Result{Score: 11, TotalQuestions: 10}},
		{"negative score", Result{Score: -1, TotalQuestions: 10}},
		{"negative time", Result{Score: 5, TotalQuestions: 10, TimeRemainingSeconds: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.ComputeAward(tt.result, nil)
			assert.True(t, shared.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestComputeAward_NeverNegative(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	histories := [][]PriorScore{
		nil,
		{{Score: 0, TotalQuestions: 3}},
		{{Score: 3, TotalQuestions: 3}},
		{{Score: 7, TotalQuestions: 9}, {Score: 2, TotalQuestions: 4}},
		{{Score: 1, TotalQuestions: 0}},
	}
	for total := 1; total <= 12; total++ {
		for score := 0; score <= total; score++ {
			for _, remaining := range []int{0, 1, 59, 600} {
				for _, h := range histories {
					award, err := calc.ComputeAward(Result{Score: score, TotalQuestions: total, TimeRemainingSeconds: remaining}, h)
					require.NoError(t, err)
					assert.GreaterOrEqual(t, award.XPEarned, 0)
				}
			}
		}
	}
}

func TestNewCalculator_Defaults(t *testing.T) {
	calc := NewCalculator(Config{})
	assert.Equal(t, DefaultBaseXP, calc.Config().BaseXP)
	assert.Equal(t, DefaultPassPercent, calc.Config().PassPercent)
}
