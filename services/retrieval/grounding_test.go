package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_RerankSignalAuthoritative(t *testing.T) {
	v := NewValidator(0.25)

	item := &NormalizedItem{
		Result:      Result{Snippet: "Refunds are processed within five days", Score: 0.4},
		RerankScore: 0.9,
		HasRerank:   true,
	}

	validation, matches := v.Validate(item, []string{"refunds", "processed"}, 0)

	assert.True(t, validation.Passed)
	assert.InDelta(t, 0.9, validation.Score, 1e-9)
	assert.Equal(t, MethodBackendReranker, validation.Method)
	assert.NotEmpty(t, validation.Reasons)
	assert.Equal(t, []string{"refunds", "processed"}, matches)
}

func TestValidate_HeuristicFromDistance(t *testing.T) {
	v := NewValidator(0.25)

	item := &NormalizedItem{
		Result:      Result{Snippet: "Refunds are processed within five days", Score: 0.7},
		Distance:    1.0,
		HasDistance: true,
	}

	validation, _ := v.Validate(item, []string{"refunds"}, 0)

	// Distance 1.0 becomes score 0.5 through the canonical transform
	assert.InDelta(t, 0.5, validation.Score, 1e-9)
	assert.Equal(t, MethodHeuristicDistance, validation.Method)
	assert.True(t, validation.Passed)
}

func TestValidate_HeuristicFallsBackToScore(t *testing.T) {
	v := NewValidator(0.25)

	item := &NormalizedItem{
		Result: Result{Snippet: "some text", Score: 0.6},
	}

	validation, _ := v.Validate(item, []string{"other"}, 0)

	assert.InDelta(t, 0.6, validation.Score, 1e-9)
	assert.Equal(t, MethodHeuristicDistance, validation.Method)
}

func TestValidate_BaselineAppliedWithoutThreshold(t *testing.T) {
	v := NewValidator(0.25)

	item := &NormalizedItem{
		Result: Result{Snippet: "irrelevant text", Score: 0.1},
	}

	validation, _ := v.Validate(item, []string{"refunds"}, 0)

	assert.False(t, validation.Passed)
	assert.NotEmpty(t, validation.Reasons)
}

func TestValidate_RequestedThresholdDecides(t *testing.T) {
	v := NewValidator(0.25)

	item := &NormalizedItem{
		Result: Result{Snippet: "text", Score: 0.5},
	}

	t.Run("passes at threshold", func(t *testing.T) {
		validation, _ := v.Validate(item, nil, 0.5)
		assert.True(t, validation.Passed)
	})

	t.Run("fails above score", func(t *testing.T) {
		validation, _ := v.Validate(item, nil, 0.6)
		assert.False(t, validation.Passed)
	})
}

func TestValidate_ReasonsNeverEmpty(t *testing.T) {
	v := NewValidator(0.25)

	items := []*NormalizedItem{
		{Result: Result{Snippet: "", Score: 0}},
		{Result: Result{Snippet: "text", Score: 1}, HasRerank: true, RerankScore: 1},
		{Result: Result{Snippet: "text"}, HasDistance: true, Distance: 0.3},
	}

	for _, item := range items {
		for _, threshold := range []float64{0, 0.4} {
			validation, _ := v.Validate(item, []string{"text"}, threshold)
			assert.NotEmpty(t, validation.Reasons)
		}
	}
}

func TestValidate_ScoreClamped(t *testing.T) {
	v := NewValidator(0.25)

	item := &NormalizedItem{
		Result: Result{Snippet: "text", Score: 3.2},
	}

	validation, _ := v.Validate(item, nil, 0)
	assert.Equal(t, 1.0, validation.Score)
}

func TestMatchTerms(t *testing.T) {
	t.Run("case insensitive", func(t *testing.T) {
		matches := matchTerms([]string{"refunds", "days"}, "Refunds take five DAYS to settle")
		assert.Equal(t, []string{"refunds", "days"}, matches)
	})

	t.Run("no snippet", func(t *testing.T) {
		assert.Nil(t, matchTerms([]string{"refunds"}, ""))
	})

	t.Run("partial overlap", func(t *testing.T) {
		matches := matchTerms([]string{"refunds", "chargebacks"}, "refunds only")
		assert.Equal(t, []string{"refunds"}, matches)
	})
}
