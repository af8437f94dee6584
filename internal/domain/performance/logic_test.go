package performance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strptr(s string) *string { return &s }

func TestRatingBands(t *testing.T) {
	cases := map[string]string{
		"100":   RatingOutstanding,
		"90":    RatingOutstanding,
		"89.99": RatingExceeds,
		"75":    RatingExceeds,
		"60":    RatingMeets,
		"59.5":  RatingNeedsImprovement,
		"40":    RatingNeedsImprovement,
		"39.99": RatingUnsatisfactory,
		"0":     RatingUnsatisfactory,
	}
	for score, want := range cases {
		assert.Equal(t, want, RatingFor(dec(score)), score)
	}
}

func TestFinalizeWeightsAgreedRatings(t *testing.T) {
	scores := []Score{
		{MetricID: "m1", MetricCode: "TEACH", Weight: dec("50"), SupervisorRating: decimal.NewNullDecimal(dec("4"))},
		{MetricID: "m2", MetricCode: "ADMIN", Weight: dec("30"), SupervisorRating: decimal.NewNullDecimal(dec("3"))},
		{MetricID: "m3", MetricCode: "SERVE", Weight: dec("20"), SupervisorRating: decimal.NewNullDecimal(dec("5"))},
	}
	out, final, err := Finalize(scores, map[string]decimal.Decimal{"m2": dec("4")})
	require.NoError(t, err)

	// 4*0.5 + 4*0.3 + 5*0.2 = 4.2 of 5
	assert.Equal(t, "2.00", out[0].WeightedScore.Decimal.StringFixed(2))
	assert.Equal(t, "4", out[1].AgreedRating.Decimal.String())
	assert.Equal(t, "1.20", out[1].WeightedScore.Decimal.StringFixed(2))
	assert.Equal(t, "84.00", final.StringFixed(2))
	assert.Equal(t, RatingExceeds, RatingFor(final))
}

func TestFinalizeNeedsSupervisorRatings(t *testing.T) {
	scores := []Score{{MetricID: "m1", MetricCode: "TEACH", Weight: dec("100")}}
	_, _, err := Finalize(scores, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = Finalize(scores, map[string]decimal.Decimal{"m1": dec("6")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, final, err := Finalize(scores, map[string]decimal.Decimal{"m1": dec("5")})
	require.NoError(t, err)
	assert.Equal(t, "100.00", final.StringFixed(2))
}

func TestValidateTemplateWeights(t *testing.T) {
	ok := []TemplateMetricInput{{MetricID: "a", Weight: dec("60")}, {MetricID: "b", Weight: dec("40")}}
	assert.NoError(t, ValidateTemplateWeights(ok))

	short := []TemplateMetricInput{{MetricID: "a", Weight: dec("60")}, {MetricID: "b", Weight: dec("30")}}
	assert.ErrorIs(t, ValidateTemplateWeights(short), ErrInvalidInput)

	dup := []TemplateMetricInput{{MetricID: "a", Weight: dec("50")}, {MetricID: "a", Weight: dec("50")}}
	assert.ErrorIs(t, ValidateTemplateWeights(dup), ErrInvalidInput)
}

func TestCycleTransitions(t *testing.T) {
	assert.True(t, CanAdvance(CyclePlanned, CycleActive))
	assert.True(t, CanAdvance(CycleActive, CycleInReview))
	assert.True(t, CanAdvance(CycleInReview, CycleCompleted))
	assert.True(t, CanAdvance(CycleCompleted, CycleClosed))
	assert.False(t, CanAdvance(CyclePlanned, CycleCompleted))
	assert.False(t, CanAdvance(CycleClosed, CycleActive))
	assert.False(t, CanAdvance(CycleActive, CyclePlanned))
}

func TestBuildCycleSummary(t *testing.T) {
	summary := buildCycleSummary("c1",
		[]string{StatusCompleted, StatusClosed, StatusDisputed, StatusInProgress},
		[]*string{strptr(RatingExceeds), strptr(RatingExceeds), strptr(RatingMeets), nil},
		[]decimal.NullDecimal{decimal.NewNullDecimal(dec("80")), decimal.NewNullDecimal(dec("76")), decimal.NewNullDecimal(dec("61")), {}},
	)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Disputed)
	assert.Equal(t, 2, summary.ByRating[RatingExceeds])
	assert.Equal(t, 1, summary.ByRating[RatingMeets])
	assert.Equal(t, "72.33", summary.AverageScore.StringFixed(2))
}

func TestBuildCycleSummaryEmpty(t *testing.T) {
	summary := buildCycleSummary("c1", nil, nil, nil)
	assert.Zero(t, summary.Total)
	assert.Empty(t, summary.ByRating)
	assert.True(t, summary.AverageScore.IsZero())
}

func TestApplyRatingsRequiresEveryMetric(t *testing.T) {
	scores := []Score{
		{ID: "s1", MetricID: "m1", MetricCode: "TEACH", Weight: dec("60")},
		{ID: "s2", MetricID: "m2", MetricCode: "ADMIN", Weight: dec("40")},
	}

	out, err := applyRatings(scores, []ScoreInput{
		{MetricID: "m2", Rating: dec("3"), Comments: "steady"},
		{MetricID: "m1", Rating: dec("4")},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "4", out[0].SupervisorRating.Decimal.String())
	assert.Equal(t, "steady", out[1].SupervisorComments)
	assert.False(t, out[0].SelfRating.Valid)

	_, err = applyRatings(scores, []ScoreInput{{MetricID: "m1", Rating: dec("4")}}, false)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = applyRatings(scores, []ScoreInput{
		{MetricID: "m1", Rating: dec("4")},
		{MetricID: "m1", Rating: dec("2")},
	}, false)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = applyRatings(scores, []ScoreInput{
		{MetricID: "m1", Rating: dec("4")},
		{MetricID: "m2", Rating: dec("0")},
	}, false)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = applyRatings(scores, []ScoreInput{
		{MetricID: "m1", Rating: dec("4")},
		{MetricID: "m2", Rating: dec("4")},
		{MetricID: "m9", Rating: dec("4")},
	}, false)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
