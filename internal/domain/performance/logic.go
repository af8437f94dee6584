package performance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred   = decimal.NewFromInt(100)
	maxRating = decimal.NewFromInt(MaxRating)
)

var cycleTransitions = map[string]string{
	CyclePlanned:   CycleActive,
	CycleActive:    CycleInReview,
	CycleInReview:  CycleCompleted,
	CycleCompleted: CycleClosed,
}

// CanAdvance reports whether a cycle may move from one status to the next.
// Cycles only move forward one step at a time.
func CanAdvance(from, to string) bool {
	return cycleTransitions[from] == to
}

func validRating(r decimal.Decimal) bool {
	return !r.LessThan(decimal.NewFromInt(1)) && !r.GreaterThan(maxRating)
}

// ValidateTemplateWeights requires the metric weights to add up to 100 with
// no metric listed twice.
func ValidateTemplateWeights(metrics []TemplateMetricInput) error {
	seen := map[string]bool{}
	total := decimal.Zero
	for _, m := range metrics {
		if seen[m.MetricID] {
			return fmt.Errorf("%w: metric %s listed twice", ErrInvalidInput, m.MetricID)
		}
		seen[m.MetricID] = true
		total = total.Add(m.Weight)
	}
	if !total.Equal(hundred) {
		return fmt.Errorf("%w: metric weights add up to %s, expected 100", ErrInvalidInput, total.String())
	}
	return nil
}

// WeightedScore is the agreed rating scaled by the metric weight.
func WeightedScore(agreed, weight decimal.Decimal) decimal.Decimal {
	return agreed.Mul(weight).Div(hundred).Round(2)
}

// FinalScore converts the summed weighted ratings into a percentage of the
// best possible result.
func FinalScore(weighted []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, w := range weighted {
		sum = sum.Add(w)
	}
	return sum.Div(maxRating).Mul(hundred).Round(2)
}

func RatingFor(score decimal.Decimal) string {
	switch {
	case score.GreaterThanOrEqual(decimal.NewFromInt(90)):
		return RatingOutstanding
	case score.GreaterThanOrEqual(decimal.NewFromInt(75)):
		return RatingExceeds
	case score.GreaterThanOrEqual(decimal.NewFromInt(60)):
		return RatingMeets
	case score.GreaterThanOrEqual(decimal.NewFromInt(40)):
		return RatingNeedsImprovement
	default:
		return RatingUnsatisfactory
	}
}

// Finalize fills agreed and weighted scores. An override in agreed wins;
// otherwise the supervisor rating stands. Every metric needs one of the two.
func Finalize(scores []Score, agreed map[string]decimal.Decimal) ([]Score, decimal.Decimal, error) {
	out := make([]Score, len(scores))
	weighted := make([]decimal.Decimal, 0, len(scores))
	for i, sc := range scores {
		rating, ok := agreed[sc.MetricID]
		if !ok {
			if !sc.SupervisorRating.Valid {
				return nil, decimal.Zero, fmt.Errorf("%w: metric %s has no supervisor rating", ErrInvalidInput, sc.MetricCode)
			}
			rating = sc.SupervisorRating.Decimal
		}
		if !validRating(rating) {
			return nil, decimal.Zero, fmt.Errorf("%w: rating for %s must be between 1 and %d", ErrInvalidInput, sc.MetricCode, MaxRating)
		}
		sc.AgreedRating = decimal.NewNullDecimal(rating)
		w := WeightedScore(rating, sc.Weight)
		sc.WeightedScore = decimal.NewNullDecimal(w)
		weighted = append(weighted, w)
		out[i] = sc
	}
	return out, FinalScore(weighted), nil
}

func buildCycleSummary(cycleID string, statuses []string, ratings []*string, scores []decimal.NullDecimal) CycleSummary {
	summary := CycleSummary{CycleID: cycleID, Total: len(statuses), ByRating: map[string]int{}, AverageScore: decimal.Zero}
	for _, status := range statuses {
		switch status {
		case StatusCompleted, StatusClosed:
			summary.Completed++
		case StatusDisputed:
			summary.Disputed++
		}
	}
	for _, r := range ratings {
		if r != nil {
			summary.ByRating[*r]++
		}
	}
	total := decimal.Zero
	n := 0
	for _, s := range scores {
		if s.Valid {
			total = total.Add(s.Decimal)
			n++
		}
	}
	if n > 0 {
		summary.AverageScore = total.Div(decimal.NewFromInt(int64(n))).Round(2)
	}
	return summary
}

// applyRatings copies submitted ratings onto the score rows. Every metric on
// the appraisal must be rated exactly once.
func applyRatings(scores []Score, inputs []ScoreInput, supervisor bool) ([]Score, error) {
	known := map[string]bool{}
	for _, sc := range scores {
		known[sc.MetricID] = true
	}
	byMetric := map[string]ScoreInput{}
	for _, in := range inputs {
		if !known[in.MetricID] {
			return nil, fmt.Errorf("%w: metric %s is not on this appraisal", ErrInvalidInput, in.MetricID)
		}
		if _, dup := byMetric[in.MetricID]; dup {
			return nil, fmt.Errorf("%w: metric %s rated twice", ErrInvalidInput, in.MetricID)
		}
		if !validRating(in.Rating) {
			return nil, fmt.Errorf("%w: rating must be between 1 and %d", ErrInvalidInput, MaxRating)
		}
		byMetric[in.MetricID] = in
	}
	out := make([]Score, len(scores))
	for i, sc := range scores {
		in, ok := byMetric[sc.MetricID]
		if !ok {
			return nil, fmt.Errorf("%w: metric %s is not rated", ErrInvalidInput, sc.MetricCode)
		}
		if supervisor {
			sc.SupervisorRating = decimal.NewNullDecimal(in.Rating)
			sc.SupervisorComments = in.Comments
		} else {
			sc.SelfRating = decimal.NewNullDecimal(in.Rating)
			sc.SelfComments = in.Comments
		}
		out[i] = sc
	}
	return out, nil
}
