package performance

const (
	CyclePlanned   = "planned"
	CycleActive    = "active"
	CycleInReview  = "in_review"
	CycleCompleted = "completed"
	CycleClosed    = "closed"

	StatusDraft      = "draft"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusDisputed   = "disputed"
	StatusClosed     = "closed"

	AssessmentPending   = "pending"
	AssessmentSubmitted = "submitted"

	RatingOutstanding      = "outstanding"
	RatingExceeds          = "exceeds_expectations"
	RatingMeets            = "meets_expectations"
	RatingNeedsImprovement = "needs_improvement"
	RatingUnsatisfactory   = "unsatisfactory"
)

// MaxRating is the top of the 1 to 5 scale every metric is scored on.
const MaxRating = 5
