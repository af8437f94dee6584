package performance

import (
	"time"

	"github.com/shopspring/decimal"
)

type Metric struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Category        string          `json:"metricCategory"`
	MeasurementType string          `json:"measurementType"`
	Weight          decimal.Decimal `json:"weightPercentage"`
	IsActive        bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type MetricInput struct {
	Code            string          `json:"code" validate:"required,max=50"`
	Name            string          `json:"name" validate:"notblank,max=255"`
	Description     string          `json:"description" validate:"max=2000"`
	Category        string          `json:"metricCategory" validate:"required,oneof=teaching research administration service behavioral"`
	MeasurementType string          `json:"measurementType" validate:"omitempty,oneof=quantitative qualitative rating_scale"`
	Weight          decimal.Decimal `json:"weightPercentage" validate:"nonneg"`
}

type Template struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	JobTitleID   *string          `json:"jobTitleId,omitempty"`
	DepartmentID *string          `json:"departmentId,omitempty"`
	IsActive     bool             `json:"isActive"`
	CreatedAt    time.Time        `json:"createdAt"`
	Metrics      []TemplateMetric `json:"metrics" db:"-"`
}

type TemplateMetric struct {
	TemplateID string          `json:"-"`
	MetricID   string          `json:"metricId"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Weight     decimal.Decimal `json:"weightPercentage"`
}

type TemplateMetricInput struct {
	MetricID string          `json:"metricId" validate:"required,uuid"`
	Weight   decimal.Decimal `json:"weightPercentage" validate:"positive"`
}

type TemplateInput struct {
	Name         string                `json:"name" validate:"notblank,max=200"`
	JobTitleID   *string               `json:"jobTitleId" validate:"omitempty,uuid"`
	DepartmentID *string               `json:"departmentId" validate:"omitempty,uuid"`
	Metrics      []TemplateMetricInput `json:"metrics" validate:"required,min=1,dive"`
}

type Cycle struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Type                string    `json:"cycleType"`
	StartDate           time.Time `json:"startDate"`
	EndDate             time.Time `json:"endDate"`
	SelfDeadline        time.Time `json:"selfAppraisalDeadline"`
	SupervisorDeadline  time.Time `json:"supervisorAppraisalDeadline"`
	FinalReviewDeadline time.Time `json:"finalReviewDeadline"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"createdAt"`
}

type CycleInput struct {
	Name                string `json:"name" validate:"notblank,max=200"`
	Type                string `json:"cycleType" validate:"required,oneof=annual mid_year quarterly probation"`
	StartDate           string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate             string `json:"endDate" validate:"required,datetime=2006-01-02"`
	SelfDeadline        string `json:"selfAppraisalDeadline" validate:"required,datetime=2006-01-02"`
	SupervisorDeadline  string `json:"supervisorAppraisalDeadline" validate:"required,datetime=2006-01-02"`
	FinalReviewDeadline string `json:"finalReviewDeadline" validate:"required,datetime=2006-01-02"`
}

type CycleStatusInput struct {
	Status string `json:"status" validate:"required,oneof=active in_review completed closed"`
}

type Appraisal struct {
	ID                string              `json:"id"`
	EmployeeID        string              `json:"employeeId"`
	EmployeeName      string              `json:"employeeName"`
	CycleID           string              `json:"cycleId"`
	CycleStatus       string              `json:"cycleStatus"`
	TemplateID        string              `json:"templateId"`
	AppraiserID       *string             `json:"appraiserId,omitempty"`
	SelfStatus        string              `json:"selfAssessmentStatus"`
	SelfAt            *time.Time          `json:"selfAssessmentAt,omitempty"`
	SupervisorStatus  string              `json:"supervisorAssessmentStatus"`
	SupervisorAt      *time.Time          `json:"supervisorAssessmentAt,omitempty"`
	FinalScore        decimal.NullDecimal `json:"finalScore"`
	FinalRating       *string             `json:"finalRating,omitempty"`
	OverallComments   string              `json:"overallComments"`
	RecommendedAction *string             `json:"recommendedAction,omitempty"`
	Status            string              `json:"status"`
	DisputeReason     string              `json:"disputeReason"`
	DisputeResolution string              `json:"disputeResolution"`
	ApprovedBy        *string             `json:"approvedBy,omitempty"`
	ApprovedAt        *time.Time          `json:"approvedAt,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
}

type Score struct {
	ID                 string              `json:"id"`
	AppraisalID        string              `json:"appraisalId"`
	MetricID           string              `json:"metricId"`
	MetricCode         string              `json:"metricCode"`
	MetricName         string              `json:"metricName"`
	Weight             decimal.Decimal     `json:"weightPercentage"`
	SelfRating         decimal.NullDecimal `json:"selfRating"`
	SelfComments       string              `json:"selfComments"`
	SupervisorRating   decimal.NullDecimal `json:"supervisorRating"`
	SupervisorComments string              `json:"supervisorComments"`
	AgreedRating       decimal.NullDecimal `json:"agreedRating"`
	WeightedScore      decimal.NullDecimal `json:"weightedScore"`
}

type AppraisalDetail struct {
	Appraisal
	Scores []Score `json:"scores"`
}

type AppraisalInput struct {
	EmployeeID string `json:"employeeId" validate:"required,uuid"`
	CycleID    string `json:"cycleId" validate:"required,uuid"`
	TemplateID string `json:"templateId" validate:"required,uuid"`
}

type ScoreInput struct {
	MetricID string          `json:"metricId" validate:"required,uuid"`
	Rating   decimal.Decimal `json:"rating"`
	Comments string          `json:"comments" validate:"max=2000"`
}

type AssessmentInput struct {
	Scores []ScoreInput `json:"scores" validate:"required,min=1,dive"`
}

type AgreedInput struct {
	MetricID string          `json:"metricId" validate:"required,uuid"`
	Rating   decimal.Decimal `json:"rating"`
}

type FinalizeInput struct {
	Agreed            []AgreedInput `json:"agreed" validate:"dive"`
	OverallComments   string        `json:"overallComments" validate:"max=4000"`
	RecommendedAction string        `json:"recommendedAction" validate:"omitempty,oneof=promotion salary_increment training warning termination no_change"`
}

type DisputeInput struct {
	Reason string `json:"reason" validate:"notblank,max=2000"`
}

type ResolveInput struct {
	Resolution string `json:"resolution" validate:"notblank,max=2000"`
}

type AppraisalFilter struct {
	CycleID     string
	EmployeeID  string
	AppraiserID string
	Status      string
}

// EmployeeRef carries what creating an appraisal needs about the appraisee.
type EmployeeRef struct {
	ID           string
	Status       string
	SupervisorID *string
	UserID       *string
}

type CycleSummary struct {
	CycleID      string          `json:"cycleId"`
	Total        int             `json:"total"`
	Completed    int             `json:"completed"`
	Disputed     int             `json:"disputed"`
	ByRating     map[string]int  `json:"byRating"`
	AverageScore decimal.Decimal `json:"averageScore"`
}
