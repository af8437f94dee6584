package performance

import (
	"context"

	"github.com/shopspring/decimal"

	"schoolerp/internal/platform/querier"
)

type StoreAPI interface {
	InTx(ctx context.Context, fn func(q querier.Querier) error) error
	Pool() querier.Querier
	ListMetrics(ctx context.Context, activeOnly bool) ([]Metric, error)
	CreateMetric(ctx context.Context, in MetricInput) (string, error)
	ListTemplates(ctx context.Context) ([]Template, error)
	GetTemplate(ctx context.Context, q querier.Querier, id string) (Template, error)
	CreateTemplate(ctx context.Context, in TemplateInput) (string, error)
	ListCycles(ctx context.Context, status string) ([]Cycle, error)
	GetCycle(ctx context.Context, q querier.Querier, id string) (Cycle, error)
	LockCycle(ctx context.Context, q querier.Querier, id string) (Cycle, error)
	CreateCycle(ctx context.Context, c Cycle) (string, error)
	SetCycleStatus(ctx context.Context, q querier.Querier, id, status string) error
	CloseAppraisals(ctx context.Context, q querier.Querier, cycleID string) (int64, error)
	Employee(ctx context.Context, q querier.Querier, id string) (EmployeeRef, error)
	CreateAppraisal(ctx context.Context, q querier.Querier, in AppraisalInput, appraiserID *string, metrics []TemplateMetric) (string, error)
	GetAppraisal(ctx context.Context, q querier.Querier, id string) (Appraisal, error)
	LockAppraisal(ctx context.Context, q querier.Querier, id string) (Appraisal, error)
	ListAppraisals(ctx context.Context, filter AppraisalFilter) ([]Appraisal, error)
	Scores(ctx context.Context, q querier.Querier, appraisalID string) ([]Score, error)
	SaveScores(ctx context.Context, q querier.Querier, scores []Score) error
	SaveAppraisal(ctx context.Context, q querier.Querier, a Appraisal) error
	CycleResults(ctx context.Context, cycleID string) ([]string, []*string, []decimal.NullDecimal, error)
}
