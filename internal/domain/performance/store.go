package performance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"schoolerp/internal/platform/querier"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) InTx(ctx context.Context, fn func(q querier.Querier) error) error {
	return querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

func (s *Store) Pool() querier.Querier {
	return s.DB
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) ListMetrics(ctx context.Context, activeOnly bool) ([]Metric, error) {
	query := `
		SELECT id, code, name, description, metric_category, measurement_type, weight_percentage, is_active, created_at
		FROM performance_metrics`
	if activeOnly {
		query += " WHERE is_active"
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY metric_category, code")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Metric])
}

func (s *Store) CreateMetric(ctx context.Context, in MetricInput) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO performance_metrics (code, name, description, metric_category, measurement_type, weight_percentage)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, in.Code, in.Name, in.Description, in.Category, in.MeasurementType, in.Weight).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", fmt.Errorf("%w: metric code %s exists", ErrInvalidInput, in.Code)
	}
	return id, err
}

const templateSelect = `
	SELECT id, name, job_title_id, department_id, is_active, created_at
	FROM appraisal_templates`

func (s *Store) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := s.DB.Query(ctx, templateSelect+" ORDER BY name")
	if err != nil {
		return nil, err
	}
	templates, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Template])
	if err != nil {
		return nil, err
	}
	metrics, err := s.templateMetrics(ctx, s.DB, "")
	if err != nil {
		return nil, err
	}
	for i := range templates {
		templates[i].Metrics = metrics[templates[i].ID]
	}
	return templates, nil
}

func (s *Store) GetTemplate(ctx context.Context, q querier.Querier, id string) (Template, error) {
	rows, err := q.Query(ctx, templateSelect+" WHERE id = $1", id)
	if err != nil {
		return Template{}, err
	}
	t, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Template])
	if err != nil {
		return Template{}, notFound(err)
	}
	metrics, err := s.templateMetrics(ctx, q, id)
	if err != nil {
		return Template{}, err
	}
	t.Metrics = metrics[id]
	return t, nil
}

func (s *Store) templateMetrics(ctx context.Context, q querier.Querier, templateID string) (map[string][]TemplateMetric, error) {
	query := `
		SELECT tm.template_id, tm.metric_id, m.code, m.name, tm.weight_percentage
		FROM appraisal_template_metrics tm
		JOIN performance_metrics m ON m.id = tm.metric_id`
	args := []any{}
	if templateID != "" {
		query += " WHERE tm.template_id = $1"
		args = append(args, templateID)
	}
	rows, err := q.Query(ctx, query+" ORDER BY m.code", args...)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[TemplateMetric])
	if err != nil {
		return nil, err
	}
	out := map[string][]TemplateMetric{}
	for _, m := range list {
		out[m.TemplateID] = append(out[m.TemplateID], m)
	}
	return out, nil
}

func (s *Store) CreateTemplate(ctx context.Context, in TemplateInput) (string, error) {
	var id string
	err := s.InTx(ctx, func(q querier.Querier) error {
		if err := q.QueryRow(ctx, `
			INSERT INTO appraisal_templates (name, job_title_id, department_id)
			VALUES ($1, $2, $3)
			RETURNING id
		`, in.Name, in.JobTitleID, in.DepartmentID).Scan(&id); err != nil {
			return err
		}
		for _, m := range in.Metrics {
			if _, err := q.Exec(ctx, `
				INSERT INTO appraisal_template_metrics (template_id, metric_id, weight_percentage)
				VALUES ($1, $2, $3)
			`, id, m.MetricID, m.Weight); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

const cycleSelect = `
	SELECT id, name, cycle_type, start_date, end_date, self_appraisal_deadline, supervisor_appraisal_deadline,
	       final_review_deadline, status, created_at
	FROM appraisal_cycles`

func (s *Store) ListCycles(ctx context.Context, status string) ([]Cycle, error) {
	query := cycleSelect
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY start_date DESC", args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Cycle])
}

func (s *Store) GetCycle(ctx context.Context, q querier.Querier, id string) (Cycle, error) {
	rows, err := q.Query(ctx, cycleSelect+" WHERE id = $1", id)
	if err != nil {
		return Cycle{}, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Cycle])
	return c, notFound(err)
}

func (s *Store) LockCycle(ctx context.Context, q querier.Querier, id string) (Cycle, error) {
	rows, err := q.Query(ctx, cycleSelect+" WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return Cycle{}, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Cycle])
	return c, notFound(err)
}

func (s *Store) CreateCycle(ctx context.Context, c Cycle) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO appraisal_cycles (name, cycle_type, start_date, end_date, self_appraisal_deadline,
			supervisor_appraisal_deadline, final_review_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, c.Name, c.Type, c.StartDate, c.EndDate, c.SelfDeadline, c.SupervisorDeadline, c.FinalReviewDeadline).Scan(&id)
	return id, err
}

func (s *Store) SetCycleStatus(ctx context.Context, q querier.Querier, id, status string) error {
	_, err := q.Exec(ctx, "UPDATE appraisal_cycles SET status = $2 WHERE id = $1", id, status)
	return err
}

// CloseAppraisals moves completed appraisals of a cycle to closed.
func (s *Store) CloseAppraisals(ctx context.Context, q querier.Querier, cycleID string) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE appraisals SET status = 'closed', updated_at = now()
		WHERE cycle_id = $1 AND status = 'completed'
	`, cycleID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Employee(ctx context.Context, q querier.Querier, id string) (EmployeeRef, error) {
	var ref EmployeeRef
	err := q.QueryRow(ctx, `
		SELECT e.id, e.employment_status, e.supervisor_id,
		       (SELECT u.id FROM users u WHERE u.employee_id = e.id AND u.status = 'active' LIMIT 1)
		FROM employees e
		WHERE e.id = $1
	`, id).Scan(&ref.ID, &ref.Status, &ref.SupervisorID, &ref.UserID)
	return ref, notFound(err)
}

const appraisalSelect = `
	SELECT a.id, a.employee_id, e.first_name || ' ' || e.last_name, a.cycle_id, c.status, a.template_id,
	       a.appraiser_id, a.self_assessment_status, a.self_assessment_at, a.supervisor_assessment_status,
	       a.supervisor_assessment_at, a.final_score, a.final_rating, a.overall_comments, a.recommended_action,
	       a.status, a.dispute_reason, a.dispute_resolution, a.approved_by, a.approved_at, a.created_at
	FROM appraisals a
	JOIN employees e ON e.id = a.employee_id
	JOIN appraisal_cycles c ON c.id = a.cycle_id`

// CreateAppraisal inserts the appraisal and one score row per template
// metric carrying the template weight.
func (s *Store) CreateAppraisal(ctx context.Context, q querier.Querier, in AppraisalInput, appraiserID *string, metrics []TemplateMetric) (string, error) {
	var id string
	err := q.QueryRow(ctx, `
		INSERT INTO appraisals (employee_id, cycle_id, template_id, appraiser_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, in.EmployeeID, in.CycleID, in.TemplateID, appraiserID).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	if err != nil {
		return "", err
	}
	for _, m := range metrics {
		if _, err := q.Exec(ctx, `
			INSERT INTO appraisal_scores (appraisal_id, metric_id, weight_percentage)
			VALUES ($1, $2, $3)
		`, id, m.MetricID, m.Weight); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (s *Store) GetAppraisal(ctx context.Context, q querier.Querier, id string) (Appraisal, error) {
	rows, err := q.Query(ctx, appraisalSelect+" WHERE a.id = $1", id)
	if err != nil {
		return Appraisal{}, err
	}
	a, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Appraisal])
	return a, notFound(err)
}

func (s *Store) LockAppraisal(ctx context.Context, q querier.Querier, id string) (Appraisal, error) {
	rows, err := q.Query(ctx, appraisalSelect+" WHERE a.id = $1 FOR UPDATE OF a", id)
	if err != nil {
		return Appraisal{}, err
	}
	a, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Appraisal])
	return a, notFound(err)
}

func (s *Store) ListAppraisals(ctx context.Context, filter AppraisalFilter) ([]Appraisal, error) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.CycleID != "" {
		add("a.cycle_id = $%d", filter.CycleID)
	}
	if filter.EmployeeID != "" {
		add("a.employee_id = $%d", filter.EmployeeID)
	}
	if filter.AppraiserID != "" {
		add("a.appraiser_id = $%d", filter.AppraiserID)
	}
	if filter.Status != "" {
		add("a.status = $%d", filter.Status)
	}
	query := appraisalSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY c.start_date DESC, e.last_name", args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Appraisal])
}

func (s *Store) Scores(ctx context.Context, q querier.Querier, appraisalID string) ([]Score, error) {
	rows, err := q.Query(ctx, `
		SELECT sc.id, sc.appraisal_id, sc.metric_id, m.code, m.name, sc.weight_percentage, sc.self_rating,
		       sc.self_comments, sc.supervisor_rating, sc.supervisor_comments, sc.agreed_rating, sc.weighted_score
		FROM appraisal_scores sc
		JOIN performance_metrics m ON m.id = sc.metric_id
		WHERE sc.appraisal_id = $1
		ORDER BY m.code
	`, appraisalID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Score])
}

func (s *Store) SaveScores(ctx context.Context, q querier.Querier, scores []Score) error {
	for _, sc := range scores {
		if _, err := q.Exec(ctx, `
			UPDATE appraisal_scores
			SET self_rating = $2, self_comments = $3, supervisor_rating = $4, supervisor_comments = $5,
			    agreed_rating = $6, weighted_score = $7
			WHERE id = $1
		`, sc.ID, sc.SelfRating, sc.SelfComments, sc.SupervisorRating, sc.SupervisorComments,
			sc.AgreedRating, sc.WeightedScore); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveAppraisal(ctx context.Context, q querier.Querier, a Appraisal) error {
	_, err := q.Exec(ctx, `
		UPDATE appraisals
		SET self_assessment_status = $2, self_assessment_at = $3, supervisor_assessment_status = $4,
		    supervisor_assessment_at = $5, final_score = $6, final_rating = $7, overall_comments = $8,
		    recommended_action = $9, status = $10, dispute_reason = $11, dispute_resolution = $12,
		    approved_by = $13, approved_at = $14, updated_at = now()
		WHERE id = $1
	`, a.ID, a.SelfStatus, a.SelfAt, a.SupervisorStatus, a.SupervisorAt, a.FinalScore, a.FinalRating,
		a.OverallComments, a.RecommendedAction, a.Status, a.DisputeReason, a.DisputeResolution, a.ApprovedBy,
		a.ApprovedAt)
	return err
}

// CycleResults returns status, final rating and final score for every
// appraisal in the cycle.
func (s *Store) CycleResults(ctx context.Context, cycleID string) ([]string, []*string, []decimal.NullDecimal, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT status, final_rating, final_score FROM appraisals WHERE cycle_id = $1
	`, cycleID)
	if err != nil {
		return nil, nil, nil, err
	}
	defer rows.Close()
	var statuses []string
	var ratings []*string
	var scores []decimal.NullDecimal
	for rows.Next() {
		var status string
		var rating *string
		var score decimal.NullDecimal
		if err := rows.Scan(&status, &rating, &score); err != nil {
			return nil, nil, nil, err
		}
		statuses = append(statuses, status)
		ratings = append(ratings, rating)
		scores = append(scores, score)
	}
	return statuses, ratings, scores, rows.Err()
}
