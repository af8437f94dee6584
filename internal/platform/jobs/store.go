package jobs

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) Create(ctx context.Context, jobType, requestedBy string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO job_runs (job_type, status, requested_by)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id
	`, jobType, StatusQueued, requestedBy).Scan(&id)
	return id, err
}

func (s *Store) MarkRunning(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, `UPDATE job_runs SET status = $1, started_at = now() WHERE id = $2`, StatusRunning, id)
	return err
}

func (s *Store) Finish(ctx context.Context, id, status string, result []byte, errText string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE job_runs
		SET status = $1, result_json = $2, error = NULLIF($3, ''), completed_at = now()
		WHERE id = $4
	`, status, result, errText, id)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	var run Run
	var requestedBy, errText *string
	err := s.DB.QueryRow(ctx, `
		SELECT id, job_type, status, requested_by, result_json, error, created_at, started_at, completed_at
		FROM job_runs WHERE id = $1
	`, id).Scan(&run.ID, &run.Type, &run.Status, &requestedBy, &run.Result, &errText,
		&run.CreatedAt, &run.StartedAt, &run.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	if requestedBy != nil {
		run.RequestedBy = *requestedBy
	}
	if errText != nil {
		run.Error = *errText
	}
	return run, nil
}
