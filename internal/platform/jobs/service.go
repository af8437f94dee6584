package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	ErrQueueFull = errors.New("job queue full")
	ErrNotFound  = errors.New("job run not found")
)

// Func is the unit of background work. The returned value is stored as the
// run result in JSON form.
type Func func(ctx context.Context) (any, error)

type Run struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	RequestedBy string          `json:"requestedBy,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

type RunStore interface {
	Create(ctx context.Context, jobType, requestedBy string) (string, error)
	MarkRunning(ctx context.Context, id string) error
	Finish(ctx context.Context, id, status string, result []byte, errText string) error
	Get(ctx context.Context, id string) (Run, error)
}

type job struct {
	id   string
	kind string
	run  Func
}

type schedule struct {
	kind     string
	interval time.Duration
	run      Func
}

// Service executes queued jobs on a single worker and fires interval
// schedules. Every run is tracked in the RunStore.
type Service struct {
	store     RunStore
	queue     chan job
	schedules []schedule
	wg        sync.WaitGroup
}

func New(store RunStore) *Service {
	return &Service{
		store: store,
		queue: make(chan job, 128),
	}
}

// Every registers a periodic job. It must be called before Start.
func (s *Service) Every(kind string, interval time.Duration, run Func) {
	if interval <= 0 {
		return
	}
	s.schedules = append(s.schedules, schedule{kind: kind, interval: interval, run: run})
}

func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
	for _, sch := range s.schedules {
		s.wg.Add(1)
		go func(sch schedule) {
			defer s.wg.Done()
			s.tick(ctx, sch)
		}(sch)
	}
}

// Wait blocks until the worker and schedulers have returned after the Start
// context is cancelled.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Enqueue records a queued run and hands it to the worker.
func (s *Service) Enqueue(ctx context.Context, kind, requestedBy string, run Func) (string, error) {
	id, err := s.store.Create(ctx, kind, requestedBy)
	if err != nil {
		return "", fmt.Errorf("create job run: %w", err)
	}
	select {
	case s.queue <- job{id: id, kind: kind, run: run}:
		return id, nil
	default:
		s.finish(ctx, id, StatusFailed, nil, ErrQueueFull)
		slog.Warn("job queue full", "jobType", kind, "runId", id)
		return "", ErrQueueFull
	}
}

// RunNow executes run synchronously while still recording it.
func (s *Service) RunNow(ctx context.Context, kind, requestedBy string, run Func) (string, any, error) {
	id, err := s.store.Create(ctx, kind, requestedBy)
	if err != nil {
		return "", nil, fmt.Errorf("create job run: %w", err)
	}
	result, err := s.execute(ctx, job{id: id, kind: kind, run: run})
	return id, result, err
}

func (s *Service) Get(ctx context.Context, id string) (Run, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.execute(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.kind, "runId", j.id, "err", err)
			}
		}
	}
}

func (s *Service) tick(ctx context.Context, sch schedule) {
	ticker := time.NewTicker(sch.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Enqueue(ctx, sch.kind, "scheduler", sch.run); err != nil {
				slog.Warn("scheduled job not queued", "jobType", sch.kind, "err", err)
			}
		}
	}
}

func (s *Service) execute(ctx context.Context, j job) (result any, err error) {
	if markErr := s.store.MarkRunning(ctx, j.id); markErr != nil {
		slog.Warn("job run mark running failed", "runId", j.id, "err", markErr)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
			s.finish(ctx, j.id, StatusFailed, nil, err)
		}
	}()

	result, err = j.run(ctx)
	if err != nil {
		s.finish(ctx, j.id, StatusFailed, result, err)
		return result, err
	}
	s.finish(ctx, j.id, StatusCompleted, result, nil)
	return result, nil
}

func (s *Service) finish(ctx context.Context, id, status string, result any, runErr error) {
	payload := []byte("{}")
	if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			slog.Warn("job result marshal failed", "runId", id, "err", err)
		} else {
			payload = encoded
		}
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	// The run row must be closed even when the job context was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := s.store.Finish(ctx, id, status, payload, errText); err != nil {
		slog.Warn("job run update failed", "runId", id, "err", err)
	}
}
