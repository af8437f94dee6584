package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"schoolerp/internal/platform/email"
	"schoolerp/internal/platform/querier"
)

const (
	TypeLeaveSubmitted     = "leave_submitted"
	TypeLeaveApproved      = "leave_approved"
	TypeLeaveRejected      = "leave_rejected"
	TypeLeaveCancelled     = "leave_cancelled"
	TypePayslipPublished   = "payslip_published"
	TypeAppraisalFinalized = "appraisal_finalized"
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Service stores in-app notifications and optionally mirrors them by email.
type Service struct {
	DB          querier.Querier
	Mailer      email.Mailer
	EmailCopies bool
}

func New(db querier.Querier, mailer email.Mailer, emailCopies bool) *Service {
	return &Service{DB: db, Mailer: mailer, EmailCopies: emailCopies}
}

// Notify records a notification for userID. Failures are logged; a missing
// notification never fails the business operation that triggered it.
func (s *Service) Notify(ctx context.Context, userID, ntype, title, body string) {
	if s == nil || userID == "" {
		return
	}
	var addr string
	err := s.DB.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO notifications (user_id, type, title, body)
			VALUES ($1, $2, $3, $4)
			RETURNING user_id
		)
		SELECT u.email FROM users u JOIN inserted i ON i.user_id = u.id
	`, userID, ntype, title, body).Scan(&addr)
	if err != nil {
		slog.Warn("notification insert failed", "userId", userID, "type", ntype, "err", err)
		return
	}
	if !s.EmailCopies || s.Mailer == nil || addr == "" {
		return
	}
	if err := s.Mailer.Send(ctx, email.Message{To: addr, Subject: title, Body: body}); err != nil {
		slog.Warn("notification email send failed", "userId", userID, "err", err)
	}
}

// NotifyEmployee resolves the user account linked to employeeID.
func (s *Service) NotifyEmployee(ctx context.Context, employeeID, ntype, title, body string) {
	if s == nil || employeeID == "" {
		return
	}
	var userID string
	err := s.DB.QueryRow(ctx, "SELECT id FROM users WHERE employee_id = $1 LIMIT 1", employeeID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return
	}
	if err != nil {
		slog.Warn("notification user lookup failed", "employeeId", employeeID, "err", err)
		return
	}
	s.Notify(ctx, userID, ntype, title, body)
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, type, title, body, read_at, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Notification])
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND read_at IS NULL", userID).Scan(&n)
	return n, err
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := s.DB.Exec(ctx, "UPDATE notifications SET read_at = now() WHERE user_id = $1 AND read_at IS NULL", userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
