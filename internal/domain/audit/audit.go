package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"schoolerp/internal/platform/querier"
	"schoolerp/internal/requestctx"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    *string         `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// Entry is one mutation to record. Request id and client ip default to the
// values carried on the context.
type Entry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Before     any
	After      any
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorUser  string
}

type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, e Entry) error {
	if s == nil {
		return nil
	}
	return s.RecordWith(ctx, s.DB, e)
}

// RecordWith writes the entry through q so it commits with the caller's
// transaction.
func (s *Service) RecordWith(ctx context.Context, q querier.Querier, e Entry) error {
	if s == nil {
		return nil
	}
	beforeJSON, err := marshalOptional(e.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalOptional(e.After)
	if err != nil {
		return err
	}
	var actor *string
	if e.ActorID != "" {
		actor = &e.ActorID
	}
	_, err = q.Exec(ctx, `
		INSERT INTO audit_logs (actor_user_id, action, entity_type, entity_id, before_json, after_json, request_id, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, actor, e.Action, e.EntityType, e.EntityID, beforeJSON, afterJSON,
		requestctx.GetRequestID(ctx), requestctx.GetClientIP(ctx))
	return err
}

func marshalOptional(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	selectCols := "SELECT id, actor_user_id, action, entity_type, entity_id, request_id, ip, created_at"
	if includeDetails {
		selectCols += ", before_json, after_json"
	}
	query, args := buildBaseQuery(selectCols, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var evt Event
		dest := []any{&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		if includeDetails {
			dest = append(dest, &evt.Before, &evt.After)
		}
		return evt, row.Scan(dest...)
	})
}

func buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_logs WHERE true"
	var args []any
	add := func(clause string, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}
	add("action = $%d", filter.Action)
	add("entity_type = $%d", filter.EntityType)
	add("entity_id = $%d", filter.EntityID)
	add("actor_user_id::text = $%d", filter.ActorUser)
	return query, args
}
