package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"schoolerp/internal/platform/querier"
)

const maxAttempts = 10

// Outbox appends events to outbox_events using the caller's transaction so an
// event exists only if the business change committed.
type Outbox struct {
	prefix string
}

func NewOutbox(prefix string) *Outbox {
	return &Outbox{prefix: prefix}
}

func (o *Outbox) Add(ctx context.Context, q querier.Querier, eventType, key string, payload any) error {
	if o == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO outbox_events (topic, event_key, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, Topic(o.prefix, eventType), key, eventType, body)
	return err
}

// Relay publishes pending outbox rows. Rows are claimed with SKIP LOCKED so
// several replicas can poll at once.
type Relay struct {
	DB        querier.TxBeginner
	Publisher Publisher
	Batch     int
}

type RelayResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (r *Relay) Poll(ctx context.Context) (RelayResult, error) {
	var result RelayResult
	batch := r.Batch
	if batch <= 0 {
		batch = 50
	}
	err := querier.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, topic, event_key, event_type, payload, attempts, created_at
			FROM outbox_events
			WHERE status = 'pending' AND attempts < $1
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, maxAttempts, batch)
		if err != nil {
			return err
		}
		pending, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
			var e Event
			err := row.Scan(&e.ID, &e.Topic, &e.Key, &e.Type, &e.Payload, &e.Attempts, &e.CreatedAt)
			return e, err
		})
		if err != nil {
			return err
		}

		for _, event := range pending {
			if pubErr := r.Publisher.Publish(ctx, event); pubErr != nil {
				slog.Warn("outbox publish failed", "eventId", event.ID, "topic", event.Topic, "err", pubErr)
				result.Failed++
				if _, err := tx.Exec(ctx, `
					UPDATE outbox_events SET attempts = attempts + 1, last_error = $1
					WHERE id = $2
				`, pubErr.Error(), event.ID); err != nil {
					return err
				}
				continue
			}
			result.Sent++
			if _, err := tx.Exec(ctx, `
				UPDATE outbox_events SET status = 'sent', attempts = attempts + 1, sent_at = now()
				WHERE id = $1
			`, event.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return result, err
}
