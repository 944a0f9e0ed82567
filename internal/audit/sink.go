// Package audit persists engine audit events.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fitclass/internal/events"
)

// Sink writes each event as one row of audit_events with its details as JSON.
type Sink struct {
	db *sqlx.DB
}

func NewSink(db *sqlx.DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) Record(ctx context.Context, ev events.AuditEvent) error {
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, version, action, actor_id, target_type, target_id, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = s.db.ExecContext(ctx, query,
		ev.ID,
		ev.Version,
		string(ev.Action),
		ev.ActorID,
		ev.TargetType,
		ev.TargetID,
		details,
		ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event %s: %w", ev.ID, err)
	}
	return nil
}
