package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"clinicore/internal/audit"
	"clinicore/pkg/domain"
)

// Store persists audit events append-only. Rows are never updated or deleted
// by the kernel; retention is an operational concern.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, tenant_id, actor_id, trace_id, event_type, severity, result, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.New(),
		event.Context.TenantID.String(),
		event.Context.ActorID.String(),
		event.Context.TraceID,
		string(event.Type),
		string(event.Severity),
		string(event.Result),
		payload,
		event.Context.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListByTenant returns a tenant's events oldest-first.
func (s *Store) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]audit.Event, error) {
	query := `
		SELECT tenant_id, actor_id, trace_id, event_type, severity, result, payload, occurred_at
		FROM audit_events
		WHERE tenant_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                           audit.Event
			tenantRaw, actorRaw         string
			eventType, severity, result string
			payload                     []byte
		)
		if err := rows.Scan(&tenantRaw, &actorRaw, &e.Context.TraceID, &eventType, &severity, &result, &payload, &e.Context.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if e.Context.TenantID, err = domain.ParseTenantID(tenantRaw); err != nil {
			return nil, fmt.Errorf("scan audit tenant: %w", err)
		}
		if actorID, parseErr := domain.ParseClinicianID(actorRaw); parseErr == nil {
			e.Context.ActorID = actorID
		}
		e.Type = audit.EventType(eventType)
		e.Severity = audit.Severity(severity)
		e.Result = audit.Result(result)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal audit payload: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
