package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/better-wallet/seedless/pkg/types"
)

// AuditRepository appends to and reads the audit_events table
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{db: store.pool}
}

func newAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts event and fills in its ID and CreatedAt
func (r *AuditRepository) Create(ctx context.Context, event *types.AuditEvent) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(event.Metadata); err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			wallet_id, action, resource_type, resource_id, outcome,
			error_code, tx_hash, metadata, request_id, client_ip, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		event.WalletID,
		event.Action,
		event.ResourceType,
		event.ResourceID,
		event.Outcome,
		event.ErrorCode,
		event.TxHash,
		metadata,
		event.RequestID,
		event.ClientIP,
		event.UserAgent,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}

	return nil
}

// Recent returns the newest events first
func (r *AuditRepository) Recent(ctx context.Context, q types.AuditQuery) ([]*types.AuditEvent, error) {
	query := `
		SELECT id, wallet_id, action, resource_type, resource_id, outcome,
		       error_code, tx_hash, metadata, request_id, client_ip, user_agent, created_at
		FROM audit_events
		WHERE 1=1
	`

	args := make([]interface{}, 0, 3)
	if q.WalletID != "" {
		args = append(args, q.WalletID)
		query += fmt.Sprintf(" AND wallet_id = $%d", len(args))
	}
	if q.Action != "" {
		args = append(args, q.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}

	query += " ORDER BY created_at DESC, id DESC"

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*types.AuditEvent
	for rows.Next() {
		var (
			event    types.AuditEvent
			metadata []byte
		)
		err := rows.Scan(
			&event.ID,
			&event.WalletID,
			&event.Action,
			&event.ResourceType,
			&event.ResourceID,
			&event.Outcome,
			&event.ErrorCode,
			&event.TxHash,
			&metadata,
			&event.RequestID,
			&event.ClientIP,
			&event.UserAgent,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}
