package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/better-wallet/seedless/internal/securestore"
)

// SecureItemRepository persists sealed secure store items. Values arrive
// already encrypted; the table never holds plaintext secrets.
type SecureItemRepository struct {
	db        DBTX
	namespace string
}

// NewSecureItemRepository creates a repository whose items live under namespace
func NewSecureItemRepository(store *Store, namespace string) *SecureItemRepository {
	return newSecureItemRepository(store.pool, namespace)
}

func newSecureItemRepository(db DBTX, namespace string) *SecureItemRepository {
	return &SecureItemRepository{db: db, namespace: namespace}
}

// Get retrieves the item stored under service
func (r *SecureItemRepository) Get(ctx context.Context, service string) ([]byte, error) {
	query := `
		SELECT value
		FROM secure_items
		WHERE namespace = $1 AND service = $2
	`

	var value []byte
	err := r.db.QueryRow(ctx, query, r.namespace, service).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, securestore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secure item: %w", err)
	}

	return value, nil
}

// Put inserts or replaces the item stored under service
func (r *SecureItemRepository) Put(ctx context.Context, service string, value []byte) error {
	query := `
		INSERT INTO secure_items (namespace, service, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, service)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, r.namespace, service, value); err != nil {
		return fmt.Errorf("failed to put secure item: %w", err)
	}

	return nil
}

// Delete removes the item stored under service; a missing item is not an error
func (r *SecureItemRepository) Delete(ctx context.Context, service string) error {
	query := `
		DELETE FROM secure_items
		WHERE namespace = $1 AND service = $2
	`

	if _, err := r.db.Exec(ctx, query, r.namespace, service); err != nil {
		return fmt.Errorf("failed to delete secure item: %w", err)
	}

	return nil
}

// Services lists the service names stored in the namespace
func (r *SecureItemRepository) Services(ctx context.Context) ([]string, error) {
	query := `
		SELECT service
		FROM secure_items
		WHERE namespace = $1
		ORDER BY service
	`

	rows, err := r.db.Query(ctx, query, r.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list secure items: %w", err)
	}
	defer rows.Close()

	var services []string
	for rows.Next() {
		var service string
		if err := rows.Scan(&service); err != nil {
			return nil, fmt.Errorf("failed to scan secure item: %w", err)
		}
		services = append(services, service)
	}

	return services, rows.Err()
}

var _ securestore.Backend = (*SecureItemRepository)(nil)
