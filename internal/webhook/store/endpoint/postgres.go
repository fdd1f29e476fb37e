package endpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"complyd/internal/audit"
	"complyd/internal/webhook"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

// Postgres persists webhook configs in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const configColumns = "id, tenant_id, target_url, secret, event_types, is_active, created_at, updated_at"

func (p *Postgres) Create(ctx context.Context, c *webhook.Config) error {
	query := `
		INSERT INTO webhook_configs (id, tenant_id, target_url, secret, event_types, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := p.db.ExecContext(ctx, query,
		c.ID.String(), c.TenantID.String(), c.TargetURL, c.Secret,
		eventTypesToArray(c.EventTypes), c.IsActive, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook config: %w", err)
	}
	return nil
}

func (p *Postgres) FindByID(ctx context.Context, tenantID id.TenantID, configID id.WebhookConfigID) (*webhook.Config, error) {
	query := fmt.Sprintf(`SELECT %s FROM webhook_configs WHERE tenant_id = $1 AND id = $2`, configColumns)
	c, err := scanConfig(p.db.QueryRowContext(ctx, query, tenantID.String(), configID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load webhook config: %w", err)
	}
	return c, nil
}

func (p *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*webhook.Config, error) {
	return p.list(ctx, tenantID, false)
}

func (p *Postgres) ListActiveByTenant(ctx context.Context, tenantID id.TenantID) ([]*webhook.Config, error) {
	return p.list(ctx, tenantID, true)
}

func (p *Postgres) list(ctx context.Context, tenantID id.TenantID, activeOnly bool) ([]*webhook.Config, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM webhook_configs
		WHERE tenant_id = $1 AND ($2 = false OR is_active)
		ORDER BY created_at DESC
	`, configColumns)

	rows, err := p.db.QueryContext(ctx, query, tenantID.String(), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list webhook configs: %w", err)
	}
	defer rows.Close()

	var configs []*webhook.Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook configs: %w", err)
	}
	return configs, nil
}

func (p *Postgres) Deactivate(ctx context.Context, tenantID id.TenantID, configID id.WebhookConfigID, now time.Time) (*webhook.Config, error) {
	query := fmt.Sprintf(`
		UPDATE webhook_configs
		SET is_active = false, updated_at = $3
		WHERE tenant_id = $1 AND id = $2 AND is_active
		RETURNING %s
	`, configColumns)

	c, err := scanConfig(p.db.QueryRowContext(ctx, query, tenantID.String(), configID.String(), now.UTC()))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deactivate webhook config: %w", err)
	}

	// Distinguish missing from already inactive.
	if _, findErr := p.FindByID(ctx, tenantID, configID); findErr != nil {
		return nil, findErr
	}
	return nil, sentinel.ErrInvalidState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (*webhook.Config, error) {
	var (
		c          webhook.Config
		configID   string
		tenantID   string
		eventTypes pq.StringArray
	)
	if err := row.Scan(&configID, &tenantID, &c.TargetURL, &c.Secret,
		&eventTypes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if c.ID, err = id.ParseWebhookConfigID(configID); err != nil {
		return nil, err
	}
	if c.TenantID, err = id.ParseTenantID(tenantID); err != nil {
		return nil, err
	}
	c.EventTypes = make([]audit.EventType, 0, len(eventTypes))
	for _, et := range eventTypes {
		c.EventTypes = append(c.EventTypes, audit.EventType(et))
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func eventTypesToArray(types []audit.EventType) any {
	ss := make([]string, 0, len(types))
	for _, et := range types {
		ss = append(ss, string(et))
	}
	return pq.Array(ss)
}
