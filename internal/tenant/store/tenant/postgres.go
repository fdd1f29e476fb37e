package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"complyd/internal/tenant"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

// Postgres persists tenants in PostgreSQL. Case-insensitive name uniqueness
// rides on the name_key unique constraint.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const uniqueViolation = "23505"

const tenantColumns = "id, name, status, api_key_hash, created_at, updated_at"

func (p *Postgres) Create(ctx context.Context, t *tenant.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, name_key, status, api_key_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := p.db.ExecContext(ctx, query,
		t.ID.String(), t.Name, tenant.NameKey(t.Name), string(t.Status),
		t.APIKeyHash, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (p *Postgres) FindByID(ctx context.Context, tenantID id.TenantID) (*tenant.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE id = $1`, tenantColumns)
	return p.findOne(ctx, query, tenantID.String())
}

func (p *Postgres) FindByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE name_key = $1`, tenantColumns)
	return p.findOne(ctx, query, tenant.NameKey(name))
}

func (p *Postgres) findOne(ctx context.Context, query string, arg any) (*tenant.Tenant, error) {
	t, err := scanTenant(p.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	return t, nil
}

func (p *Postgres) Update(ctx context.Context, t *tenant.Tenant) error {
	query := `
		UPDATE tenants
		SET status = $2, api_key_hash = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := p.db.ExecContext(ctx, query,
		t.ID.String(), string(t.Status), t.APIKeyHash, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]*tenant.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants ORDER BY created_at ASC`, tenantColumns)
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return tenants, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*tenant.Tenant, error) {
	var (
		t        tenant.Tenant
		tenantID string
		status   string
	)
	if err := row.Scan(&tenantID, &t.Name, &status, &t.APIKeyHash, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if t.ID, err = id.ParseTenantID(tenantID); err != nil {
		return nil, err
	}
	t.Status = tenant.Status(status)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}
