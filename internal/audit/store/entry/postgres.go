package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"complyd/internal/audit"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

// Postgres persists audit entries in PostgreSQL. The
// audit_entries_tenant_sequence_key unique constraint is the authority on
// sequence allocation; a violation surfaces as sentinel.ErrConflict so the
// service can retry against the new chain head.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const uniqueViolation = "23505"

func (p *Postgres) Insert(ctx context.Context, e *audit.Entry) error {
	query := `
		INSERT INTO audit_entries
			(id, tenant_id, sequence, event_type, payload, actor, recorded_at, prev_checksum, checksum)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := p.db.ExecContext(ctx, query,
		e.ID.String(), e.TenantID.String(), e.Sequence, string(e.EventType),
		[]byte(e.Payload), e.Actor, e.RecordedAt, e.PrevChecksum, e.Checksum)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (p *Postgres) Latest(ctx context.Context, tenantID id.TenantID) (*audit.Entry, error) {
	query := `
		SELECT id, tenant_id, sequence, event_type, payload, actor, recorded_at, prev_checksum, checksum
		FROM audit_entries
		WHERE tenant_id = $1
		ORDER BY sequence DESC
		LIMIT 1
	`
	e, err := scanEntry(p.db.QueryRowContext(ctx, query, tenantID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load chain head: %w", err)
	}
	return e, nil
}

func (p *Postgres) List(ctx context.Context, tenantID id.TenantID, filter audit.ListFilter) ([]*audit.Entry, error) {
	query := `
		SELECT id, tenant_id, sequence, event_type, payload, actor, recorded_at, prev_checksum, checksum
		FROM audit_entries
		WHERE tenant_id = $1
		  AND ($2 = '' OR event_type = $2)
		ORDER BY sequence ASC
		OFFSET $3
	`
	args := []any{tenantID.String(), string(filter.EventType), filter.Offset}
	if filter.Limit > 0 {
		query += " LIMIT $4"
		args = append(args, filter.Limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func (p *Postgres) Count(ctx context.Context, tenantID id.TenantID) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_entries WHERE tenant_id = $1`, tenantID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*audit.Entry, error) {
	var (
		e         audit.Entry
		entryID   string
		tenantID  string
		eventType string
	)
	if err := row.Scan(&entryID, &tenantID, &e.Sequence, &eventType,
		(*[]byte)(&e.Payload), &e.Actor, &e.RecordedAt, &e.PrevChecksum, &e.Checksum); err != nil {
		return nil, err
	}

	var err error
	if e.ID, err = id.ParseEntryID(entryID); err != nil {
		return nil, err
	}
	if e.TenantID, err = id.ParseTenantID(tenantID); err != nil {
		return nil, err
	}
	e.EventType = audit.EventType(eventType)
	e.RecordedAt = e.RecordedAt.UTC()
	return &e, nil
}
