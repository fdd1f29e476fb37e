package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"complyd/internal/audit"
	"complyd/internal/webhook"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

// Postgres persists deliveries in PostgreSQL. Attempt arbitration rides on
// a conditional UPDATE matching the expected (status, attempt_count); the
// loser of a race affects zero rows.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const uniqueViolation = "23505"

const deliveryColumns = `id, config_id, tenant_id, event_key, event_type, payload,
	status, attempt_count, next_attempt_at, last_error, created_at, delivered_at`

func (p *Postgres) Insert(ctx context.Context, d *webhook.Delivery) error {
	query := `
		INSERT INTO webhook_deliveries
			(id, config_id, tenant_id, event_key, event_type, payload,
			 status, attempt_count, next_attempt_at, last_error, created_at, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := p.db.ExecContext(ctx, query,
		d.ID.String(), d.ConfigID.String(), d.TenantID.String(), d.EventKey, string(d.EventType),
		d.Payload, string(d.Status), d.AttemptCount, d.NextAttemptAt, d.LastError, d.CreatedAt, d.DeliveredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (p *Postgres) FindByID(ctx context.Context, tenantID id.TenantID, deliveryID id.DeliveryID) (*webhook.Delivery, error) {
	query := fmt.Sprintf(`SELECT %s FROM webhook_deliveries WHERE tenant_id = $1 AND id = $2`, deliveryColumns)
	d, err := scanDelivery(p.db.QueryRowContext(ctx, query, tenantID.String(), deliveryID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load delivery: %w", err)
	}
	return d, nil
}

func (p *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID, status webhook.DeliveryStatus, limit int) ([]*webhook.Delivery, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM webhook_deliveries
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, deliveryColumns)
	if limit <= 0 {
		limit = 100
	}
	return p.query(ctx, query, tenantID.String(), string(status), limit)
}

func (p *Postgres) ListDue(ctx context.Context, now time.Time, limit int) ([]*webhook.Delivery, error) {
	// Matches the partial index on non-terminal deliveries.
	query := fmt.Sprintf(`
		SELECT %s FROM webhook_deliveries
		WHERE status IN ('pending', 'failed_retrying') AND next_attempt_at <= $1
		ORDER BY next_attempt_at ASC
		LIMIT $2
	`, deliveryColumns)
	if limit <= 0 {
		limit = 100
	}
	return p.query(ctx, query, now.UTC(), limit)
}

func (p *Postgres) query(ctx context.Context, query string, args ...any) ([]*webhook.Delivery, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*webhook.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return deliveries, nil
}

func (p *Postgres) RecordAttempt(ctx context.Context, d *webhook.Delivery, update webhook.AttemptUpdate) error {
	query := `
		UPDATE webhook_deliveries
		SET status = $1, attempt_count = $2, next_attempt_at = $3, last_error = $4, delivered_at = $5
		WHERE id = $6 AND status = $7 AND attempt_count = $8
	`
	res, err := p.db.ExecContext(ctx, query,
		string(update.Status), update.AttemptCount, update.NextAttemptAt, update.LastError, update.DeliveredAt,
		d.ID.String(), string(d.Status), d.AttemptCount)
	if err != nil {
		return fmt.Errorf("record delivery attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record delivery attempt: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*webhook.Delivery, error) {
	var (
		d           webhook.Delivery
		deliveryID  string
		configID    string
		tenantID    string
		eventType   string
		status      string
		deliveredAt sql.NullTime
	)
	if err := row.Scan(&deliveryID, &configID, &tenantID, &d.EventKey, &eventType, &d.Payload,
		&status, &d.AttemptCount, &d.NextAttemptAt, &d.LastError, &d.CreatedAt, &deliveredAt); err != nil {
		return nil, err
	}

	var err error
	if d.ID, err = id.ParseDeliveryID(deliveryID); err != nil {
		return nil, err
	}
	if d.ConfigID, err = id.ParseWebhookConfigID(configID); err != nil {
		return nil, err
	}
	if d.TenantID, err = id.ParseTenantID(tenantID); err != nil {
		return nil, err
	}
	d.EventType = audit.EventType(eventType)
	d.Status = webhook.DeliveryStatus(status)
	d.NextAttemptAt = d.NextAttemptAt.UTC()
	d.CreatedAt = d.CreatedAt.UTC()
	if deliveredAt.Valid {
		t := deliveredAt.Time.UTC()
		d.DeliveredAt = &t
	}
	return &d, nil
}
