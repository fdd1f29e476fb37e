package tenant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"complyd/internal/audit"
	tenantmetrics "complyd/internal/tenant/metrics"
	"complyd/internal/tenant/secrets"
	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/platform/sentinel"
	"complyd/pkg/requestcontext"
)

// Recorder appends tenant lifecycle events to the audit chain.
type Recorder interface {
	Append(ctx context.Context, tenantID id.TenantID, payload audit.Payload) (*audit.Entry, error)
}

// Service orchestrates tenant lifecycle and API credential management.
type Service struct {
	store    Store
	logger   *slog.Logger
	metrics  *tenantmetrics.Metrics
	recorder Recorder
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a tenant and issues its API key. The cleartext key is
// returned exactly once; only the bcrypt hash is stored.
func (s *Service) Create(ctx context.Context, name string) (*Tenant, string, error) {
	t, err := NewTenant(id.NewTenantID(), name, requestcontext.Now(ctx))
	if err != nil {
		return nil, "", err
	}

	apiKey, err := secrets.Generate()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate api key")
	}
	if t.APIKeyHash, err = secrets.Hash(apiKey); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash api key")
	}

	if err := s.store.Create(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "tenant name must be unique")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}

	s.record(ctx, t, audit.EventTenantCreated)
	s.incrementCreated()
	s.log(ctx, "tenant created", "tenant_id", t.ID, "name", t.Name)
	return t, apiKey, nil
}

// Get returns a tenant by ID.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID) (*Tenant, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	t, err := s.store.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return t, nil
}

// GetByName resolves a tenant by name, case-insensitively.
func (s *Service) GetByName(ctx context.Context, name string) (*Tenant, error) {
	if NameKey(name) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant name is required")
	}
	t, err := s.store.FindByName(ctx, name)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return t, nil
}

// List returns all tenants.
func (s *Service) List(ctx context.Context) ([]*Tenant, error) {
	tenants, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return tenants, nil
}

// Deactivate suspends a tenant. From that moment the tenant cannot obtain
// tokens, record events or receive webhook deliveries.
func (s *Service) Deactivate(ctx context.Context, tenantID id.TenantID) (*Tenant, error) {
	return s.transition(ctx, tenantID, (*Tenant).Deactivate, audit.EventTenantDeactivated)
}

// Reactivate restores a suspended tenant.
func (s *Service) Reactivate(ctx context.Context, tenantID id.TenantID) (*Tenant, error) {
	return s.transition(ctx, tenantID, (*Tenant).Reactivate, audit.EventTenantReactivated)
}

func (s *Service) transition(ctx context.Context, tenantID id.TenantID, apply func(*Tenant, time.Time) error, event audit.EventType) (*Tenant, error) {
	t, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := apply(t, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, t); err != nil {
		return nil, wrapStoreErr(err)
	}

	s.record(ctx, t, event)
	s.incrementTransition(string(t.Status))
	s.log(ctx, "tenant status changed", "tenant_id", t.ID, "status", t.Status)
	return t, nil
}

// RotateAPIKey issues a fresh API key, invalidating the previous one. The
// cleartext key is returned exactly once.
func (s *Service) RotateAPIKey(ctx context.Context, tenantID id.TenantID) (string, error) {
	t, err := s.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if !t.IsActive() {
		return "", dErrors.New(dErrors.CodeConflict, "tenant is inactive")
	}

	apiKey, err := secrets.Generate()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate api key")
	}
	if t.APIKeyHash, err = secrets.Hash(apiKey); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash api key")
	}
	t.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, t); err != nil {
		return "", wrapStoreErr(err)
	}

	s.incrementKeyRotated()
	s.log(ctx, "tenant api key rotated", "tenant_id", t.ID)
	return apiKey, nil
}

// VerifyAPIKey authenticates a tenant credential. Inactive tenants fail
// authentication regardless of the key, enforcing the suspension boundary at
// token issuance.
func (s *Service) VerifyAPIKey(ctx context.Context, tenantID id.TenantID, apiKey string) (*Tenant, error) {
	t, err := s.store.FindByID(ctx, tenantID)
	if err != nil {
		// Do not leak which part of the credential was wrong.
		s.incrementAuthFailure()
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := secrets.Verify(apiKey, t.APIKeyHash); err != nil {
		s.incrementAuthFailure()
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if !t.IsActive() {
		s.incrementAuthFailure()
		return nil, dErrors.New(dErrors.CodeForbidden, "tenant is deactivated")
	}
	return t, nil
}

// Active reports whether a tenant exists and is active. Used as the dispatch
// gate by the webhook and event services.
func (s *Service) Active(ctx context.Context, tenantID id.TenantID) (bool, error) {
	t, err := s.store.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return t.IsActive(), nil
}

func (s *Service) record(ctx context.Context, t *Tenant, event audit.EventType) {
	if s.recorder == nil {
		return
	}
	payload := audit.TenantLifecycle{Event: event, TenantName: t.Name, Status: string(t.Status)}
	if _, err := s.recorder.Append(ctx, t.ID, payload); err != nil {
		s.log(ctx, "failed to record tenant lifecycle in audit chain",
			"tenant_id", t.ID, "event_type", event, "error", err)
	}
}

func wrapStoreErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "tenant store failure")
}

func (s *Service) log(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service) incrementCreated() {
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
}

func (s *Service) incrementTransition(status string) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(status)
	}
}

func (s *Service) incrementKeyRotated() {
	if s.metrics != nil {
		s.metrics.IncrementKeyRotated()
	}
}

func (s *Service) incrementAuthFailure() {
	if s.metrics != nil {
		s.metrics.IncrementAuthFailure()
	}
}
