//go:build integration

package endpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"complyd/internal/audit"
	"complyd/internal/webhook"
	"complyd/internal/webhook/store/endpoint"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
	"complyd/pkg/testutil/containers"
)

type PostgresConfigSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *endpoint.Postgres
	tenantID id.TenantID
	now      time.Time
}

func TestPostgresConfigSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresConfigSuite))
}

func (s *PostgresConfigSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = endpoint.NewPostgres(s.postgres.DB)
}

func (s *PostgresConfigSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "webhook_deliveries", "webhook_configs"))
	s.tenantID = id.NewTenantID()
	s.now = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
}

func (s *PostgresConfigSuite) createConfig(targetURL string, createdAt time.Time) *webhook.Config {
	config, err := webhook.NewConfig(s.tenantID, targetURL, "super-secret-key-1",
		[]audit.EventType{audit.EventCaseResolved, audit.EventApplicantReviewed}, createdAt)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), config))
	return config
}

func (s *PostgresConfigSuite) TestRoundTrip() {
	config := s.createConfig("https://hooks.example.com/complyd", s.now)

	found, err := s.store.FindByID(context.Background(), s.tenantID, config.ID)
	s.Require().NoError(err)
	s.Equal(config.TargetURL, found.TargetURL)
	s.Equal(config.Secret, found.Secret)
	s.Equal(config.EventTypes, found.EventTypes)
	s.True(found.IsActive)
	s.True(found.CreatedAt.Equal(config.CreatedAt))

	s.Run("not visible to other tenants", func() {
		_, err := s.store.FindByID(context.Background(), id.NewTenantID(), config.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresConfigSuite) TestListActiveByTenant() {
	ctx := context.Background()
	active := s.createConfig("https://hooks.example.com/a", s.now)
	deactivated := s.createConfig("https://hooks.example.com/b", s.now.Add(time.Second))

	_, err := s.store.Deactivate(ctx, s.tenantID, deactivated.ID, s.now.Add(time.Minute))
	s.Require().NoError(err)

	all, err := s.store.ListByTenant(ctx, s.tenantID)
	s.Require().NoError(err)
	s.Len(all, 2)
	// Newest first.
	s.Equal(deactivated.ID, all[0].ID)

	activeOnly, err := s.store.ListActiveByTenant(ctx, s.tenantID)
	s.Require().NoError(err)
	s.Require().Len(activeOnly, 1)
	s.Equal(active.ID, activeOnly[0].ID)
}

func (s *PostgresConfigSuite) TestDeactivate() {
	ctx := context.Background()
	config := s.createConfig("https://hooks.example.com", s.now)

	updated, err := s.store.Deactivate(ctx, s.tenantID, config.ID, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.False(updated.IsActive)
	s.True(updated.UpdatedAt.After(config.UpdatedAt))

	s.Run("already inactive is an invalid state", func() {
		_, err := s.store.Deactivate(ctx, s.tenantID, config.ID, s.now.Add(2*time.Minute))
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown config is not found", func() {
		_, err := s.store.Deactivate(ctx, s.tenantID, id.NewWebhookConfigID(), s.now)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
