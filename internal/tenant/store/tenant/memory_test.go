package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	tenantmodel "complyd/internal/tenant"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

type TenantStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
}

func (s *TenantStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func TestTenantStoreSuite(t *testing.T) {
	suite.Run(t, new(TenantStoreSuite))
}

func (s *TenantStoreSuite) newTenant(name string) *tenantmodel.Tenant {
	t, err := tenantmodel.NewTenant(id.NewTenantID(), name, time.Now().UTC())
	s.Require().NoError(err)
	return t
}

func (s *TenantStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds by ID", func() {
		t := s.newTenant("Acme")
		s.Require().NoError(s.store.Create(s.ctx, t))

		found, err := s.store.FindByID(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(t.Name, found.Name)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewTenantID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *TenantStoreSuite) TestNameUniqueness() {
	s.Run("rejects duplicate name", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newTenant("Duplicate")))
		err := s.store.Create(s.ctx, s.newTenant("Duplicate"))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("uniqueness is case-insensitive", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newTenant("MyTenant")))
		err := s.store.Create(s.ctx, s.newTenant("MYTENANT"))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("finds by name case-insensitively", func() {
		t := s.newTenant("CaseTest")
		s.Require().NoError(s.store.Create(s.ctx, t))

		found, err := s.store.FindByName(s.ctx, "casetest")
		s.Require().NoError(err)
		s.Equal(t.ID, found.ID)
	})
}

func (s *TenantStoreSuite) TestUpdates() {
	s.Run("persists status changes", func() {
		t := s.newTenant("Update Test")
		s.Require().NoError(s.store.Create(s.ctx, t))

		s.Require().NoError(t.Deactivate(time.Now().UTC()))
		s.Require().NoError(s.store.Update(s.ctx, t))

		found, err := s.store.FindByID(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(tenantmodel.StatusInactive, found.Status)
	})

	s.Run("returns ErrNotFound for non-existent tenant", func() {
		err := s.store.Update(s.ctx, s.newTenant("Nonexistent"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *TenantStoreSuite) TestList() {
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("First")))
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("Second")))

	tenants, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(tenants, 2)
}
