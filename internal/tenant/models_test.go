package tenant

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
)

var modelTime = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func Test_NewTenant(t *testing.T) {
	t.Run("valid tenant is active", func(t *testing.T) {
		tn, err := NewTenant(id.NewTenantID(), "Acme Compliance", modelTime)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, tn.Status)
		assert.True(t, tn.IsActive())
		assert.Equal(t, modelTime, tn.CreatedAt)
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		tn, err := NewTenant(id.NewTenantID(), "  Acme  ", modelTime)
		require.NoError(t, err)
		assert.Equal(t, "Acme", tn.Name)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewTenant(id.NewTenantID(), "   ", modelTime)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects overlong name", func(t *testing.T) {
		_, err := NewTenant(id.NewTenantID(), strings.Repeat("x", 129), modelTime)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func Test_Tenant_StatusTransitions(t *testing.T) {
	tn, err := NewTenant(id.NewTenantID(), "Acme", modelTime)
	require.NoError(t, err)

	later := modelTime.Add(time.Hour)

	t.Run("reactivating an active tenant conflicts", func(t *testing.T) {
		err := tn.Reactivate(later)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("deactivate flips status and bumps updated_at", func(t *testing.T) {
		require.NoError(t, tn.Deactivate(later))
		assert.Equal(t, StatusInactive, tn.Status)
		assert.False(t, tn.IsActive())
		assert.Equal(t, later, tn.UpdatedAt)
	})

	t.Run("deactivating twice conflicts", func(t *testing.T) {
		err := tn.Deactivate(later)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("reactivate restores active", func(t *testing.T) {
		require.NoError(t, tn.Reactivate(later.Add(time.Hour)))
		assert.True(t, tn.IsActive())
	})
}

func Test_NameKey(t *testing.T) {
	assert.Equal(t, NameKey("Acme Compliance"), NameKey("  ACME COMPLIANCE  "))
	assert.NotEqual(t, NameKey("Acme"), NameKey("Acme Inc"))
}
