package handler

import (
	"time"

	"complyd/internal/tenant"
	dErrors "complyd/pkg/domain-errors"
)

type createTenantRequest struct {
	Name string `json:"name"`
}

func (r *createTenantRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	return nil
}

type tokenRequest struct {
	TenantID string `json:"tenant_id"`
	APIKey   string `json:"api_key"`
	Subject  string `json:"subject,omitempty"`
}

func (r *tokenRequest) Validate() error {
	if r.TenantID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant_id is required")
	}
	if r.APIKey == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "api_key is required")
	}
	return nil
}

type tenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type createdResponse struct {
	tenantResponse
	APIKey string `json:"api_key"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func fromTenant(t *tenant.Tenant) tenantResponse {
	return tenantResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func fromTenants(tenants []*tenant.Tenant) []tenantResponse {
	out := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, fromTenant(t))
	}
	return out
}
