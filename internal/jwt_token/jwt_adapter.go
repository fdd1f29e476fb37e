package jwttoken

import (
	"complyd/internal/platform/middleware"
)

// JWTServiceAdapter adapts JWTService to the middleware.TokenValidator
// interface without leaking jwt types into the middleware package.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{
		TenantID: claims.TenantID,
		Subject:  claims.Subject,
	}, nil
}
