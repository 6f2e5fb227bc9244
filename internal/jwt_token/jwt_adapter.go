package jwttoken

import (
	authmw "cinelog/pkg/platform/middleware/auth"
)

func ToGateClaims(claims *Claims) *authmw.TokenClaims {
	return &authmw.TokenClaims{
		Subject:  claims.Subject,
		Username: claims.Username,
	}
}

// GateVerifierAdapter lets the auth gate in pkg/ verify tokens without
// importing this internal package.
type GateVerifierAdapter struct {
	service *JWTService
}

func NewGateVerifierAdapter(service *JWTService) *GateVerifierAdapter {
	return &GateVerifierAdapter{service: service}
}

func (a *GateVerifierAdapter) Verify(tokenString string) (*authmw.TokenClaims, error) {
	claims, err := a.service.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return ToGateClaims(claims), nil
}
