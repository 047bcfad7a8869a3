package jwttoken

import (
	authmw "folio/pkg/platform/middleware/auth"
)

// JWTServiceAdapter satisfies authmw.JWTValidator so the middleware never
// sees the token library's claim types.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{ActorID: claims.ActorID, JTI: claims.ID}, nil
}
