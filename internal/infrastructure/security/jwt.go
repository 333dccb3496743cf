// Package security provides JWT principal extraction and the session
// security binder.
package security

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"

	"github.com/clarident/clarident-go/internal/domain/scope"
)

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// PrincipalFromClaims extracts the authenticated principal from JWT claims.
// Token issuance belongs to the external auth collaborator; this core only
// consumes the identity it asserts.
func PrincipalFromClaims(claims jwt.MapClaims) (scope.Principal, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return scope.Principal{}, errors.New("token missing subject claim")
	}

	p := scope.Principal{ID: sub}

	if elevated, ok := claims["elevated"].(bool); ok {
		p.Elevated = elevated
	}
	if home, ok := claims["homeTenant"].(string); ok {
		p.HomeTenant = home
	}
	if raw, ok := claims["tenants"].([]any); ok {
		for _, v := range raw {
			if id, ok := v.(string); ok {
				p.Entitlements = append(p.Entitlements, id)
			}
		}
	}

	return p, nil
}
