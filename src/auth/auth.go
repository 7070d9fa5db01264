package auth

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mentorhub/realtime/src/types"
)

// Verifier checks the signed token presented at connection time against a
// shared secret. It never issues tokens; that belongs to the platform's
// credential issuer.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for HS256 tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify validates the token's signature and expiry and returns the
// embedded subject user id. Any failure maps to ErrUnauthenticated; the
// caller must refuse the upgrade without creating connection state.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing token", types.ErrUnauthenticated)
	}

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid claims", types.ErrUnauthenticated)
	}

	userID := subjectID(claims)
	if userID == "" {
		return "", fmt.Errorf("%w: no subject in token", types.ErrUnauthenticated)
	}
	return userID, nil
}

// subjectID reads the user identity from "sub", falling back to the
// platform's legacy "user_id" claim which may be numeric.
func subjectID(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	switch id := claims["user_id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}
