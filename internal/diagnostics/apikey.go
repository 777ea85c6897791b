package diagnostics

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrKeyMalformed = errors.New("diagnostics: api key is not a valid JWT")
	ErrKeySignature = errors.New("diagnostics: api key signature does not match the configured secret")
	ErrKeyExpired   = errors.New("diagnostics: api key has expired")
)

// KeyInfo is what an API key says about itself.
type KeyInfo struct {
	Role      string     `json:"role,omitempty"`
	Issuer    string     `json:"issuer,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Verified  bool       `json:"verified"`
}

// InspectAPIKey decodes a backend API key. With an empty secret the claims
// are read without verifying the signature; otherwise the key must be a
// valid HS256 token for secret. An expired key returns its info together
// with ErrKeyExpired.
func InspectAPIKey(token, secret string, now time.Time) (KeyInfo, error) {
	claims := jwt.MapClaims{}
	info := KeyInfo{}
	if secret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return info, fmt.Errorf("%w: %v", ErrKeyMalformed, err)
		}
	} else {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
		switch {
		case err == nil:
			info.Verified = true
		case errors.Is(err, jwt.ErrTokenExpired):
			info.Verified = true
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return info, ErrKeySignature
		default:
			return info, fmt.Errorf("%w: %v", ErrKeyMalformed, err)
		}
	}

	info.Role, _ = claims["role"].(string)
	info.Issuer, _ = claims["iss"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time.UTC()
		info.ExpiresAt = &t
		if !t.After(now) {
			return info, ErrKeyExpired
		}
	}
	return info, nil
}
