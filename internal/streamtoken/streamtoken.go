// Package streamtoken issues and validates short-lived, scoped JWTs used
// by the range streamer as an alternative to a bearer header — the
// `st` query parameter clients embed in playback URLs.
package streamtoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reelhaven/mediaserver/internal/apierror"
)

const audience = "stream"

// Claims is the JWT-shaped scoped stream credential. FileID and SessionID
// are optional bindings: when FileID is present it must equal the
// requested file id, and a mismatch is a 403.
type Claims struct {
	UserID    string `json:"sub"`
	Role      string `json:"role"`
	FileID    string `json:"file_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
}

func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret}
}

// Issue mints a stream token valid for ttl, optionally bound to a file
// and/or session id.
func (i *Issuer) Issue(userID, role, fileID, sessionID string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:    userID,
		Role:      role,
		FileID:    fileID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate parses and verifies a stream token, enforcing the "stream"
// audience. If the claims carry a FileID binding it must equal
// expectedFileID or validation fails with Forbidden.
func (i *Issuer) Validate(tokenString, expectedFileID string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithAudience(audience))
	if err != nil || !token.Valid {
		return nil, apierror.Unauthorized("invalid or expired stream token")
	}
	if claims.FileID != "" && expectedFileID != "" && claims.FileID != expectedFileID {
		return nil, apierror.Forbidden("stream token is not scoped to this file")
	}
	return claims, nil
}
