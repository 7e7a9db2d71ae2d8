package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is an authenticated principal as known by the identity
// provider. The uid and expiry come from the provider-issued id token.
type Session struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

func (s *Session) IsExpired(delta time.Duration) bool {
	return time.Now().Add(delta).After(s.ExpiresAt)
}

// newSession extracts the session identity from the id token claims. The
// token signature is the provider's concern; this client only reads the
// subject and expiry.
func newSession(email, idToken, refreshToken string) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("auth: unable to parse id token: %w", err)
	}

	uid, err := claims.GetSubject()
	if err != nil || uid == "" {
		return nil, fmt.Errorf("auth: id token has no subject")
	}

	session := &Session{
		UID:          uid,
		Email:        email,
		IDToken:      idToken,
		RefreshToken: refreshToken,
	}
	if expiry, err := claims.GetExpirationTime(); err == nil && expiry != nil {
		session.ExpiresAt = expiry.Time
	}
	return session, nil
}
