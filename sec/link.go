package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const MinLinkSecretLen = 32

var ErrInvalidLink = errors.New("invalid or expired download link")

// LinkClaims identify one staged download.
type LinkClaims struct {
	jwt.RegisteredClaims
	Ref  string `json:"ref"`
	Name string `json:"name"`
}

// LinkSigner mints and verifies HS256 download tokens.
type LinkSigner struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewLinkSigner(secret []byte, issuer string) (*LinkSigner, error) {
	if len(secret) < MinLinkSecretLen {
		return nil, fmt.Errorf("link secret must be at least %d bytes, got %d", MinLinkSecretLen, len(secret))
	}
	return &LinkSigner{secret: secret, issuer: issuer, now: time.Now}, nil
}

func (s *LinkSigner) Sign(ref string, name string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := LinkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Ref:  ref,
		Name: name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature, issuer and expiry. Any failure is ErrInvalidLink.
func (s *LinkSigner) Verify(token string) (*LinkClaims, error) {
	claims := &LinkClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if claims.Ref == "" {
		return nil, ErrInvalidLink
	}
	return claims, nil
}
