package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingSecret = errors.New("auth: token secret is required")
	ErrInvalidToken  = errors.New("auth: invalid token")
)

// Claims is the signed payload of an access token.
type Claims struct {
	UserID    uint   `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	CompanyID *uint  `json:"company_id,omitempty"`
	ClientID  *uint  `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	name   string
	now    func() time.Time
}

// NewIssuer returns an issuer for secret. Tokens expire after ttl.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, name: "go-archive", now: time.Now}, nil
}

// Issue signs a token for c. c.TokenID is replaced by a fresh id.
func (i *Issuer) Issue(c Credentials) (string, time.Time, error) {
	now := i.now()
	expiry := now.Add(i.ttl)
	claims := &Claims{
		UserID:    c.UserID,
		Name:      c.Name,
		Role:      c.Role,
		CompanyID: c.CompanyID,
		ClientID:  c.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.name,
			Subject:   fmt.Sprint(c.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiry, nil
}

// Parse verifies a token and returns its credentials.
func (i *Issuer) Parse(token string) (Credentials, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.name), jwt.WithTimeFunc(i.now))
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == 0 || claims.ExpiresAt == nil {
		return Credentials{}, ErrInvalidToken
	}
	return Credentials{
		UserID:    claims.UserID,
		Name:      claims.Name,
		Role:      claims.Role,
		CompanyID: claims.CompanyID,
		ClientID:  claims.ClientID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
