// Package auth issues and verifies the HS256 access and refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
)

const leeway = 30 * time.Second

// Claims carried by both token kinds. Refresh tokens leave Email and Role
// empty; their role is looked up again when they are exchanged.
type Claims struct {
	Email string      `json:"email,omitempty"`
	Role  models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type TokenIssuer struct {
	cfg Config
	now func() time.Time
}

func NewTokenIssuer(cfg Config) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// IssueAccess signs a short-lived token carrying the user's role
func (t *TokenIssuer) IssueAccess(u *models.User) (string, time.Time, error) {
	exp := t.now().Add(t.cfg.AccessTTL)
	claims := Claims{
		Email:            u.Email,
		Role:             u.Role,
		RegisteredClaims: t.registered(u.ID, exp),
	}
	signed, err := sign(claims, t.cfg.AccessSecret)
	return signed, exp, err
}

// IssueRefresh signs a long-lived token. Each one gets a fresh jti so two
// logins in the same second still yield distinct tokens.
func (t *TokenIssuer) IssueRefresh(u *models.User) (string, time.Time, error) {
	exp := t.now().Add(t.cfg.RefreshTTL)
	signed, err := sign(Claims{RegisteredClaims: t.registered(u.ID, exp)}, t.cfg.RefreshSecret)
	return signed, exp, err
}

func (t *TokenIssuer) registered(userID bson.ObjectID, exp time.Time) jwt.RegisteredClaims {
	now := t.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    t.cfg.Issuer,
		Subject:   userID.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func sign(claims Claims, secret string) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseAccess verifies an access token and returns the caller identity
func (t *TokenIssuer) ParseAccess(raw string) (models.Identity, error) {
	claims, err := t.parse(raw, t.cfg.AccessSecret)
	if err != nil {
		return models.Identity{}, err
	}
	id, err := bson.ObjectIDFromHex(claims.Subject)
	if err != nil || !claims.Role.Valid() {
		return models.Identity{}, fmt.Errorf("%w: malformed claims", models.ErrUnauthenticated)
	}
	return models.Identity{UserID: id, Email: claims.Email, Role: claims.Role}, nil
}

// ParseRefresh verifies a refresh token and returns its subject
func (t *TokenIssuer) ParseRefresh(raw string) (bson.ObjectID, error) {
	claims, err := t.parse(raw, t.cfg.RefreshSecret)
	if err != nil {
		return bson.NilObjectID, err
	}
	id, err := bson.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return bson.NilObjectID, fmt.Errorf("%w: malformed claims", models.ErrUnauthenticated)
	}
	return id, nil
}

func (t *TokenIssuer) parse(raw, secret string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(t.now),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", models.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: invalid token", models.ErrUnauthenticated)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", models.ErrUnauthenticated)
	}
	return claims, nil
}
