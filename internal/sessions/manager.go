// Package sessions issues and resolves login sessions. A session is a signed
// HS256 token whose jti names a server side record; ending the session
// deletes the record, so a stolen token stops working after logout.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
}

// Store keeps live sessions. Lookup returns apperr NotFound for unknown or
// expired ids. Delete of an unknown id is not an error.
type Store interface {
	Save(ctx context.Context, s Session) error
	Lookup(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

type Claims struct {
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	store  Store
}

func NewManager(secret, issuer string, ttl time.Duration, store Store) *Manager {
	if issuer == "" {
		issuer = "plant-market"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl, store: store}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue starts a session for accountID and returns its token.
func (m *Manager) Issue(ctx context.Context, accountID string) (string, Session, error) {
	if accountID == "" {
		return "", Session{}, apperr.New(apperr.Internal, "account id required")
	}
	now := time.Now()
	s := Session{ID: uuid.NewString(), AccountID: accountID, ExpiresAt: now.Add(m.ttl)}

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        s.ID,
		Subject:   accountID,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Session{}, apperr.Wrap(err, apperr.Internal, "sign session token")
	}
	if err := m.store.Save(ctx, s); err != nil {
		return "", Session{}, apperr.Wrap(err, apperr.Internal, "save session")
	}
	return token, s, nil
}

// Resolve returns the live session behind token. Any invalid, expired or
// ended token is Unauthenticated.
func (m *Manager) Resolve(ctx context.Context, token string) (Session, error) {
	claims, err := m.parse(token)
	if err != nil {
		return Session{}, unauthenticated(err)
	}
	s, err := m.store.Lookup(ctx, claims.ID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return Session{}, unauthenticated(err)
		}
		return Session{}, apperr.Wrap(err, apperr.Internal, "lookup session")
	}
	if s.AccountID != claims.Subject {
		return Session{}, unauthenticated(errors.New("session subject mismatch"))
	}
	return s, nil
}

// End deletes the session behind token. Ending an unknown, expired or
// malformed token succeeds.
func (m *Manager) End(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	claims, err := m.parse(token, jwt.WithoutClaimsValidation())
	if err != nil || claims.ID == "" {
		return nil
	}
	if err := m.store.Delete(ctx, claims.ID); err != nil {
		return apperr.Wrap(err, apperr.Internal, "delete session")
	}
	return nil
}

func (m *Manager) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(m.issuer))
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func unauthenticated(err error) error {
	return apperr.Wrap(err, apperr.Unauthenticated, "Invalid or expired session.")
}

// ExtractBearer returns the token of an "Authorization: Bearer" header.
func ExtractBearer(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
