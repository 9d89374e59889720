package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/sessions"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps live sessions as expiring Redis keys.
type SessionStore struct {
	RDB *redis.Client
}

var _ sessions.Store = (*SessionStore)(nil)

type sessionRecord struct {
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *SessionStore) Save(ctx context.Context, sess sessions.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return apperr.New(apperr.Validation, "session already expired")
	}
	b, err := json.Marshal(sessionRecord{AccountID: sess.AccountID, ExpiresAt: sess.ExpiresAt.UTC()})
	if err != nil {
		return err
	}
	return wrap(s.RDB.Set(ctx, fmt.Sprintf(KeySession, sess.ID), b, ttl).Err(), "session")
}

func (s *SessionStore) Lookup(ctx context.Context, id string) (sessions.Session, error) {
	b, err := s.RDB.Get(ctx, fmt.Sprintf(KeySession, id)).Bytes()
	if err != nil {
		return sessions.Session{}, wrap(err, "session")
	}
	var rec sessionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return sessions.Session{}, apperr.Wrap(err, apperr.Internal, "decode session")
	}
	return sessions.Session{ID: id, AccountID: rec.AccountID, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return wrap(s.RDB.Del(ctx, fmt.Sprintf(KeySession, id)).Err(), "session")
}
