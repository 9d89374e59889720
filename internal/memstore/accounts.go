package memstore

import (
	"context"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/accounts"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
)

func (s *AccountStore) Create(ctx context.Context, a *accounts.Account) error {
	s.accMu.Lock()
	defer s.accMu.Unlock()

	if _, taken := s.byUsername[a.Username]; taken {
		return apperr.New(apperr.Conflict, "username already taken")
	}
	a.ID = newID(a.ID)
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	s.accounts[a.ID] = *a
	s.byUsername[a.Username] = a.ID
	return nil
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (accounts.Account, error) {
	s.accMu.RLock()
	defer s.accMu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return accounts.Account{}, apperr.New(apperr.NotFound, "account not found")
	}
	return a, nil
}

func (s *AccountStore) GetByUsername(ctx context.Context, username string) (accounts.Account, error) {
	s.accMu.RLock()
	defer s.accMu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return accounts.Account{}, apperr.New(apperr.NotFound, "account not found")
	}
	return s.accounts[id], nil
}

// Update replaces everything but the username and creation time.
func (s *AccountStore) Update(ctx context.Context, a *accounts.Account) error {
	s.accMu.Lock()
	defer s.accMu.Unlock()
	cur, ok := s.accounts[a.ID]
	if !ok {
		return apperr.New(apperr.NotFound, "account not found")
	}
	a.Username = cur.Username
	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.accounts[a.ID] = *a
	return nil
}
