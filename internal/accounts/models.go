package accounts

import (
	"context"
	"time"
)

// Account is a marketplace user. PasswordHash never leaves the service layer.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsSeller     bool
	Profile      Profile
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Profile struct {
	FirstName   string
	LastName    string
	PhoneNumber string
	Address     string
}

// Store persists accounts. Lookups return an apperr NotFound when absent and
// Create returns an apperr Conflict on a duplicate username.
type Store interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (Account, error)
	GetByUsername(ctx context.Context, username string) (Account, error)
	Update(ctx context.Context, a *Account) error
}
