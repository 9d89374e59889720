package postgres

import (
	"context"

	"github.com/ariefcatur/go-plant-market/internal/accounts"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepo struct{ DB *pgxpool.Pool }

var _ accounts.Store = (*AccountRepo)(nil)

const accountColumns = `id, username, email, password_hash, is_seller,
	first_name, last_name, phone_number, address, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (accounts.Account, error) {
	var a accounts.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.IsSeller,
		&a.Profile.FirstName, &a.Profile.LastName, &a.Profile.PhoneNumber, &a.Profile.Address,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *AccountRepo) Create(ctx context.Context, a *accounts.Account) error {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO accounts(id, username, email, password_hash, is_seller,
			first_name, last_name, phone_number, address, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.Username, a.Email, a.PasswordHash, a.IsSeller,
		a.Profile.FirstName, a.Profile.LastName, a.Profile.PhoneNumber, a.Profile.Address, a.IsActive)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if pgCode(err) == codeUniqueViolation {
			return apperr.Wrap(err, apperr.Conflict, "username already taken")
		}
		return classify(err, "account")
	}
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (accounts.Account, error) {
	a, err := scanAccount(r.DB.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		return accounts.Account{}, classify(err, "account")
	}
	return a, nil
}

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (accounts.Account, error) {
	a, err := scanAccount(r.DB.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username=$1`, username))
	if err != nil {
		return accounts.Account{}, classify(err, "account")
	}
	return a, nil
}

func (r *AccountRepo) Update(ctx context.Context, a *accounts.Account) error {
	row := r.DB.QueryRow(ctx, `
		UPDATE accounts SET email=$2, password_hash=$3, is_seller=$4, first_name=$5,
			last_name=$6, phone_number=$7, address=$8, is_active=$9, updated_at=now()
		WHERE id=$1
		RETURNING username, created_at, updated_at`,
		a.ID, a.Email, a.PasswordHash, a.IsSeller, a.Profile.FirstName,
		a.Profile.LastName, a.Profile.PhoneNumber, a.Profile.Address, a.IsActive)
	if err := row.Scan(&a.Username, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return classify(err, "account")
	}
	return nil
}
