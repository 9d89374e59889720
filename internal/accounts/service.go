package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxUsernameLen = 150
	maxPhoneLen    = 15
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	IsSeller bool
	Profile  Profile
}

// ProfilePatch holds optional profile updates; nil fields are left alone.
type ProfilePatch struct {
	Email       *string
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Address     *string
}

type Service struct {
	Store Store
	// Cost defaults to bcrypt.DefaultCost.
	Cost int
}

func NewService(store Store) *Service {
	return &Service{Store: store, Cost: bcrypt.DefaultCost}
}

// Register creates an active account with a hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	fields := map[string]string{}
	switch {
	case in.Username == "":
		fields["username"] = "This field is required."
	case len(in.Username) > maxUsernameLen:
		fields["username"] = "Ensure this field has no more than 150 characters."
	}
	if in.Password == "" {
		fields["password"] = "This field may not be blank."
	}
	validateEmail(in.Email, fields)
	validatePhone(in.Profile.PhoneNumber, fields)
	if err := apperr.Fields(fields); err != nil {
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
	if err != nil {
		return Account{}, apperr.Wrap(err, apperr.Internal, "failed to register user")
	}

	acc := Account{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		IsSeller:     in.IsSeller,
		Profile:      in.Profile,
		IsActive:     true,
	}
	if err := s.Store.Create(ctx, &acc); err != nil {
		if apperr.Is(err, apperr.Conflict) {
			return Account{}, apperr.Wrap(err, apperr.Conflict, "username already taken").
				WithField("username", "A user with that username already exists.")
		}
		return Account{}, err
	}

	logx.Info().Str("account_id", acc.ID).Str("username", acc.Username).Bool("is_seller", acc.IsSeller).Msg("account registered")
	return acc, nil
}

// Authenticate verifies credentials. The active flag is checked only after
// the password matched so disabled accounts are not revealed to guessers.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Account, error) {
	if username == "" || password == "" {
		return Account{}, apperr.New(apperr.Validation, "Please provide both username and password")
	}

	acc, err := s.Store.GetByUsername(ctx, username)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			logx.Info().Str("username", username).Msg("login attempt with unknown username")
			return Account{}, apperr.New(apperr.InvalidCredentials, "Invalid username or password")
		}
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			logx.Error().Err(err).Str("account_id", acc.ID).Msg("compare password hash")
		}
		return Account{}, apperr.New(apperr.InvalidCredentials, "Invalid username or password")
	}
	if !acc.IsActive {
		return Account{}, apperr.New(apperr.AccountDisabled, "User account is disabled")
	}
	return acc, nil
}

func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.Store.GetByID(ctx, id)
}

// UpdateProfile applies patch to the account identified by id.
func (s *Service) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (Account, error) {
	acc, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}

	fields := map[string]string{}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		validateEmail(email, fields)
		acc.Email = email
	}
	if patch.PhoneNumber != nil {
		validatePhone(*patch.PhoneNumber, fields)
		acc.Profile.PhoneNumber = *patch.PhoneNumber
	}
	if err := apperr.Fields(fields); err != nil {
		return Account{}, err
	}
	if patch.FirstName != nil {
		acc.Profile.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		acc.Profile.LastName = *patch.LastName
	}
	if patch.Address != nil {
		acc.Profile.Address = *patch.Address
	}

	if err := s.Store.Update(ctx, &acc); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Deactivate switches the account off. Accounts are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	acc, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !acc.IsActive {
		return nil
	}
	acc.IsActive = false
	if err := s.Store.Update(ctx, &acc); err != nil {
		return err
	}
	logx.Info().Str("account_id", id).Msg("account deactivated")
	return nil
}

func (s *Service) cost() int {
	if s.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return s.Cost
}

func validateEmail(email string, fields map[string]string) {
	if email == "" {
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "Enter a valid email address."
	}
}

func validatePhone(phone string, fields map[string]string) {
	if len(phone) > maxPhoneLen {
		fields["phone_number"] = "Ensure this field has no more than 15 characters."
	}
}
