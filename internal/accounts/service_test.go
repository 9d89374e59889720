package accounts_test

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-plant-market/internal/accounts"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/memstore"
	"golang.org/x/crypto/bcrypt"
)

func newService() *accounts.Service {
	svc := accounts.NewService(memstore.New().Accounts)
	svc.Cost = bcrypt.MinCost
	return svc
}

func TestRegisterHashesPassword(t *testing.T) {
	svc := newService()
	acc, err := svc.Register(context.Background(), accounts.RegisterInput{
		Username: "  fern ",
		Email:    "fern@example.com",
		Password: "hunter22",
		IsSeller: true,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if acc.Username != "fern" || !acc.IsActive || !acc.IsSeller {
		t.Fatalf("unexpected account %+v", acc)
	}
	if acc.PasswordHash == "hunter22" {
		t.Fatalf("password stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte("hunter22")); err != nil {
		t.Fatalf("hash does not match: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newService()
	cases := []struct {
		name  string
		in    accounts.RegisterInput
		field string
	}{
		{"missing username", accounts.RegisterInput{Password: "x"}, "username"},
		{"missing password", accounts.RegisterInput{Username: "a"}, "password"},
		{"bad email", accounts.RegisterInput{Username: "a", Password: "x", Email: "nope"}, "email"},
		{"long phone", accounts.RegisterInput{Username: "a", Password: "x", Profile: accounts.Profile{PhoneNumber: "+62 812 3456 78901"}}, "phone_number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.in)
			if !apperr.Is(err, apperr.Validation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if apperr.FieldsOf(err)[tc.field] == "" {
				t.Fatalf("expected %s field error, got %v", tc.field, apperr.FieldsOf(err))
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, accounts.RegisterInput{Username: "ivy", Password: "x"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(ctx, accounts.RegisterInput{Username: "ivy", Password: "y"})
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if apperr.FieldsOf(err)["username"] == "" {
		t.Fatalf("expected username field error")
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	acc, err := svc.Register(ctx, accounts.RegisterInput{Username: "oak", Password: "acorn"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Authenticate(ctx, "oak", ""); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "oak", "pine"); !apperr.Is(err, apperr.InvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "elm", "acorn"); !apperr.Is(err, apperr.InvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	got, err := svc.Authenticate(ctx, "oak", "acorn")
	if err != nil || got.ID != acc.ID {
		t.Fatalf("authenticate: %v %+v", err, got)
	}

	if err := svc.Deactivate(ctx, acc.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, "oak", "pine"); !apperr.Is(err, apperr.InvalidCredentials) {
		t.Fatalf("disabled account with wrong password should look like bad credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "oak", "acorn"); !apperr.Is(err, apperr.AccountDisabled) {
		t.Fatalf("expected account disabled, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	acc, err := svc.Register(ctx, accounts.RegisterInput{Username: "moss", Password: "x"})
	if err != nil {
		t.Fatal(err)
	}

	addr, first := "3 Bark Rd", "Mo"
	got, err := svc.UpdateProfile(ctx, acc.ID, accounts.ProfilePatch{Address: &addr, FirstName: &first})
	if err != nil {
		t.Fatal(err)
	}
	if got.Profile.Address != addr || got.Profile.FirstName != first || got.Username != "moss" {
		t.Fatalf("unexpected profile %+v", got)
	}

	bad := "not an email"
	if _, err := svc.UpdateProfile(ctx, acc.ID, accounts.ProfilePatch{Email: &bad}); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation, got %v", err)
	}
	stored, _ := svc.Get(ctx, acc.ID)
	if stored.Email != "" {
		t.Fatalf("rejected patch was stored: %q", stored.Email)
	}

	if _, err := svc.UpdateProfile(ctx, "missing", accounts.ProfilePatch{}); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
