package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const minPasswordLen = 8

// Session is a successful login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Account   core.Account `json:"account"`
}

type AccountService struct {
	store     storage.AccountStore
	passwords auth.Passwords
	tokens    *auth.Tokens
	now       func() time.Time
}

func NewAccountService(store storage.AccountStore, passwords auth.Passwords, tokens *auth.Tokens, opts ...Option) *AccountService {
	o := applyOptions(opts)
	return &AccountService{store: store, passwords: passwords, tokens: tokens, now: o.now}
}

func (s *AccountService) Register(ctx context.Context, name, email, password string) (core.Account, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case name == "":
		return core.Account{}, core.Invalid("name", "is required")
	case email == "":
		return core.Account{}, core.Invalid("email", "is required")
	case len(password) < minPasswordLen:
		return core.Account{}, core.Invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return core.Account{}, core.Invalid("email", "is not a valid address")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return core.Account{}, err
	}
	a := core.Account{
		ID:           core.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account registered", "account_id", a.ID)
	return a, nil
}

// Login verifies credentials and issues a bearer token. Unknown emails and
// wrong passwords fail identically.
func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	a, err := s.store.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, core.ErrUnauthorized
	}
	if err != nil {
		return Session{}, fmt.Errorf("load account: %w", err)
	}
	if !s.passwords.Check(a.PasswordHash, password) {
		slog.WarnContext(ctx, "Failed login", "account_id", a.ID)
		return Session{}, core.ErrUnauthorized
	}

	token, exp, err := s.tokens.Issue(a.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, Account: a}, nil
}

// Me returns the account profile with its cached balance.
func (s *AccountService) Me(ctx context.Context, accountID string) (core.Account, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}
