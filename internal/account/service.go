package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// Service manages the account lifecycle.
type Service struct {
	repo Repository
	cost int
}

// NewService creates a new account service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// Register creates an account with a hashed password.
func (s *Service) Register(ctx context.Context, in NewAccount) (Account, error) {
	if len(in.Password) < minPasswordLength {
		return Account{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Account{}, err
	}

	acc := Account{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(in.Username),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		IsVerified:   in.Verified,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Authenticate checks the password, then requires a verified email.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	acc, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if !acc.IsVerified {
		return Account{}, ErrNotVerified
	}
	return acc, nil
}

// Get returns the account with the given id.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// MarkVerified flags the account's email as verified.
func (s *Service) MarkVerified(ctx context.Context, id string) (Account, error) {
	if err := s.repo.MarkVerified(ctx, id); err != nil {
		return Account{}, err
	}
	return s.repo.FindByID(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
