package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marocdeals/marocdeals_api/internal/account"
)

// ErrInvalidToken covers malformed, expired and badly signed tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Token purposes. A token is only accepted for the purpose it was issued for.
const (
	PurposeSession = "session"
	PurposeVerify  = "verify"
)

// Claims is the payload of a signed token.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Purpose  string `json:"typ"`
	jwt.RegisteredClaims
}

// Token is a signed session token.
type Token struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service signs and verifies HS256 session tokens. There is no refresh: clients
// log in again once a token expires.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService builds a token service.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a session token for acc.
func (s *Service) Issue(acc account.Account) (Token, error) {
	return s.sign(acc, PurposeSession, s.ttl)
}

// IssueLink signs an email verification link token for acc, valid for ttl.
func (s *Service) IssueLink(acc account.Account, ttl time.Duration) (Token, error) {
	return s.sign(acc, PurposeVerify, ttl)
}

func (s *Service) sign(acc account.Account, purpose string, ttl time.Duration) (Token, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		Email:    acc.Email,
		Username: acc.Username,
		Purpose:  purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse verifies a session token and returns its claims.
func (s *Service) Parse(token string) (*Claims, error) {
	return s.parse(token, PurposeSession)
}

// ParseLink verifies an email verification link token and returns its claims.
func (s *Service) ParseLink(token string) (*Claims, error) {
	return s.parse(token, PurposeVerify)
}

func (s *Service) parse(token, purpose string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
