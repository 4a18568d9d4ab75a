package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"krysselista/internal/domain"
	"krysselista/internal/store"
	"krysselista/internal/users"
)

// Service authenticates users against the profile collection and issues
// tokens. Registration happens out of band; an authenticated identity
// without a profile document is rejected.
type Service struct {
	users      *users.Repository
	issuer     string
	signingKey string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates an auth service.
func NewService(repo *users.Repository, issuer, signingKey string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:      repo,
		issuer:     issuer,
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Tokens  TokenPair
	Session Session
	Profile users.User
}

// Login verifies credentials and builds the session context.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password required", domain.ErrInvalidArgument)
	}

	profile, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, fmt.Errorf("%w: unknown user", domain.ErrAuthFailure)
	}
	if err != nil {
		return LoginResult{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, fmt.Errorf("%w: wrong password", domain.ErrAuthFailure)
	}

	tokens, err := Issue(profile.ID, profile.Role, profile.KindergartenID, s.issuer, s.signingKey, s.accessTTL, s.refreshTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	return LoginResult{
		Tokens: tokens,
		Session: Session{
			UserID:         profile.ID,
			Name:           profile.Name,
			Role:           profile.Role,
			KindergartenID: profile.KindergartenID,
			Children:       profile.Children,
		},
		Profile: profile,
	}, nil
}

// SessionFromToken validates a bearer token and rebuilds the session.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := Parse(token, s.signingKey, s.issuer)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", domain.ErrAuthFailure, err)
	}
	profile, err := s.users.Get(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: profile missing", domain.ErrAuthFailure)
	}
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:         profile.ID,
		Name:           profile.Name,
		Role:           profile.Role,
		KindergartenID: profile.KindergartenID,
		Children:       profile.Children,
	}, nil
}
