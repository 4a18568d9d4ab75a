package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"krysselista/internal/domain"
	"krysselista/internal/store"
	"krysselista/internal/users"
)

func newAuthFixture(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	hash, err := bcrypt.GenerateFromPassword([]byte("hemmelig"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	err = mem.Set(context.Background(), "users", "u1", store.Doc{
		"name":           "Kari Normann",
		"email":          "kari@example.no",
		"role":           "ansatt",
		"kindergardenId": "bhg-1",
		"children":       []string{},
		"passwordHash":   string(hash),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	svc := NewService(users.NewRepository(mem), "test-issuer", "test-key", time.Minute, time.Hour)
	return svc, mem
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := newAuthFixture(t)

	result, err := svc.Login(context.Background(), "kari@example.no", "hemmelig")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Session.UserID != "u1" || result.Session.Role != "ansatt" || result.Session.KindergartenID != "bhg-1" {
		t.Errorf("session: %+v", result.Session)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Error("missing tokens")
	}

	// The issued token must round-trip back to the same session.
	sess, err := svc.SessionFromToken(context.Background(), result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("session from token: %v", err)
	}
	if sess.UserID != "u1" || sess.Name != "Kari Normann" {
		t.Errorf("round-tripped session: %+v", sess)
	}
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	cases := []struct {
		name            string
		email, password string
		want            error
	}{
		{"missing email", "", "x", domain.ErrInvalidArgument},
		{"missing password", "kari@example.no", "", domain.ErrInvalidArgument},
		{"unknown user", "ukjent@example.no", "x", domain.ErrAuthFailure},
		{"wrong password", "kari@example.no", "feil", domain.ErrAuthFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tc.email, tc.password)
			if !errors.Is(err, tc.want) {
				t.Errorf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSessionFromBadToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	if _, err := svc.SessionFromToken(context.Background(), "not-a-token"); !errors.Is(err, domain.ErrAuthFailure) {
		t.Errorf("want ErrAuthFailure, got %v", err)
	}
}

func TestIssueParseClaims(t *testing.T) {
	tokens, err := Issue("u9", "foresatt", "bhg-2", "iss", "key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := Parse(tokens.AccessToken, "key", "iss")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u9" || claims.Role != "foresatt" || claims.KindergartenID != "bhg-2" {
		t.Errorf("claims: %+v", claims)
	}
	if _, err := Parse(tokens.AccessToken, "key", "other-issuer"); err == nil {
		t.Error("issuer mismatch accepted")
	}
	if _, err := Parse(tokens.AccessToken, "wrong-key", "iss"); err == nil {
		t.Error("bad signature accepted")
	}
}
