package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hackathon-leaderboard/internal/domain"
)

const testSecret = "test-secret-at-least-32-chars-long!!"

func TestProvider_GenerateAndValidateToken(t *testing.T) {
	p := NewProvider(testSecret)

	admin := domain.User{
		ID:    "user-admin-1",
		Name:  "Sarah Johnson",
		Email: "admin@manipal.edu",
		Role:  domain.RoleAdmin,
	}
	member := domain.User{
		ID:     "user-team-1",
		Name:   "Alex Chen",
		Email:  "alex@team1.com",
		Role:   domain.RoleTeam,
		TeamID: "team-001",
	}

	tests := []struct {
		name        string
		user        *domain.User
		rawToken    string
		ttl         time.Duration
		validator   Provider
		expectedErr error
	}{
		{
			name:      "admin round trip",
			user:      &admin,
			ttl:       time.Hour,
			validator: p,
		},
		{
			name:      "team member round trip",
			user:      &member,
			ttl:       time.Hour,
			validator: p,
		},
		{
			name:        "expired token",
			user:        &admin,
			ttl:         -time.Hour,
			validator:   p,
			expectedErr: ErrExpiredToken,
		},
		{
			name:        "invalid signature",
			user:        &admin,
			ttl:         time.Hour,
			validator:   NewProvider("wrong-secret-also-at-least-32-chars"),
			expectedErr: ErrInvalidSignature,
		},
		{
			name:        "malformed token",
			rawToken:    "not.a.jwt",
			validator:   p,
			expectedErr: ErrInvalidToken,
		},
		{
			name:        "unknown role",
			user:        &domain.User{ID: "u-1", Role: domain.Role("judge")},
			ttl:         time.Hour,
			validator:   p,
			expectedErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.rawToken
			if tt.user != nil {
				var err error
				token, err = p.GenerateToken(*tt.user, tt.ttl)
				if err != nil {
					t.Fatalf("failed to generate token: %v", err)
				}
			}

			got, err := tt.validator.ValidateToken(token)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Errorf("expected error %v, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != *tt.user {
				t.Errorf("expected user %+v, got %+v", *tt.user, *got)
			}
		})
	}
}

func TestProvider_RejectsNonHMAC(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-admin-1", "role": "admin"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	if _, err := NewProvider(testSecret).ValidateToken(signed); err == nil {
		t.Fatal("expected alg=none token to be rejected")
	}
}
