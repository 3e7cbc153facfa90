package auth

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newMemoryRevocations() *memoryRevocations {
	return &memoryRevocations{revoked: make(map[string]time.Time)}
}

func (m *memoryRevocations) RevokeToken(token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[token] = expiresAt
	return nil
}

func (m *memoryRevocations) IsTokenRevoked(token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiresAt, ok := m.revoked[token]
	return ok && time.Now().Before(expiresAt), nil
}

func TestIssueAndVerifyToken(t *testing.T) {
	tm := NewTokenManager("test-secret-key-for-token-tests", time.Hour, nil)

	token, err := tm.IssueToken("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := tm.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected userId user-1, got %q", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("expected email preserved, got %q", claims.Email)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-one-secret-one-secret-one", time.Hour, nil)
	verifier := NewTokenManager("secret-two-secret-two-secret-two", time.Hour, nil)

	token, err := issuer.IssueToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := verifier.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	tm := NewTokenManager("test-secret-key-for-token-tests", time.Hour, nil)
	tm.ttl = -time.Minute

	token, err := tm.IssueToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := tm.VerifyToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyTokenEmpty(t *testing.T) {
	tm := NewTokenManager("test-secret-key-for-token-tests", time.Hour, nil)
	if _, err := tm.VerifyToken(""); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}

func TestVerifyTokenGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret-key-for-token-tests", time.Hour, nil)
	if _, err := tm.VerifyToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRevokedTokenRejected(t *testing.T) {
	revocations := newMemoryRevocations()
	tm := NewTokenManager("test-secret-key-for-token-tests", time.Hour, revocations)

	token, err := tm.IssueToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := tm.VerifyToken(token); err != nil {
		t.Fatalf("verify before revoke: %v", err)
	}

	if err := tm.Revoke(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := tm.VerifyToken(token); !errors.Is(err, ErrRevokedToken) {
		t.Errorf("expected ErrRevokedToken, got %v", err)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"bearer prefix", "Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"lowercase prefix", "bearer abc.def.ghi", "abc.def.ghi", nil},
		{"bare token", "abc.def.ghi", "abc.def.ghi", nil},
		{"empty", "", "", ErrNoToken},
		{"prefix only", "Bearer ", "", ErrNoToken},
		{"bare scheme word", "bearer", "", ErrNoToken},
		{"wrong scheme", "Basic abc", "", ErrInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tc.header)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "correct-horse" {
		t.Error("hash must not equal plaintext")
	}

	if err := CheckPassword(hash, "correct-horse"); err != nil {
		t.Errorf("expected matching password to pass, got %v", err)
	}
	if err := CheckPassword(hash, "wrong-horse"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestHashPasswordTooShort(t *testing.T) {
	if _, err := HashPassword("abc"); err == nil {
		t.Error("expected error for short password")
	}
}
