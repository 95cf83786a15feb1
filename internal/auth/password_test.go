package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_ProducesVerifiableHash(t *testing.T) {
	hash, err := HashPassword("secret-password", 4)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "secret-password" {
		t.Fatal("hash must not equal the plaintext password")
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("hash = %q, want bcrypt format", hash)
	}
	if !VerifyPassword(hash, "secret-password") {
		t.Error("VerifyPassword should accept the original password")
	}
	if VerifyPassword(hash, "wrong-password") {
		t.Error("VerifyPassword should reject a wrong password")
	}
}

func TestHashPassword_SamePasswordDifferentHashes(t *testing.T) {
	// bcryptはソルトを含むため、同じパスワードでもハッシュは毎回異なる
	h1, err := HashPassword("same", 4)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	h2, err := HashPassword("same", 4)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password should differ")
	}
}

func TestHashPassword_CostOutOfRange_UsesDefault(t *testing.T) {
	for _, cost := range []int{0, -1, bcrypt.MaxCost + 1} {
		hash, err := HashPassword("pw", cost)
		if err != nil {
			t.Fatalf("HashPassword(cost=%d) error = %v", cost, err)
		}
		gotCost, err := bcrypt.Cost([]byte(hash))
		if err != nil {
			t.Fatalf("bcrypt.Cost() error = %v", err)
		}
		if gotCost != DefaultBcryptCost {
			t.Errorf("cost = %d, want default %d", gotCost, DefaultBcryptCost)
		}
	}
}

func TestVerifyPassword_NonBcryptHash_ReturnsFalse(t *testing.T) {
	// フェデレーション経由で作成されたユーザーはハッシュ列に
	// subject idが入っているため、どんなパスワードでも照合は失敗する
	if VerifyPassword("google-sub-123", "google-sub-123") {
		t.Error("a non-bcrypt value in the hash column must never verify")
	}
	if VerifyPassword("", "anything") {
		t.Error("empty hash must never verify")
	}
}
