package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordService_HashAndVerify(t *testing.T) {
	svc := NewPasswordService(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
	}{
		{"simple", "password123"},
		{"unicode", "pässwörd-ñ-中文"},
		{"symbols", "!@#$%^&*()_+{}|:<>?"},
		{"max bcrypt length", "0123456789012345678901234567890123456789012345678901234567890123456789ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := svc.Hash(tt.password)
			if err != nil {
				t.Fatalf("hash failed: %v", err)
			}
			second, err := svc.Hash(tt.password)
			if err != nil {
				t.Fatalf("hash failed: %v", err)
			}

			if first == second {
				t.Error("two hashes of the same password should differ by salt")
			}
			if !svc.Verify(first, tt.password) || !svc.Verify(second, tt.password) {
				t.Error("both hashes should verify")
			}
			if svc.Verify(first, tt.password+"x") {
				t.Error("a different password must not verify")
			}
		})
	}
}

func TestPasswordService_VerifyMalformedHash(t *testing.T) {
	svc := NewPasswordService(bcrypt.MinCost)

	for _, hash := range []string{"", "plaintext", "$2a$10$short", "$2a$99$" + "x"} {
		if svc.Verify(hash, "plaintext") {
			t.Errorf("malformed hash %q must not verify", hash)
		}
	}
}

func TestNewPasswordService_CostBounds(t *testing.T) {
	tests := []struct {
		cost     int
		expected int
	}{
		{bcrypt.MinCost, bcrypt.MinCost},
		{12, 12},
		{0, bcrypt.DefaultCost},
		{bcrypt.MaxCost + 1, bcrypt.DefaultCost},
	}

	for _, tt := range tests {
		svc := NewPasswordService(tt.cost).(*PasswordServiceImpl)
		if svc.cost != tt.expected {
			t.Errorf("cost %d: expected %d, got %d", tt.cost, tt.expected, svc.cost)
		}
	}
}
