package security

import (
	"strings"
	"testing"
)

const sshaHash = "{SSHA}/LAr7zGT/Rv/CEsbrEndyh27h+4fLb9h"

func TestCheckPasswordSSHA(t *testing.T) {
	if !CheckPassword("admin123", sshaHash) {
		t.Error("valid SSHA password rejected")
	}
	if CheckPassword("admin12", sshaHash) {
		t.Error("wrong SSHA password accepted")
	}
}

func TestCheckPasswordArgon2Vector(t *testing.T) {
	stored := "$argon2id$v=19$m=102400,t=2,p=8$/mDhOg8wyZeMTUjcbIC7mg$3pxRSfYgUXmKEKNtasP1Og"
	if !CheckPassword("admin123", stored) {
		t.Error("valid argon2 password rejected")
	}
	if CheckPassword("admin12", stored) {
		t.Error("wrong argon2 password accepted")
	}
}

func TestHashPasswordRoundTrip(t *testing.T) {
	for _, password := range []string{"admin12", "admin123", ""} {
		hash, err := HashPassword(password)
		if err != nil {
			t.Fatalf("HashPassword(%q): %v", password, err)
		}
		if !strings.HasPrefix(hash, "$argon2") {
			t.Errorf("hash %q does not use argon2", hash)
		}
		if !strings.Contains(hash, "m=102400,t=2,p=8") {
			t.Errorf("hash %q does not carry the expected parameters", hash)
		}
		if !CheckPassword(password, hash) {
			t.Errorf("round trip failed for %q", password)
		}
		if CheckPassword(password+"x", hash) {
			t.Errorf("wrong password accepted for %q", password)
		}
	}
}

func TestCheckPasswordRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"{SSHA}notbase64!!",
		"$argon2id$v=19$m=1,t=1",
		"$md5$whatever",
	}
	for _, stored := range cases {
		if CheckPassword("password", stored) {
			t.Errorf("CheckPassword accepted stored value %q", stored)
		}
	}
}
