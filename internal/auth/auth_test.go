package auth

import (
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)

	token, err := iss.Issue(7, "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "alice" {
		t.Fatalf("claims = %+v, want UserID=7 Username=alice", claims)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	// NewIssuer replaces a non-positive ttl with the 7-day default, so the
	// expired issuer is built directly.
	iss := &Issuer{secret: []byte("test-secret"), ttl: -time.Hour}

	token, err := iss.Issue(1, "bob")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := iss.Verify(token); err != ErrTokenExpired {
		t.Fatalf("Verify error = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyRejectsTokenSignedWithDifferentSecret(t *testing.T) {
	a := NewIssuer("secret-a", time.Hour)
	b := NewIssuer("secret-b", time.Hour)

	token, err := a.Issue(1, "carol")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := b.Verify(token); err != ErrInvalidToken {
		t.Fatalf("Verify error = %v, want ErrInvalidToken", err)
	}
}

func TestHashAndCheckPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct-horse-battery-staple") {
		t.Fatal("CheckPassword should accept the original password")
	}
	if CheckPassword(hash, "wrong-password") {
		t.Fatal("CheckPassword should reject a wrong password")
	}
}

func TestValidatePasswordEnforcesMinLength(t *testing.T) {
	if err := ValidatePassword("short", 8, false); err != ErrWeakPassword {
		t.Fatalf("err = %v, want ErrWeakPassword", err)
	}
	if err := ValidatePassword("longenough", 8, false); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}

func TestValidatePasswordEnforcesComplexity(t *testing.T) {
	// Only lowercase letters: one character class, below the 3-of-4 bar.
	if err := ValidatePassword("alllowercase", 8, true); err != ErrWeakPassword {
		t.Fatalf("err = %v, want ErrWeakPassword", err)
	}
	// Upper, lower, digit: three classes, meets the bar.
	if err := ValidatePassword("Password1", 8, true); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}
