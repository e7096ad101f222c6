// Package auth issues and verifies bearer credentials and hashes passwords,
// grounded on the teacher's internal/auth package (bcrypt hashing kept
// as-is; the opaque DB-session token is replaced with a signed JWT per
// spec.md §4.8).
package auth

import (
	"errors"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims is the self-describing payload carried by the bearer credential.
// is_admin is intentionally absent: every protected endpoint re-fetches it
// from the Store rather than trusting the credential.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies bearer credentials under a server secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token carrying {user_id, username, issued_at}, expiring
// after the configured interval (default 7 days).
func (iss *Issuer) Issue(userID int64, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(iss.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(iss.secret)
}

// Verify validates signature and expiry and returns the embedded claims.
func (iss *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return iss.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces a minimum length and, when requireComplexity is
// set, at least 3 of {upper, lower, digit, symbol} character classes.
func ValidatePassword(password string, minLength int, requireComplexity bool) error {
	if len(password) < minLength {
		return ErrWeakPassword
	}
	if !requireComplexity {
		return nil
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSymbol = true
		}
	}

	met := 0
	for _, ok := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if ok {
			met++
		}
	}
	if met < 3 {
		return ErrWeakPassword
	}
	return nil
}
