package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// AdminHashCost is the bcrypt cost used for the operator password.
const AdminHashCost = 12

// ErrEmptyPassword is returned when asked to hash an empty password.
var ErrEmptyPassword = errors.New("empty password")

// HashPassword hashes plain with the given bcrypt cost.  A cost of 0 means
// AdminHashCost.
func HashPassword(plain string, cost int) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if cost == 0 {
		cost = AdminHashCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.  An unset hash never
// matches, which keeps login closed until one is configured.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
