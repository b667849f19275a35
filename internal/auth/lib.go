package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is computed at startup so the first unknown-email login costs the
// same single bcrypt comparison as every later one.
var dummyHash = mustHash("not-a-real-password")

func mustHash(password string) string {
	h, err := HashPassword(password)
	if err != nil {
		panic(err)
	}
	return h
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// VerifyPassword reports whether candidate matches the bcrypt hash.
func VerifyPassword(hash, candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	return err == nil
}

// SpendPasswordCheck runs a bcrypt comparison against a throwaway hash so a
// login for an unknown email costs about as much as one for a known email.
func SpendPasswordCheck(candidate string) {
	VerifyPassword(dummyHash, candidate)
}
