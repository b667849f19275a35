package handler

import "regexp"

var emailRegexp = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 6

func IsValidEmail(email string) bool {
	return emailRegexp.MatchString(email)
}

func IsValidPassword(password string) bool {
	return len(password) >= minPasswordLength
}
