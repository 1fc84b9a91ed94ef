package pathpal

import (
	"regexp"
	"strings"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern  = regexp.MustCompile(`^\d{11}$`)
	serialPattern = regexp.MustCompile(`^\d{5}$`)
)

const (
	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 8
	serialPrefix   = "PPSC-"
)

func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func isValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func isValidUsername(username string) bool {
	return len(username) >= minUsernameLen && len(username) <= maxUsernameLen
}

func isValidPassword(password string) bool {
	return len(password) >= minPasswordLen
}

// normalizeSerial strips the optional PPSC- prefix; the remainder must be
// exactly five digits.
func normalizeSerial(serial string) (string, bool) {
	cleaned := strings.TrimPrefix(serial, serialPrefix)
	return cleaned, serialPattern.MatchString(cleaned)
}

func validateRegistration(in RegistrationInput) error {
	var problems []string

	switch {
	case in.Username == "":
		problems = append(problems, "Username is required")
	case !isValidUsername(in.Username):
		problems = append(problems, "Username must be 3-30 characters long")
	}

	switch {
	case in.Email == "":
		problems = append(problems, "Email is required")
	case !isValidEmail(in.Email):
		problems = append(problems, "Please enter a valid email address")
	}

	switch {
	case in.Phone == "":
		problems = append(problems, "Phone number is required")
	case !isValidPhone(in.Phone):
		problems = append(problems, "Please enter a valid 11-digit phone number")
	}

	switch {
	case in.Password == "":
		problems = append(problems, "Password is required")
	case !isValidPassword(in.Password):
		problems = append(problems, "Password must be at least 8 characters long")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
