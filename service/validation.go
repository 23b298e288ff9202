package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	namePattern     = regexp.MustCompile(`^[a-zA-Z]{1,20}$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9._]{3,30}$`)
	otpPattern      = regexp.MustCompile(`^[0-9]{6}$`)
)

const minSignupAge = 13

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email", ErrValidationFailed)
	}
	return nil
}

// validatePassword requires 8-32 chars with at least one letter and one
// digit.
func validatePassword(password string) error {
	if len(password) < 8 || len(password) > 32 {
		return fmt.Errorf("%w: password must be 8 to 32 characters", ErrValidationFailed)
	}
	hasLetter, hasDigit := false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: password must contain a letter and a digit", ErrValidationFailed)
	}
	return nil
}

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: names must be 1 to 20 letters", ErrValidationFailed)
	}
	return nil
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: invalid username", ErrValidationFailed)
	}
	return nil
}

func validateOTP(otp string) error {
	if !otpPattern.MatchString(otp) {
		return fmt.Errorf("%w: invalid code", ErrValidationFailed)
	}
	return nil
}

func validateGender(gender string) error {
	switch strings.ToLower(gender) {
	case "male", "female", "other":
		return nil
	}
	return fmt.Errorf("%w: invalid gender", ErrValidationFailed)
}

func validateDateOfBirth(dob string, now time.Time) error {
	birth, err := time.Parse("2006-01-02", dob)
	if err != nil {
		return fmt.Errorf("%w: invalid date of birth", ErrValidationFailed)
	}
	if birth.After(now) {
		return fmt.Errorf("%w: invalid date of birth", ErrValidationFailed)
	}
	age := now.Year() - birth.Year()
	if now.YearDay() < birth.YearDay() {
		age--
	}
	if age < minSignupAge {
		return fmt.Errorf("%w: must be at least %d years old", ErrValidationFailed, minSignupAge)
	}
	return nil
}
