package bot

import (
	"regexp"
	"strings"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ]{6,18}[0-9]$`)
)

const dateLayout = "02/01/2006"

// timeNow is swapped in tests.
var timeNow = time.Now

func validateName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 100 {
		return "", apperrors.NewValidationError("name", "that doesn't look like a name, try again")
	}
	return s, nil
}

func validateEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !emailPattern.MatchString(s) {
		return "", apperrors.NewValidationError("email", "that doesn't look like an email address, try again")
	}
	return s, nil
}

func validatePhone(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !phonePattern.MatchString(s) {
		return "", apperrors.NewValidationError("phone", "that doesn't look like a phone number, try again (digits only, + allowed)")
	}
	return s, nil
}

// validateBirthDate accepts dd/mm/yyyy and requires an adult.
func validateBirthDate(s string, now time.Time) (string, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", apperrors.NewValidationError("birth_date", "please use the dd/mm/yyyy format")
	}
	if age(t, now) < 18 {
		return "", apperrors.NewValidationError("birth_date", "you must be at least 18 to join the hikes")
	}
	return t.Format(dateLayout), nil
}

func age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.YearDay() < birth.YearDay() {
		years--
	}
	return years
}

// validateFutureDate accepts dd/mm/yyyy strictly after today.
func validateFutureDate(s string, now time.Time) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("date", "please use the dd/mm/yyyy format")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !t.After(today) {
		return time.Time{}, apperrors.NewValidationError("date", "the date must be in the future")
	}
	return t, nil
}

// validateClock accepts HH:MM on a 24h clock.
func validateClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("15:04", s); err != nil {
		return "", apperrors.NewValidationError("time", "please use the HH:MM format, e.g. 02:30")
	}
	return s, nil
}
