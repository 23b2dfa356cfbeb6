package service

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/signvault/internal/model"
)

var sha256Hex = regexp.MustCompile(`^[0-9a-f]{64}$`)

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if n := utf8.RuneCountInString(title); n < 1 || n > 255 {
		return "", validationf("title must be between 1 and 255 characters")
	}
	return title, nil
}

func validateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationf("invalid email address")
	}
	return email, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > 255 {
		return "", validationf("name is required")
	}
	return name, nil
}

func validateFileHash(h string) error {
	if !sha256Hex.MatchString(h) {
		return validationf("file hash must be a lowercase hex SHA-256 digest")
	}
	return nil
}

func validateExpiry(expiresAt *time.Time, now time.Time) error {
	if expiresAt != nil && !expiresAt.After(now) {
		return validationf("expires_at must be in the future")
	}
	return nil
}

func validateField(f model.Field) error {
	switch {
	case !f.FieldType.Valid():
		return validationf("unknown field type %q", f.FieldType)
	case f.Page < 1:
		return validationf("page must be at least 1")
	case f.X < 0 || f.Y < 0:
		return validationf("field position must not be negative")
	case f.Width <= 0 || f.Height <= 0:
		return validationf("field width and height must be positive")
	case f.FontSize <= 0:
		return validationf("font size must be positive")
	case strings.TrimSpace(f.FontFamily) == "":
		return validationf("font family must not be empty")
	}
	return nil
}
