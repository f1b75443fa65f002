// Package validation checks a single intake answer against its format rules.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

// FieldKind names the answer being validated.
type FieldKind string

const (
	FieldName    FieldKind = "name"
	FieldEmail   FieldKind = "email"
	FieldPhone   FieldKind = "phone"
	FieldCompany FieldKind = "company"
)

// MinPhoneDigits is the fewest digit characters a phone answer may contain.
const MinPhoneDigits = 8

var (
	ErrEmptyField   = errors.New("empty field")
	ErrInvalidEmail = errors.New("invalid email")
	ErrInvalidPhone = errors.New("invalid phone")
)

// emailPattern is local@domain.tld where no part holds '@' or whitespace.
// Whitespace covers \v, Unicode separators and the byte order mark, not only
// RE2's ASCII \s.
var emailPattern = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

// ValidationError is a user-input error bound to one field. It unwraps to one
// of ErrEmptyField, ErrInvalidEmail or ErrInvalidPhone.
type ValidationError struct {
	Field  FieldKind
	Reason error
}

func (e *ValidationError) Error() string {
	return string(e.Field) + ": " + e.Reason.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// FieldName implements httputil.FieldError.
func (e *ValidationError) FieldName() string {
	return string(e.Field)
}

// Code is the stable machine-readable reason.
func (e *ValidationError) Code() string {
	switch {
	case errors.Is(e.Reason, ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(e.Reason, ErrInvalidPhone):
		return "invalid_phone"
	default:
		return "empty_field"
	}
}

var messages = map[string]map[string]string{
	"fr": {
		"empty_field":   "Ce champ est requis",
		"invalid_email": "Email invalide",
		"invalid_phone": "Numéro de téléphone invalide",
	},
	"ar": {
		"empty_field":   "هذا الحقل مطلوب",
		"invalid_email": "البريد الإلكتروني غير صالح",
		"invalid_phone": "رقم الهاتف غير صالح",
	},
}

// Message returns the inline message for lang ("fr" or "ar"), French otherwise.
func (e *ValidationError) Message(lang string) string {
	m, ok := messages[lang]
	if !ok {
		m = messages["fr"]
	}
	return m[e.Code()]
}

// Validate returns nil when raw is acceptable for kind, else a *ValidationError.
func Validate(kind FieldKind, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &ValidationError{Field: kind, Reason: ErrEmptyField}
	}
	switch kind {
	case FieldEmail:
		if !emailPattern.MatchString(raw) {
			return &ValidationError{Field: kind, Reason: ErrInvalidEmail}
		}
	case FieldPhone:
		if DigitCount(raw) < MinPhoneDigits {
			return &ValidationError{Field: kind, Reason: ErrInvalidPhone}
		}
	}
	return nil
}

// DigitCount counts ASCII digits in s.
func DigitCount(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			n++
		}
	}
	return n
}

// AsValidationError extracts a *ValidationError from err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
