package auth

import (
	"errors"
	"strings"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// PhoneRegion is the default region used to parse local phone numbers
const PhoneRegion = "BR"

// OnlyDigits strips every non digit rune from s
func OnlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// IsValidCPF checks the two CPF check digits. Punctuation is ignored and
// sequences of a single repeated digit are rejected.
func IsValidCPF(cpf string) bool {
	digits := OnlyDigits(cpf)
	if len(digits) != 11 {
		return false
	}

	if strings.Count(digits, digits[:1]) == 11 {
		return false
	}

	check := func(n int) int {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(digits[i]-'0') * (n + 1 - i)
		}
		rest := 11 - sum%11
		if rest >= 10 {
			return 0
		}
		return rest
	}

	return check(9) == int(digits[9]-'0') && check(10) == int(digits[10]-'0')
}

// IsValidMobilePhone accepts Brazilian mobile numbers, with or without the
// country code
func IsValidMobilePhone(phone string) bool {
	num, err := phonenumbers.Parse(phone, PhoneRegion)
	if err != nil {
		return false
	}
	if !phonenumbers.IsValidNumberForRegion(num, PhoneRegion) {
		return false
	}
	switch phonenumbers.GetNumberType(num) {
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
		return true
	default:
		return false
	}
}

// ParseISODate accepts a calendar date or a full RFC 3339 timestamp
func ParseISODate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// ValidateCPF is an ozzo rule for CPF strings
func ValidateCPF(value any) error {
	s := stringValue(value)
	if s == "" {
		return nil
	}
	if !IsValidCPF(s) {
		return errors.New("invalid CPF")
	}
	return nil
}

// ValidateMobilePhone is an ozzo rule for optional phone numbers
func ValidateMobilePhone(value any) error {
	s := stringValue(value)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if !IsValidMobilePhone(s) {
		return errors.New("invalid phone number")
	}
	return nil
}

// ValidateISODate is an ozzo rule for optional ISO 8601 dates
func ValidateISODate(value any) error {
	s := stringValue(value)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := ParseISODate(s); err != nil {
		return errors.New("invalid date, expected YYYY-MM-DD")
	}
	return nil
}

func stringValue(value any) string {
	v, isNil := validation.Indirect(value)
	if isNil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// AsValidationError turns ozzo errors into a 400 carrying one message per field
func AsValidationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]any, len(fieldErrs))
		for field, ferr := range fieldErrs {
			fields[field] = ferr.Error()
		}
		return ValidationError("Invalid data", fields)
	}

	var internal validation.InternalError
	if errors.As(err, &internal) {
		return DependencyError(err, "validation failed")
	}

	return ValidationError("Invalid data", map[string]any{"error": err.Error()})
}
