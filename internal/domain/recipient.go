package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// RecipientType distinguishes direct mobile numbers from references to
// internally managed contacts and groups.
type RecipientType string

const (
	RecipientMobile  RecipientType = "MOBILE"
	RecipientContact RecipientType = "CONTACT"
	RecipientGroup   RecipientType = "GROUP"
)

func (t RecipientType) String() string { return string(t) }

func (t RecipientType) IsValid() bool {
	switch t {
	case RecipientMobile, RecipientContact, RecipientGroup:
		return true
	}
	return false
}

func ParseRecipientTypeFromString(s string) (RecipientType, error) {
	t := RecipientType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid recipient type %q", ErrValidation, s)
	}
	return t, nil
}

// Recipient is a deduplicated delivery target. A (type, value) pair maps to
// exactly one row globally; the ID starts as a locally generated placeholder
// and is replaced with the provider identifier during reconciliation.
type Recipient struct {
	ID        string
	Type      RecipientType
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecipient normalizes and validates a raw recipient value and assigns a
// provisional identifier. defaultCountryPrefix (e.g. "+90") is used to expand
// locally formatted mobile numbers; it may be empty, in which case only
// internationally formatted numbers are accepted.
func NewRecipient(recipientType RecipientType, rawValue string, defaultCountryPrefix string) (*Recipient, error) {
	value, err := NormalizeRecipientValue(recipientType, rawValue, defaultCountryPrefix)
	if err != nil {
		return nil, err
	}

	return &Recipient{
		ID:    uuid.NewString(),
		Type:  recipientType,
		Value: value,
	}, nil
}

// NormalizeRecipientValue is pure: it either returns the canonical form of
// the value or fails with ErrInvalidRecipient.
func NormalizeRecipientValue(recipientType RecipientType, rawValue string, defaultCountryPrefix string) (string, error) {
	trimmed := strings.TrimSpace(rawValue)

	switch recipientType {
	case RecipientContact, RecipientGroup:
		if trimmed == "" {
			return "", fmt.Errorf("%w: empty %s reference", ErrInvalidRecipient, strings.ToLower(recipientType.String()))
		}
		return trimmed, nil
	case RecipientMobile:
		return normalizeMobileNumber(trimmed, defaultCountryPrefix)
	default:
		return "", fmt.Errorf("%w: unknown recipient type %q", ErrInvalidRecipient, recipientType)
	}
}

func normalizeMobileNumber(raw string, defaultCountryPrefix string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty mobile number", ErrInvalidRecipient)
	}

	number := raw
	switch {
	case strings.HasPrefix(number, "+"):
		// already in international form
	case strings.HasPrefix(number, "00"):
		number = "+" + number[2:]
	case strings.HasPrefix(number, "0") && defaultCountryPrefix != "":
		number = defaultCountryPrefix + number[1:]
	default:
		return "", fmt.Errorf("%w: mobile number %q is not in international format and no default country prefix is configured", ErrInvalidRecipient, raw)
	}

	parsed, err := phonenumbers.Parse(number, "")
	if err != nil {
		return "", fmt.Errorf("%w: mobile number %q: %v", ErrInvalidRecipient, raw, err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("%w: mobile number %q is not dialable", ErrInvalidRecipient, raw)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
