package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxBodyLength is the single-part SMS body limit in characters.
const MaxBodyLength = 160

// Delivery statuses reported by the provider callback. The provider may send
// others; only the successful terminal ones are interpreted.
const (
	DeliveryStatusSent      = "sent"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// IsSuccessfulDeliveryStatus reports whether a callback status string counts
// as a successful terminal delivery outcome.
func IsSuccessfulDeliveryStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case DeliveryStatusSent, DeliveryStatusDelivered:
		return true
	}
	return false
}

// Message is a persisted outbound SMS. The ID is the provider message
// identifier when the driver returned one, otherwise a locally generated
// UUID; it is assigned once at persistence time and never mutated.
type Message struct {
	ID         string
	From       *string
	Body       string
	Driver     string
	Recipients []MessageRecipient
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MessageRecipient associates a message with a deduplicated recipient.
// DeliverySent and DeliveryStatus are the only fields mutated after
// creation, exclusively by reconciliation.
type MessageRecipient struct {
	MessageID      string
	RecipientID    string
	Recipient      *Recipient
	DeliverySent   bool
	DeliveryStatus *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OutboundMessage is the validated unit of work handed to a driver.
type OutboundMessage struct {
	From       *string
	Body       string
	Recipients []Recipient
}

// NewOutboundMessage validates the send request before any I/O happens.
func NewOutboundMessage(body string, recipients []Recipient, from *string) (*OutboundMessage, error) {
	trimmedBody := strings.TrimSpace(body)
	if trimmedBody == "" {
		return nil, fmt.Errorf("%w: message body is required", ErrValidation)
	}
	if bodyLen := len([]rune(trimmedBody)); bodyLen > MaxBodyLength {
		return nil, fmt.Errorf("%w: message body exceeds %d characters (got %d)", ErrValidation, MaxBodyLength, bodyLen)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrValidation)
	}

	if from != nil {
		trimmedFrom := strings.TrimSpace(*from)
		if trimmedFrom == "" {
			from = nil
		} else {
			from = &trimmedFrom
		}
	}

	return &OutboundMessage{
		From:       from,
		Body:       trimmedBody,
		Recipients: recipients,
	}, nil
}
