package domain

import (
	"fmt"
	"strings"
)

// StatusCallback is the semantically load-bearing part of an inbound
// delivery-status webhook: the message it refers to and the recipients the
// provider now recognizes, each with its authoritative identifier.
type StatusCallback struct {
	MessageID  string
	Recipients []CallbackRecipient
}

// CallbackRecipient is one per-recipient delivery report inside a callback.
type CallbackRecipient struct {
	ID       string
	ToNumber string
	Status   string
}

func (c *StatusCallback) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: callback is required", ErrValidation)
	}
	if strings.TrimSpace(c.MessageID) == "" {
		return fmt.Errorf("%w: callback message id is required", ErrValidation)
	}
	for i, r := range c.Recipients {
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("%w: callback recipient %d is missing an id", ErrValidation, i)
		}
		if strings.TrimSpace(r.ToNumber) == "" {
			return fmt.Errorf("%w: callback recipient %d is missing a destination number", ErrValidation, i)
		}
	}
	return nil
}
