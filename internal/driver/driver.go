package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/relaykit/smsrelay/internal/config"
	"github.com/relaykit/smsrelay/internal/domain"
	"go.uber.org/zap"
)

// Supported driver names.
const (
	DriverLog  = "log"
	DriverHTTP = "http"
)

// Driver is the outbound SMS delivery port.
type Driver interface {
	Send(ctx context.Context, message domain.OutboundMessage) (*DeliveryResult, error)
}

// DeliveryResult is the provider's answer to a send call. Per-recipient
// rejections are data, not errors: the caller decides how to treat partial
// failures.
type DeliveryResult struct {
	Accepted   bool
	StatusCode int
	Message    string
	MessageID  string
	FriendlyID string
	Rejected   []RejectedRecipient
}

// RejectedRecipient is one address the provider refused, with its reason.
type RejectedRecipient struct {
	Value  string
	Reason string
}

// IsRejected reports whether the provider refused the given address.
func (r *DeliveryResult) IsRejected(value string) bool {
	if r == nil {
		return false
	}
	for _, rejected := range r.Rejected {
		if rejected.Value == value {
			return true
		}
	}
	return false
}

// FromConfig maps the configured driver name to a concrete driver. The
// mapping is total: any unrecognized name fails with ErrInvalidConfig
// naming the offending value and the supported set.
func FromConfig(cfg *config.Config, logger *zap.Logger) (Driver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", domain.ErrInvalidConfig)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverLog:
		return NewLogDriver(logger), nil
	case DriverHTTP:
		return NewHTTPDriver(HTTPDriverOptions{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.RequestTimeout(),
			RetryCount: cfg.RetryCount,
			RetryDelay: cfg.RetryDelay(),
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("%w: unknown driver %q (supported: %s, %s)",
			domain.ErrInvalidConfig, cfg.Driver, DriverLog, DriverHTTP)
	}
}
