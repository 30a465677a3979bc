package driver

import (
	"context"

	"github.com/relaykit/smsrelay/internal/domain"
	"go.uber.org/zap"
)

const logDriverFromPlaceholder = "<unset>"

// LogDriver records outbound messages to the log instead of calling a
// provider. It never fails on network grounds and returns an empty result,
// so persisted associations start with delivery-sent=false.
type LogDriver struct {
	logger *zap.Logger
}

func NewLogDriver(logger *zap.Logger) *LogDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDriver{logger: logger}
}

func (d *LogDriver) Send(_ context.Context, message domain.OutboundMessage) (*DeliveryResult, error) {
	from := logDriverFromPlaceholder
	if message.From != nil {
		from = *message.From
	}

	values := make([]string, 0, len(message.Recipients))
	for _, recipient := range message.Recipients {
		values = append(values, recipient.Value)
	}

	d.logger.Info("sms send",
		zap.String("driver", DriverLog),
		zap.String("from", from),
		zap.Strings("recipients", values),
		zap.String("body", message.Body),
	)

	return &DeliveryResult{}, nil
}
