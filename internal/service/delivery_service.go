package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/relaykit/smsrelay/internal/domain"
	"github.com/relaykit/smsrelay/internal/driver"
	"github.com/relaykit/smsrelay/internal/observability"
	"github.com/relaykit/smsrelay/internal/repository"
	"go.uber.org/zap"
)

// RecipientInput is one raw recipient as submitted by the caller.
type RecipientInput struct {
	Type  string
	Value string
}

// SendRequest is the caller-facing send contract.
type SendRequest struct {
	Body       string
	From       *string
	Recipients []RecipientInput
}

// DeliveryService drives the send path: validate, call the driver, then
// persist the message with its deduplicated recipients in one transaction.
type DeliveryService struct {
	driver        driver.Driver
	driverName    string
	messages      repository.MessageRepository
	persist       bool
	countryPrefix string
	logger        *zap.Logger
	metrics       *observability.Metrics
	newID         func() string
	now           func() time.Time
}

func NewDeliveryService(
	sendDriver driver.Driver,
	driverName string,
	messages repository.MessageRepository,
	persist bool,
	countryPrefix string,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*DeliveryService, error) {
	if sendDriver == nil {
		return nil, fmt.Errorf("%w: send driver is required", domain.ErrInvalidConfig)
	}
	if persist && messages == nil {
		return nil, fmt.Errorf("%w: message repository is required when persistence is enabled", domain.ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryService{
		driver:        sendDriver,
		driverName:    strings.ToLower(strings.TrimSpace(driverName)),
		messages:      messages,
		persist:       persist,
		countryPrefix: countryPrefix,
		logger:        logger,
		metrics:       metrics,
		newID:         uuid.NewString,
		now:           time.Now,
	}, nil
}

// Send validates the request, invokes the driver, and persists the result
// when persistence is enabled. A driver failure aborts before any write.
func (s *DeliveryService) Send(ctx context.Context, req SendRequest) (*domain.Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	recipients, err := s.buildRecipients(req.Recipients)
	if err != nil {
		return nil, err
	}

	outbound, err := domain.NewOutboundMessage(req.Body, recipients, req.From)
	if err != nil {
		return nil, err
	}

	start := s.now()
	result, err := s.driver.Send(ctx, *outbound)
	s.metrics.ObserveMessageSendDuration(s.driverName, s.now().Sub(start))
	if err != nil {
		s.logger.Error("driver send failed",
			zap.String("driver", s.driverName),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncMessageSent(s.driverName, result.Accepted)
	s.metrics.AddRecipientsRejected(s.driverName, len(result.Rejected))

	message := &domain.Message{
		ID:     s.messageID(result),
		From:   outbound.From,
		Body:   outbound.Body,
		Driver: s.driverName,
	}

	if !s.persist {
		message.Recipients = assembleAssociations(message.ID, outbound.Recipients, result)
		return message, nil
	}

	err = s.messages.WithinTransaction(ctx, func(tx repository.MessageRepository) error {
		if err := tx.CreateMessage(ctx, message); err != nil {
			return err
		}

		persisted, err := tx.UpsertRecipients(ctx, outbound.Recipients)
		if err != nil {
			return err
		}

		return tx.CreateAssociations(ctx, assembleAssociations(message.ID, persisted, result))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("message persisted",
		zap.String("messageId", message.ID),
		zap.String("driver", s.driverName),
		zap.Int("recipients", len(outbound.Recipients)),
		zap.Int("rejected", len(result.Rejected)),
	)

	return s.messages.GetMessageByID(ctx, message.ID)
}

// GetByID returns a persisted message with its associations resolved.
func (s *DeliveryService) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: message id is required", domain.ErrValidation)
	}
	if !s.persist {
		return nil, fmt.Errorf("%w: message %q (persistence is disabled)", domain.ErrNotFound, trimmed)
	}
	return s.messages.GetMessageByID(ctx, trimmed)
}

func (s *DeliveryService) buildRecipients(inputs []RecipientInput) ([]domain.Recipient, error) {
	recipients := make([]domain.Recipient, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))

	for _, input := range inputs {
		recipientType, err := domain.ParseRecipientTypeFromString(input.Type)
		if err != nil {
			return nil, err
		}

		recipient, err := domain.NewRecipient(recipientType, input.Value, s.countryPrefix)
		if err != nil {
			return nil, err
		}

		// The same address twice in one request collapses to one recipient.
		key := recipient.Type.String() + "\x00" + recipient.Value
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		recipients = append(recipients, *recipient)
	}

	return recipients, nil
}

// messageID picks the provider identifier when one was assigned, otherwise a
// local UUID. The identifier never changes after this point.
func (s *DeliveryService) messageID(result *driver.DeliveryResult) string {
	if result != nil && strings.TrimSpace(result.MessageID) != "" {
		return strings.TrimSpace(result.MessageID)
	}
	return s.newID()
}

func assembleAssociations(messageID string, recipients []domain.Recipient, result *driver.DeliveryResult) []domain.MessageRecipient {
	associations := make([]domain.MessageRecipient, 0, len(recipients))
	for i := range recipients {
		recipient := recipients[i]
		associations = append(associations, domain.MessageRecipient{
			MessageID:    messageID,
			RecipientID:  recipient.ID,
			Recipient:    &recipient,
			DeliverySent: result != nil && result.Accepted && !result.IsRejected(recipient.Value),
		})
	}
	return associations
}
