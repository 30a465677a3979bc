package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/relaykit/smsrelay/internal/domain"
	"github.com/relaykit/smsrelay/internal/observability"
	"github.com/relaykit/smsrelay/internal/repository"
	"go.uber.org/zap"
)

// Callback processing outcomes used as metric labels.
const (
	callbackOutcomeReconciled = "reconciled"
	callbackOutcomeNotFound   = "not_found"
	callbackOutcomeInvalid    = "invalid"
	callbackOutcomeError      = "error"
)

// ReconciliationService merges asynchronous delivery-status callbacks into
// persisted state. Each callback is processed in one transaction: recipient
// identifiers are promoted to the provider's authoritative identifiers and
// per-association delivery status is updated, or nothing happens at all.
type ReconciliationService struct {
	messages repository.MessageRepository
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewReconciliationService(
	messages repository.MessageRepository,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*ReconciliationService, error) {
	if messages == nil {
		return nil, fmt.Errorf("%w: message repository is required", domain.ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReconciliationService{
		messages: messages,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Reconcile applies a delivery-status callback. Recipients the callback does
// not mention are left untouched; callback entries for unknown addresses are
// ignored. Re-applying the same callback is a no-op.
func (s *ReconciliationService) Reconcile(ctx context.Context, callback domain.StatusCallback) (*domain.Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := callback.Validate(); err != nil {
		s.metrics.IncCallback(callbackOutcomeInvalid)
		return nil, err
	}

	byAddress := make(map[string]domain.CallbackRecipient, len(callback.Recipients))
	for _, r := range callback.Recipients {
		byAddress[strings.TrimSpace(r.ToNumber)] = r
	}

	var reconciled *domain.Message
	var promoted int

	err := s.messages.WithinTransaction(ctx, func(tx repository.MessageRepository) error {
		// The row lock serializes concurrent callbacks for the same message.
		if _, err := tx.LockMessage(ctx, callback.MessageID); err != nil {
			return err
		}

		current, err := tx.ListRecipientsByMessage(ctx, callback.MessageID)
		if err != nil {
			return err
		}

		// Phase 1: read-only staging of the full promotion set.
		promotions := stagePromotions(current, byAddress)

		// Phase 2: one bulk keyed write applying every staged promotion.
		if len(promotions) > 0 {
			affected, err := tx.PromoteRecipients(ctx, promotions)
			if err != nil {
				return err
			}
			if affected != int64(len(promotions)) {
				return fmt.Errorf("%w: promotion touched %d of %d staged recipients",
					domain.ErrInconsistent, affected, len(promotions))
			}
			promoted = len(promotions)
		}

		// Re-resolve under the post-promotion identifiers before writing
		// delivery state; the association upsert key must use them.
		refreshed, err := tx.ListRecipientsByMessage(ctx, callback.MessageID)
		if err != nil {
			return err
		}

		updates := make([]domain.MessageRecipient, 0, len(refreshed))
		for _, recipient := range refreshed {
			report, ok := byAddress[recipient.Value]
			if !ok {
				continue
			}

			status := strings.ToLower(strings.TrimSpace(report.Status))
			updates = append(updates, domain.MessageRecipient{
				MessageID:      callback.MessageID,
				RecipientID:    recipient.ID,
				DeliverySent:   domain.IsSuccessfulDeliveryStatus(report.Status),
				DeliveryStatus: &status,
			})
		}

		if len(updates) > 0 {
			if err := tx.UpsertAssociationStatus(ctx, updates); err != nil {
				return err
			}
		}

		reconciled, err = tx.GetMessageByID(ctx, callback.MessageID)
		return err
	})
	if err != nil {
		s.metrics.IncCallback(callbackOutcome(err))
		return nil, err
	}

	s.metrics.IncCallback(callbackOutcomeReconciled)
	s.metrics.AddRecipientsPromoted(promoted)

	s.logger.Info("callback reconciled",
		zap.String("messageId", callback.MessageID),
		zap.Int("reported", len(callback.Recipients)),
		zap.Int("promoted", promoted),
	)

	return reconciled, nil
}

// stagePromotions pairs each currently associated recipient with the
// provider identifier reported for its address. Recipients without a
// matching address stay out of the set entirely.
func stagePromotions(current []domain.Recipient, byAddress map[string]domain.CallbackRecipient) []repository.Promotion {
	promotions := make([]repository.Promotion, 0, len(current))
	for _, recipient := range current {
		report, ok := byAddress[recipient.Value]
		if !ok {
			continue
		}

		newID := strings.TrimSpace(report.ID)
		if newID == "" {
			continue
		}

		promotions = append(promotions, repository.Promotion{
			CurrentID: recipient.ID,
			NewID:     newID,
		})
	}
	return promotions
}

func callbackOutcome(err error) string {
	switch {
	case err == nil:
		return callbackOutcomeReconciled
	case errors.Is(err, domain.ErrNotFound):
		return callbackOutcomeNotFound
	case errors.Is(err, domain.ErrValidation):
		return callbackOutcomeInvalid
	default:
		return callbackOutcomeError
	}
}
