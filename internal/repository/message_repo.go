package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relaykit/smsrelay/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Promotion stages the replacement of a recipient's current identifier with
// the provider-assigned one. CurrentID is the match key; NewID is the only
// column the promotion writes.
type Promotion struct {
	CurrentID string
	NewID     string
}

// MessageRepository is the persistence port for messages, deduplicated
// recipients, and their associations. All mutating paths go through the
// upsert disciplines described on each method; direct identifier-keyed
// overwrites of recipients are not part of the interface.
type MessageRepository interface {
	// WithinTransaction runs fn against a repository bound to one database
	// transaction. fn returning an error rolls the whole transaction back.
	WithinTransaction(ctx context.Context, fn func(repo MessageRepository) error) error

	CreateMessage(ctx context.Context, message *domain.Message) error

	// LockMessage loads a message under a row-level write lock so concurrent
	// reconciliations of the same message serialize.
	LockMessage(ctx context.Context, id string) (*domain.Message, error)

	// GetMessageByID returns the message with its associations resolved to
	// recipients.
	GetMessageByID(ctx context.Context, id string) (*domain.Message, error)

	// UpsertRecipients inserts recipients keyed on the (type, value) unique
	// pair. On conflict only metadata is touched; the existing identifier is
	// never overwritten. The returned slice carries the persisted identifiers
	// in input order.
	UpsertRecipients(ctx context.Context, recipients []domain.Recipient) ([]domain.Recipient, error)

	CreateAssociations(ctx context.Context, associations []domain.MessageRecipient) error

	ListRecipientsByMessage(ctx context.Context, messageID string) ([]domain.Recipient, error)

	// PromoteRecipients applies all staged promotions as one bulk statement
	// keyed by the current identifier and returns the number of rows it
	// touched. Associations follow through the ON UPDATE CASCADE foreign key.
	PromoteRecipients(ctx context.Context, promotions []Promotion) (int64, error)

	// UpsertAssociationStatus writes delivery state keyed on the
	// (message_id, recipient_id) pair, creating no duplicates.
	UpsertAssociationStatus(ctx context.Context, associations []domain.MessageRecipient) error
}

type GormMessageRepo struct {
	db *gorm.DB
}

func NewGormMessageRepo(db *gorm.DB) *GormMessageRepo {
	return &GormMessageRepo{db: db}
}

func (r *GormMessageRepo) WithinTransaction(ctx context.Context, fn func(repo MessageRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormMessageRepo(tx))
	})
}

func (r *GormMessageRepo) CreateMessage(ctx context.Context, message *domain.Message) error {
	model := messageModelFromDomain(message)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if message != nil {
		message.CreatedAt = model.CreatedAt
		message.UpdatedAt = model.UpdatedAt
	}
	return nil
}

func (r *GormMessageRepo) LockMessage(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: message %q", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return messageModelToDomain(&model), nil
}

func (r *GormMessageRepo) GetMessageByID(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: message %q", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var assocModels []MessageRecipientModel
	err = r.db.WithContext(ctx).
		Where("message_id = ?", id).
		Order("created_at ASC, recipient_id ASC").
		Find(&assocModels).Error
	if err != nil {
		return nil, err
	}

	recipientIDs := make([]string, 0, len(assocModels))
	for i := range assocModels {
		recipientIDs = append(recipientIDs, assocModels[i].RecipientID)
	}

	recipientsByID := make(map[string]*domain.Recipient, len(recipientIDs))
	if len(recipientIDs) > 0 {
		var recipientModels []RecipientModel
		if err := r.db.WithContext(ctx).Where("id IN ?", recipientIDs).Find(&recipientModels).Error; err != nil {
			return nil, err
		}
		for i := range recipientModels {
			recipientsByID[recipientModels[i].ID] = recipientModelToDomain(&recipientModels[i])
		}
	}

	message := messageModelToDomain(&model)
	message.Recipients = make([]domain.MessageRecipient, 0, len(assocModels))
	for i := range assocModels {
		assoc := associationModelToDomain(&assocModels[i])
		assoc.Recipient = recipientsByID[assoc.RecipientID]
		message.Recipients = append(message.Recipients, *assoc)
	}

	return message, nil
}

func (r *GormMessageRepo) UpsertRecipients(ctx context.Context, recipients []domain.Recipient) ([]domain.Recipient, error) {
	if len(recipients) == 0 {
		return nil, nil
	}

	models := make([]RecipientModel, 0, len(recipients))
	for i := range recipients {
		models = append(models, *recipientModelFromDomain(&recipients[i]))
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}, {Name: "value"}},
			DoUpdates: clause.Assignments(map[string]any{"updated_at": time.Now().UTC()}),
		}).
		Create(&models).Error
	if err != nil {
		return nil, err
	}

	// Re-read by the unique pair: conflicting inserts kept the identifier
	// already stored for that pair, not the provisional one we offered.
	pairs := make([][]any, 0, len(recipients))
	for i := range recipients {
		pairs = append(pairs, []any{recipients[i].Type, recipients[i].Value})
	}

	var persisted []RecipientModel
	err = r.db.WithContext(ctx).
		Where("(type, value) IN ?", pairs).
		Find(&persisted).Error
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*RecipientModel, len(persisted))
	for i := range persisted {
		byKey[recipientKey(persisted[i].Type, persisted[i].Value)] = &persisted[i]
	}

	resolved := make([]domain.Recipient, 0, len(recipients))
	for i := range recipients {
		model, ok := byKey[recipientKey(recipients[i].Type, recipients[i].Value)]
		if !ok {
			return nil, fmt.Errorf("%w: recipient (%s, %s) missing after upsert",
				domain.ErrInconsistent, recipients[i].Type, recipients[i].Value)
		}
		resolved = append(resolved, *recipientModelToDomain(model))
	}

	return resolved, nil
}

func (r *GormMessageRepo) CreateAssociations(ctx context.Context, associations []domain.MessageRecipient) error {
	if len(associations) == 0 {
		return nil
	}

	models := make([]MessageRecipientModel, 0, len(associations))
	for i := range associations {
		models = append(models, *associationModelFromDomain(&associations[i]))
	}

	return r.db.WithContext(ctx).Create(&models).Error
}

func (r *GormMessageRepo) ListRecipientsByMessage(ctx context.Context, messageID string) ([]domain.Recipient, error) {
	var models []RecipientModel
	err := r.db.WithContext(ctx).
		Joins("JOIN message_recipients ON message_recipients.recipient_id = recipients.id").
		Where("message_recipients.message_id = ?", messageID).
		Order("recipients.value ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	recipients := make([]domain.Recipient, 0, len(models))
	for i := range models {
		recipients = append(recipients, *recipientModelToDomain(&models[i]))
	}

	return recipients, nil
}

func (r *GormMessageRepo) PromoteRecipients(ctx context.Context, promotions []Promotion) (int64, error) {
	if len(promotions) == 0 {
		return 0, nil
	}

	placeholders := make([]string, 0, len(promotions))
	args := make([]any, 0, len(promotions)*2+1)
	args = append(args, time.Now().UTC())
	for _, p := range promotions {
		placeholders = append(placeholders, "(?::varchar, ?::varchar)")
		args = append(args, p.CurrentID, p.NewID)
	}

	sql := fmt.Sprintf(
		`UPDATE recipients SET id = data.new_id, updated_at = ?
		 FROM (VALUES %s) AS data(current_id, new_id)
		 WHERE recipients.id = data.current_id`,
		strings.Join(placeholders, ", "),
	)

	result := r.db.WithContext(ctx).Exec(sql, args...)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (r *GormMessageRepo) UpsertAssociationStatus(ctx context.Context, associations []domain.MessageRecipient) error {
	if len(associations) == 0 {
		return nil
	}

	models := make([]MessageRecipientModel, 0, len(associations))
	for i := range associations {
		models = append(models, *associationModelFromDomain(&associations[i]))
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "recipient_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"delivery_sent", "delivery_status", "updated_at"}),
		}).
		Create(&models).Error
}

func recipientKey(recipientType domain.RecipientType, value string) string {
	return string(recipientType) + "\x00" + value
}
