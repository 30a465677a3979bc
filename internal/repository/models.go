package repository

import (
	"time"

	"github.com/relaykit/smsrelay/internal/domain"
)

// MessageModel is the persistence model for the messages table.
type MessageModel struct {
	ID        string  `gorm:"type:varchar(64);primaryKey"`
	From      *string `gorm:"column:from_sender;type:varchar(32)"`
	Body      string  `gorm:"type:varchar(160);not null"`
	Driver    string  `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (MessageModel) TableName() string {
	return "messages"
}

// RecipientModel is the persistence model for recipients. The (type, value)
// pair is globally unique; the primary key is rewritten in place when the
// provider identifier is promoted.
type RecipientModel struct {
	ID        string               `gorm:"type:varchar(64);primaryKey"`
	Type      domain.RecipientType `gorm:"type:varchar(16);not null;uniqueIndex:idx_recipients_type_value"`
	Value     string               `gorm:"type:varchar(64);not null;uniqueIndex:idx_recipients_type_value"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RecipientModel) TableName() string {
	return "recipients"
}

// MessageRecipientModel is the persistence model for message_recipients.
// The composite primary key keeps one association per (message, recipient).
type MessageRecipientModel struct {
	MessageID      string  `gorm:"type:varchar(64);primaryKey"`
	RecipientID    string  `gorm:"type:varchar(64);primaryKey"`
	DeliverySent   bool    `gorm:"not null;default:false"`
	DeliveryStatus *string `gorm:"type:varchar(32)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (MessageRecipientModel) TableName() string {
	return "message_recipients"
}

func messageModelFromDomain(m *domain.Message) *MessageModel {
	if m == nil {
		return nil
	}

	return &MessageModel{
		ID:        m.ID,
		From:      m.From,
		Body:      m.Body,
		Driver:    m.Driver,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func messageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}

	return &domain.Message{
		ID:        m.ID,
		From:      m.From,
		Body:      m.Body,
		Driver:    m.Driver,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func recipientModelFromDomain(r *domain.Recipient) *RecipientModel {
	if r == nil {
		return nil
	}

	return &RecipientModel{
		ID:        r.ID,
		Type:      r.Type,
		Value:     r.Value,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func recipientModelToDomain(m *RecipientModel) *domain.Recipient {
	if m == nil {
		return nil
	}

	return &domain.Recipient{
		ID:        m.ID,
		Type:      m.Type,
		Value:     m.Value,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func associationModelFromDomain(a *domain.MessageRecipient) *MessageRecipientModel {
	if a == nil {
		return nil
	}

	return &MessageRecipientModel{
		MessageID:      a.MessageID,
		RecipientID:    a.RecipientID,
		DeliverySent:   a.DeliverySent,
		DeliveryStatus: a.DeliveryStatus,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func associationModelToDomain(m *MessageRecipientModel) *domain.MessageRecipient {
	if m == nil {
		return nil
	}

	return &domain.MessageRecipient{
		MessageID:      m.MessageID,
		RecipientID:    m.RecipientID,
		DeliverySent:   m.DeliverySent,
		DeliveryStatus: m.DeliveryStatus,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
