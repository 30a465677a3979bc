package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/relaykit/smsrelay/internal/domain"
	"github.com/relaykit/smsrelay/internal/driver"
	"github.com/relaykit/smsrelay/internal/service"
)

type MessageService interface {
	Send(ctx context.Context, req service.SendRequest) (*domain.Message, error)
	GetByID(ctx context.Context, id string) (*domain.Message, error)
}

type CallbackService interface {
	Reconcile(ctx context.Context, callback domain.StatusCallback) (*domain.Message, error)
}

type MessageHandler struct {
	messages  MessageService
	callbacks CallbackService
}

func NewMessageHandler(messages MessageService, callbacks CallbackService) (*MessageHandler, error) {
	if messages == nil {
		return nil, fmt.Errorf("message service is required")
	}
	if callbacks == nil {
		return nil, fmt.Errorf("callback service is required")
	}
	return &MessageHandler{messages: messages, callbacks: callbacks}, nil
}

// RegisterMessageRoutes mounts the send, lookup, and provider callback
// endpoints. callbackMiddleware guards only the webhook route; pass none to
// leave it unguarded.
func RegisterMessageRoutes(router fiber.Router, messages MessageService, callbacks CallbackService, callbackMiddleware ...fiber.Handler) error {
	h, err := NewMessageHandler(messages, callbacks)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/messages", h.SendMessage)
	v1.Get("/messages/:id", h.GetMessage)

	callbackHandlers := append(append([]fiber.Handler{}, callbackMiddleware...), h.DeliveryCallback)
	v1.Post("/callbacks/sms", callbackHandlers...)

	return nil
}

// SendOnlyHandler exposes the send endpoint on its own, for deployments
// running without persistence where lookup and callbacks have no state to
// work against.
func SendOnlyHandler(messages MessageService) fiber.Handler {
	h := &MessageHandler{messages: messages}
	return h.SendMessage
}

type recipientRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendMessageRequest struct {
	Body       string             `json:"body"`
	From       *string            `json:"from,omitempty"`
	Recipients []recipientRequest `json:"recipients"`
}

// deliveryCallbackRequest mirrors the provider's webhook payload. Fields
// beyond the message identifier and the per-recipient reports are accepted
// and ignored.
type deliveryCallbackRequest struct {
	SmsMessageID string                    `json:"sms_message_id"`
	Recipients   []callbackRecipientReport `json:"recipients"`
}

type callbackRecipientReport struct {
	ID       string `json:"id"`
	ToNumber string `json:"to_number"`
	Status   string `json:"status"`
}

type associationResponse struct {
	RecipientID    string  `json:"recipientId"`
	Type           string  `json:"type"`
	Value          string  `json:"value"`
	DeliverySent   bool    `json:"deliverySent"`
	DeliveryStatus *string `json:"deliveryStatus,omitempty"`
}

type messageResponse struct {
	ID         string                `json:"id"`
	From       *string               `json:"from,omitempty"`
	Body       string                `json:"body"`
	Driver     string                `json:"driver"`
	Recipients []associationResponse `json:"recipients"`
	CreatedAt  time.Time             `json:"createdAt,omitempty"`
	UpdatedAt  time.Time             `json:"updatedAt,omitempty"`
}

func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	recipients := make([]service.RecipientInput, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		recipients = append(recipients, service.RecipientInput{Type: r.Type, Value: r.Value})
	}

	message, err := h.messages.Send(c.Context(), service.SendRequest{
		Body:       req.Body,
		From:       req.From,
		Recipients: recipients,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toMessageResponse(message))
}

func (h *MessageHandler) GetMessage(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	message, err := h.messages.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toMessageResponse(message))
}

func (h *MessageHandler) DeliveryCallback(c *fiber.Ctx) error {
	var req deliveryCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid callback body")
	}

	callback := domain.StatusCallback{
		MessageID:  strings.TrimSpace(req.SmsMessageID),
		Recipients: make([]domain.CallbackRecipient, 0, len(req.Recipients)),
	}
	for _, report := range req.Recipients {
		callback.Recipients = append(callback.Recipients, domain.CallbackRecipient{
			ID:       report.ID,
			ToNumber: report.ToNumber,
			Status:   report.Status,
		})
	}

	message, err := h.callbacks.Reconcile(c.Context(), callback)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toMessageResponse(message))
}

func toMessageResponse(message *domain.Message) messageResponse {
	if message == nil {
		return messageResponse{}
	}

	resp := messageResponse{
		ID:         message.ID,
		From:       message.From,
		Body:       message.Body,
		Driver:     message.Driver,
		Recipients: make([]associationResponse, 0, len(message.Recipients)),
		CreatedAt:  message.CreatedAt,
		UpdatedAt:  message.UpdatedAt,
	}

	for _, assoc := range message.Recipients {
		item := associationResponse{
			RecipientID:    assoc.RecipientID,
			DeliverySent:   assoc.DeliverySent,
			DeliveryStatus: assoc.DeliveryStatus,
		}
		if assoc.Recipient != nil {
			item.Type = assoc.Recipient.Type.String()
			item.Value = assoc.Recipient.Value
		}
		resp.Recipients = append(resp.Recipients, item)
	}

	return resp
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidRecipient):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case driver.IsConnection(err):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}
