package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/relaykit/smsrelay/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultRetryDelay     = 500 * time.Millisecond
	sendPath              = "/sms/send"
	apiTokenHeader        = "x-api-token"
)

type sendRequest struct {
	Body       string          `json:"Body"`
	Recipients []sendRecipient `json:"Recipients"`
	From       string          `json:"From,omitempty"`
}

type sendRecipient struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendResponse struct {
	Success    bool             `json:"Success"`
	StatusCode int              `json:"StatusCode"`
	Message    string           `json:"Message"`
	Payload    sendResponseBody `json:"Payload"`
	Errors     []string         `json:"Errors"`
}

type sendResponseBody struct {
	SmsMessageID     string `json:"SmsMessageID"`
	FriendlyID       string `json:"FriendlyID"`
	InvalidToNumbers []struct {
		Number  string `json:"Number"`
		Message string `json:"Message"`
	} `json:"InvalidToNumbers"`
}

// HTTPDriverOptions configures the production driver.
type HTTPDriverOptions struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// HTTPDriver delivers messages through the provider's HTTP API. Transport
// failures are retried up to RetryCount times with a fixed delay; structured
// non-2xx responses are returned as rejected DeliveryResults without retry.
type HTTPDriver struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

func NewHTTPDriver(opts HTTPDriverOptions) (*HTTPDriver, error) {
	return newHTTPDriver(opts, resty.New())
}

func newHTTPDriver(opts HTTPDriverOptions, client *resty.Client) (*HTTPDriver, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: provider base url is required for the http driver", domain.ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid provider base url: %v", domain.ErrInvalidConfig, err)
	}

	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: provider api key is required for the http driver", domain.ErrInvalidConfig)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	retryCount := opts.RetryCount
	if retryCount < 0 {
		retryCount = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client.SetTimeout(timeout)
	client.SetRetryCount(retryCount)
	client.SetRetryWaitTime(retryDelay)
	client.SetRetryMaxWaitTime(retryDelay)
	// Retry transport failures only; a structured provider error must not
	// be replayed.
	client.AddRetryCondition(func(_ *resty.Response, err error) bool {
		return err != nil
	})

	return &HTTPDriver{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}, nil
}

func (d *HTTPDriver) Send(ctx context.Context, message domain.OutboundMessage) (*DeliveryResult, error) {
	if d == nil || d.client == nil {
		return nil, fmt.Errorf("%w: http driver is not initialized", domain.ErrInvalidConfig)
	}

	reqBody := sendRequest{
		Body:       message.Body,
		Recipients: make([]sendRecipient, 0, len(message.Recipients)),
	}
	if message.From != nil {
		reqBody.From = *message.From
	}
	for _, recipient := range message.Recipients {
		reqBody.Recipients = append(reqBody.Recipients, sendRecipient{
			Type:  strings.ToLower(recipient.Type.String()),
			Value: recipient.Value,
		})
	}

	response, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(apiTokenHeader, d.apiKey).
		SetBody(reqBody).
		Post(d.baseURL + sendPath)
	if err != nil {
		return nil, connectionError("provider request failed", err)
	}
	if response == nil {
		return nil, connectionError("provider returned empty response", nil)
	}

	statusCode := response.StatusCode()

	var parsed sendResponse
	if err := json.Unmarshal(response.Body(), &parsed); err != nil {
		return nil, connectionError(fmt.Sprintf("malformed provider response (status %d)", statusCode), err)
	}

	result := &DeliveryResult{
		Accepted:   parsed.Success && statusCode >= 200 && statusCode < 300,
		StatusCode: statusCode,
		Message:    parsed.Message,
		MessageID:  parsed.Payload.SmsMessageID,
		FriendlyID: parsed.Payload.FriendlyID,
	}
	for _, invalid := range parsed.Payload.InvalidToNumbers {
		result.Rejected = append(result.Rejected, RejectedRecipient{
			Value:  invalid.Number,
			Reason: invalid.Message,
		})
	}

	if !result.Accepted {
		d.logger.Warn("provider rejected message",
			zap.Int("status", statusCode),
			zap.String("message", parsed.Message),
			zap.Strings("errors", parsed.Errors),
		)
	}

	return result, nil
}
