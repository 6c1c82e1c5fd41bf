package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookRequest struct {
	BatchID string   `json:"batchId"`
	Label   string   `json:"label"`
	To      string   `json:"to,omitempty"`
	Links   []string `json:"links"`
	Count   int      `json:"count"`
}

// WebhookNotifier posts batch payloads to a webhook endpoint, typically a
// push-notification bridge in front of the consumer devices.
type WebhookNotifier struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookNotifier(endpoint string) (*WebhookNotifier, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookNotifierWithClient(endpoint, client)
}

func NewWebhookNotifierWithClient(endpoint string, client *resty.Client) (*WebhookNotifier, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookNotifier{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (n *WebhookNotifier) Deliver(ctx context.Context, delivery Delivery) (*DeliveryReceipt, error) {
	if n == nil || n.client == nil {
		return nil, fmt.Errorf("notifier is not initialized")
	}
	if strings.TrimSpace(delivery.BatchID) == "" {
		return nil, fmt.Errorf("batch id is required")
	}
	if len(delivery.URLs) == 0 {
		return nil, fmt.Errorf("delivery payload is empty")
	}

	reqBody := webhookRequest{
		BatchID: delivery.BatchID,
		Label:   delivery.Label,
		To:      delivery.Address,
		Links:   delivery.URLs,
		Count:   len(delivery.URLs),
	}

	response, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(n.endpoint)
	if err != nil {
		return nil, &DeliveryError{
			Message:   "notifier request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &DeliveryError{
			Message:   "notifier returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &DeliveryReceipt{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  deliveryMessageID(response),
		}, nil
	}

	return nil, &DeliveryError{
		StatusCode: statusCode,
		Message:    deliveryErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func deliveryErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("notifier returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func deliveryMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Request-ID", "X-Request-Id", "X-Message-ID", "X-Message-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
