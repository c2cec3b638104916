package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrInvalidNotification is returned for a webhook body that is not a notification
var ErrInvalidNotification = errors.New("webhook: invalid notification")

// Notification is a Recurly JSON webhook notification.
type Notification struct {
	ID          string `json:"id"`
	ObjectType  string `json:"object_type"`
	SiteID      string `json:"site_id"`
	EventType   string `json:"event_type"`
	EventTime   string `json:"event_time"`
	UUID        string `json:"uuid"`
	AccountCode string `json:"account_code,omitempty"`
}

// IsSuccessfulPayment reports whether the notification announces a captured payment.
func (n Notification) IsSuccessfulPayment() bool {
	return n.ObjectType == "payment" && (n.EventType == "succeeded" || n.EventType == "successful")
}

// WebhookService records Recurly notifications. It does not change any state.
type WebhookService struct {
	logger *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(logger *zap.Logger) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{logger: logger}
}

// HandleNotification parses and logs a notification body.
func (s *WebhookService) HandleNotification(ctx context.Context, payload []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, errors.Join(ErrInvalidNotification, err)
	}
	if strings.TrimSpace(n.ObjectType) == "" || strings.TrimSpace(n.EventType) == "" {
		return nil, ErrInvalidNotification
	}

	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.String("object_type", n.ObjectType),
		zap.String("event_type", n.EventType),
		zap.String("account_code", n.AccountCode),
		zap.String("uuid", n.UUID),
	}
	if n.IsSuccessfulPayment() {
		s.logger.Info("Recurly successful payment notification", fields...)
	} else {
		s.logger.Debug("Recurly notification received", fields...)
	}

	return &n, nil
}
