package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/commerce-recurly/internal/domain/billing"
	"github.com/erp/commerce-recurly/internal/domain/commerce"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"github.com/erp/commerce-recurly/internal/domain/shared"
	"github.com/erp/commerce-recurly/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

var (
	// ErrReturnAlreadyProcessed is returned for a repeated return of the same order
	ErrReturnAlreadyProcessed = shared.NewDomainError(shared.CodeAlreadyProcessed, "This payment return has already been processed")
	// ErrMissingToken is returned when the return request carries no billing token
	ErrMissingToken = errors.New("payment return: Recurly token is missing")
)

// Stage is a step of the return workflow.
type Stage string

const (
	StageStart               Stage = "start"
	StagePatternSelected     Stage = "pattern_selected"
	StageAccountResolved     Stage = "account_resolved"
	StageBillingInfoAttached Stage = "billing_info_attached"
	StagePurchaseSubmitted   Stage = "purchase_submitted"
)

// Return outcomes reported to a ReturnRecorder
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

// ReturnRecorder receives the outcome of every return.
type ReturnRecorder interface {
	RecordReturn(ctx context.Context, gatewayID, outcome, stage string, elapsed time.Duration)
}

// PurchaseResult describes a completed return.
type PurchaseResult struct {
	GatewayID      string                     `json:"gateway_id"`
	OrderID        string                     `json:"order_id"`
	Pattern        gateway.PatternKey         `json:"pattern"`
	AccountCode    string                     `json:"account_code"`
	AccountCreated bool                       `json:"account_created"`
	AccountURL     string                     `json:"account_url,omitempty"`
	LineItems      []billing.LineItem         `json:"line_items"`
	Invoices       *billing.InvoiceCollection `json:"invoices,omitempty"`
}

// ReturnService completes a payment when the customer returns from the
// offsite payment page. Every failure inside the workflow is reported to the
// customer and returned as a *gateway.PaymentGatewayError.
type ReturnService struct {
	configs        gateway.ConfigurationRepository
	clients        billing.ClientFactory
	resolver       *AccountResolver
	submitter      *PurchaseSubmitter
	messenger      gateway.UserMessenger
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	recorder       ReturnRecorder
	now            func() time.Time
	logger         *zap.Logger
}

// ReturnServiceConfig holds dependencies for the return service
type ReturnServiceConfig struct {
	Configurations gateway.ConfigurationRepository
	Clients        billing.ClientFactory
	Resolver       *AccountResolver
	Submitter      *PurchaseSubmitter
	Messenger      gateway.UserMessenger
	// Idempotency is optional; without it repeated returns are not detected
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	// Recorder is optional
	Recorder ReturnRecorder
	Logger   *zap.Logger
}

// NewReturnService creates a new ReturnService
func NewReturnService(config ReturnServiceConfig) *ReturnService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	messenger := config.Messenger
	if messenger == nil {
		messenger = gateway.UserMessengerFunc(func(context.Context, string) {})
	}
	ttl := config.IdempotencyTTL
	if ttl <= 0 {
		ttl = shared.DefaultClaimTTL
	}

	return &ReturnService{
		configs:        config.Configurations,
		clients:        config.Clients,
		resolver:       config.Resolver,
		submitter:      config.Submitter,
		messenger:      messenger,
		idempotency:    config.Idempotency,
		idempotencyTTL: ttl,
		recorder:       config.Recorder,
		now:            time.Now,
		logger:         logger,
	}
}

// OnReturn runs the return workflow for an order paid with token.
func (s *ReturnService) OnReturn(ctx context.Context, gatewayID string, order *commerce.Order, token string) (*PurchaseResult, error) {
	started := s.now()
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_return", "complete",
		telemetry.WithAttribute(telemetry.SpanAttrGatewayID, gatewayID))
	defer span.End()

	if order == nil {
		err := s.fail(ctx, gatewayID, "", StageStart, commerce.ErrOrderMissing)
		telemetry.RecordError(span, err)
		s.record(ctx, gatewayID, OutcomeFailed, StageStart, started)
		return nil, err
	}
	orderID := order.ID.String()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, orderID,
		telemetry.SpanAttrItemCount, len(order.Items),
	)

	// Without an order ID there is nothing to tell two returns apart by.
	claimed := s.idempotency != nil && order.HasID()
	key := returnKey(gatewayID, orderID)
	if claimed {
		marked, err := s.idempotency.MarkProcessed(ctx, key, s.idempotencyTTL)
		if err != nil {
			s.logger.Warn("Idempotency check failed, continuing without it",
				zap.String("key", key),
				zap.Error(err))
			claimed = false
		} else if !marked {
			s.logger.Info("Duplicate payment return ignored",
				zap.String("gateway_id", gatewayID),
				zap.String("order_id", orderID))
			telemetry.AddEvent(span, "duplicate_return")
			s.record(ctx, gatewayID, OutcomeDuplicate, StageStart, started)
			return nil, ErrReturnAlreadyProcessed
		}
	} else if s.idempotency != nil {
		s.logger.Debug("Order has no ID, duplicate return check skipped",
			zap.String("gateway_id", gatewayID))
	}

	result, stage, err := s.complete(ctx, gatewayID, order, token)
	telemetry.SetAttributes(span, telemetry.SpanAttrStage, string(stage))
	if err != nil {
		if claimed {
			if releaseErr := s.idempotency.Release(ctx, key); releaseErr != nil {
				s.logger.Warn("Failed to release idempotency key",
					zap.String("key", key),
					zap.Error(releaseErr))
			}
		}
		err = s.fail(ctx, gatewayID, orderID, stage, err)
		telemetry.RecordError(span, err)
		s.record(ctx, gatewayID, OutcomeFailed, stage, started)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPattern, result.Pattern.String(),
		telemetry.SpanAttrAccountCode, result.AccountCode,
	)
	s.record(ctx, gatewayID, OutcomeCompleted, stage, started)

	s.logger.Info("Payment return completed",
		zap.String("gateway_id", gatewayID),
		zap.String("order_id", orderID),
		zap.String("pattern", result.Pattern.String()),
		zap.String("account_code", result.AccountCode),
		zap.Bool("account_created", result.AccountCreated))

	return result, nil
}

func (s *ReturnService) record(ctx context.Context, gatewayID, outcome string, stage Stage, started time.Time) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordReturn(ctx, gatewayID, outcome, string(stage), s.now().Sub(started))
}

// complete runs the workflow and reports the last stage reached.
func (s *ReturnService) complete(ctx context.Context, gatewayID string, order *commerce.Order, token string) (*PurchaseResult, Stage, error) {
	stage := StageStart

	cfg, err := s.configs.FindByGatewayID(ctx, gatewayID)
	if err != nil {
		return nil, stage, fmt.Errorf("load gateway configuration: %w", err)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, stage, ErrMissingToken
	}

	isPlan := make([]bool, len(order.Items))
	for i := range order.Items {
		isPlan[i] = cfg.IsPlanVariation(order.Items[i].PurchasedEntity.VariationType)
	}
	pattern := gateway.SelectPattern(isPlan)
	stage = StagePatternSelected

	code, err := s.resolver.RenderAccountCode(ctx, cfg.AccountIDPatterns, pattern, order)
	if err != nil {
		return nil, stage, err
	}

	lineItems, err := s.submitter.BuildLineItems(order.Items)
	if err != nil {
		return nil, stage, err
	}

	client, err := s.clients.NewClient(cfg.Credentials())
	if err != nil {
		return nil, stage, fmt.Errorf("initialize Recurly client: %w", err)
	}

	resolved, err := s.resolver.Resolve(ctx, client, code, order)
	if err != nil {
		return nil, stage, err
	}
	stage = StageAccountResolved

	if err := s.submitter.AttachBillingInfo(ctx, client, code, token); err != nil {
		return nil, stage, err
	}
	stage = StageBillingInfoAttached

	invoices, err := s.submitter.Submit(ctx, client, code, token, lineItems)
	if err != nil {
		return nil, stage, err
	}
	stage = StagePurchaseSubmitted

	result := &PurchaseResult{
		GatewayID:      gatewayID,
		OrderID:        order.ID.String(),
		Pattern:        pattern,
		AccountCode:    code,
		AccountCreated: resolved.Created,
		LineItems:      lineItems,
		Invoices:       invoices,
	}
	if resolved.Account != nil {
		result.AccountURL = resolved.Account.AdminURL
	}

	return result, stage, nil
}

// fail reports err to the customer and wraps it for the host framework.
func (s *ReturnService) fail(ctx context.Context, gatewayID, orderID string, stage Stage, err error) error {
	pgErr := gateway.NewPaymentGatewayError(err)

	fields := []zap.Field{
		zap.String("gateway_id", gatewayID),
		zap.String("order_id", orderID),
		zap.String("stage", string(stage)),
		zap.Error(err),
	}
	if code := shared.CodeOf(err); code != "" {
		fields = append(fields, zap.String("error_code", code))
	}
	s.logger.Error("Payment return failed", fields...)

	s.messenger.AddError(ctx, pgErr.UserMessage())
	return pgErr
}

func returnKey(gatewayID, orderID string) string {
	return "return:" + gatewayID + ":" + orderID
}
