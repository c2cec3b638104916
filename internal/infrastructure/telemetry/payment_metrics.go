package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter is nil")

// PaymentMetrics records the outcome of payment returns.
type PaymentMetrics struct {
	returnsTotal   *Counter
	returnDuration *Histogram
}

// NewPaymentMetrics creates the payment instruments on meter.
func NewPaymentMetrics(meter metric.Meter) (*PaymentMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	returnsTotal, err := NewCounter(
		meter,
		"payment_returns_total",
		"Number of offsite payment returns by outcome",
		"{returns}",
	)
	if err != nil {
		return nil, err
	}

	returnDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "payment_return_duration_seconds",
		Description: "Time spent completing a payment return",
		Unit:        "s",
		Boundaries:  PaymentDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &PaymentMetrics{
		returnsTotal:   returnsTotal,
		returnDuration: returnDuration,
	}, nil
}

// RecordReturn counts one return. stage is the last workflow stage reached.
func (m *PaymentMetrics) RecordReturn(ctx context.Context, gatewayID, outcome, stage string, elapsed time.Duration) {
	m.returnsTotal.Inc(ctx,
		AttrGatewayID.String(gatewayID),
		AttrOutcome.String(outcome),
		AttrStage.String(stage),
	)
	m.returnDuration.RecordDuration(ctx, elapsed,
		AttrGatewayID.String(gatewayID),
		AttrOutcome.String(outcome),
	)
}
