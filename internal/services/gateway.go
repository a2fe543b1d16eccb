// internal/services/gateway.go
package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
)

// GatewayConfirmation is what the payment gateway reports for a reference.
type GatewayConfirmation struct {
	Reference string
	Succeeded bool
	Amount    decimal.Decimal
	Currency  string
}

// PaymentGateway is the opaque verifier and refunder behind automated escrow.
type PaymentGateway interface {
	Confirm(ctx context.Context, reference string) (*GatewayConfirmation, error)
	Refund(ctx context.Context, reference string, amount decimal.Decimal, reason string) error
}

type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) Confirm(ctx context.Context, reference string) (*GatewayConfirmation, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(reference, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	return &GatewayConfirmation{
		Reference: pi.ID,
		Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded,
		// Stripe amounts are in the smallest currency unit.
		Amount:   decimal.New(pi.AmountReceived, -2),
		Currency: string(pi.Currency),
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal, reason string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(reference),
		Amount:        stripe.Int64(amount.Shift(2).IntPart()),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("failed to process refund: %w", err)
	}
	return nil
}
