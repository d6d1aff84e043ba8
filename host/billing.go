package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/odvcencio/meacode/bridge"
)

// Billing has no backend yet: every user is on the free plan.
func (h *Handler) billingCommands() []Command {
	type userParams struct {
		UserID string `json:"userId"`
		Plan   string `json:"plan"`
	}
	return []Command{
		{
			Name:        bridge.CmdGetSubscription,
			Description: "Subscription of a user.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				if _, err := bind[userParams](params); err != nil {
					return nil, err
				}
				return bridge.Subscription{Plan: "free", Status: "active"}, nil
			},
		},
		{
			Name:        bridge.CmdCreateCheckoutSession,
			Description: "Starts a checkout for a paid plan.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[userParams](params)
				if err != nil {
					return nil, err
				}
				h.log.Info().Str("user", p.UserID).Str("plan", p.Plan).Msg("checkout requested")
				return nil, fmt.Errorf("%w: checkout session creation not yet implemented, configure a Stripe backend", ErrNotConfigured)
			},
		},
		{
			Name:        bridge.CmdCancelSubscription,
			Description: "Cancels a subscription at period end.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				if _, err := bind[userParams](params); err != nil {
					return nil, err
				}
				return nil, fmt.Errorf("%w: subscription cancellation not yet implemented, configure a backend", ErrNotConfigured)
			},
		},
	}
}
