package waitlist

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Offerer proposes a slot to a patient and reports whether it was accepted.
// Implementations must honour ctx: the matcher bounds every offer with a
// timeout and treats an expired or failed offer as a decline.
type Offerer interface {
	Offer(ctx context.Context, offer Offer) (bool, error)
}

// AutoAcceptOfferer accepts every offer. It is used until a notification
// channel with patient replies is connected.
type AutoAcceptOfferer struct{}

func (AutoAcceptOfferer) Offer(ctx context.Context, o Offer) (bool, error) {
	log.Ctx(ctx).Info().
		Str("entry_id", o.Entry.ID.String()).
		Str("slot", o.Slot.Key.String()).
		Msg("slot offered to waiting patient")
	return true, nil
}

// OffererFunc adapts a function to Offerer.
type OffererFunc func(ctx context.Context, offer Offer) (bool, error)

func (f OffererFunc) Offer(ctx context.Context, o Offer) (bool, error) { return f(ctx, o) }
