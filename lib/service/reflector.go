package service

import (
	"context"
	"errors"

	"github.com/acceptevm/acceptevm.go/db/models"
)

// ErrReflectorClosed : the consumer side of the reflector went away.
var ErrReflectorClosed = errors.New("reflector channel closed")

// Reflector is the consumer-facing side of the gateway: whatever
// implements it receives every settled invoice, successful sweep or
// not. Delivery is best-effort and decoupled from the loop's own error
// handling; implementations must not block past the context.
type Reflector interface {
	ReflectSettled(ctx context.Context, settled models.SettledInvoice) error
}

// ChannelReflector delivers settled invoices into a channel the
// consumer reads from. A full channel blocks until the bounded enqueue
// wait expires; a closed channel is reported as an error instead of
// panicking the loop.
type ChannelReflector struct {
	C chan models.SettledInvoice
}

func NewChannelReflector(buffer int) *ChannelReflector {
	return &ChannelReflector{C: make(chan models.SettledInvoice, buffer)}
}

func (r *ChannelReflector) ReflectSettled(ctx context.Context, settled models.SettledInvoice) (err error) {
	defer func() {
		if recover() != nil {
			err = ErrReflectorClosed
		}
	}()
	select {
	case r.C <- settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CallbackReflector invokes a consumer-supplied function for every
// settled invoice.
type CallbackReflector struct {
	Callback func(ctx context.Context, settled models.SettledInvoice) error
}

func (r *CallbackReflector) ReflectSettled(ctx context.Context, settled models.SettledInvoice) error {
	return r.Callback(ctx, settled)
}

var (
	_ Reflector = (*ChannelReflector)(nil)
	_ Reflector = (*CallbackReflector)(nil)
)
