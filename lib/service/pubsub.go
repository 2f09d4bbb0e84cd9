package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/acceptevm/acceptevm.go/db/models"
)

// TopicSettledInvoices is the topic the reconciliation loop publishes
// to when the Pubsub is used as the gateway's reflector.
const TopicSettledInvoices = "invoice_settled"

// Pubsub fans settled invoices out to any number of subscribers. It
// can be handed to the gateway as its Reflector when more than one
// consumer wants the settlement stream.
type Pubsub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan models.SettledInvoice
}

func NewPubsub() *Pubsub {
	ps := &Pubsub{}
	ps.subs = make(map[string]map[string]chan models.SettledInvoice)
	return ps
}

func (ps *Pubsub) Subscribe(topic string, ch chan models.SettledInvoice) (subID string, err error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		ps.subs[topic] = make(map[string]chan models.SettledInvoice)
	}
	subID, err = makeSubscriptionID()
	if err != nil {
		return "", err
	}
	ps.subs[topic][subID] = ch
	return subID, nil
}

func (ps *Pubsub) Unsubscribe(subID string, topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		return
	}
	if ps.subs[topic][subID] == nil {
		return
	}
	close(ps.subs[topic][subID])
	delete(ps.subs[topic], subID)
}

// Publish delivers to every subscriber of the topic that can accept
// the message within the context. A slow subscriber loses messages
// rather than holding up the rest.
func (ps *Pubsub) Publish(ctx context.Context, topic string, msg models.SettledInvoice) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, ch := range ps.subs[topic] {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// ReflectSettled makes the Pubsub usable as the gateway's Reflector.
func (ps *Pubsub) ReflectSettled(ctx context.Context, settled models.SettledInvoice) error {
	ps.Publish(ctx, TopicSettledInvoices, settled)
	return ctx.Err()
}

func makeSubscriptionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var _ Reflector = (*Pubsub)(nil)
