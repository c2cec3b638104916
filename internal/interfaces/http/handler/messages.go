package handler

import (
	"context"
	"sync"

	"github.com/erp/commerce-recurly/internal/domain/gateway"
)

type messagesKey struct{}

// messageBag collects the customer-facing messages raised while serving one
// request. The host renders them next to the checkout.
type messageBag struct {
	mu       sync.Mutex
	messages []string
}

func (b *messageBag) add(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message)
}

func (b *messageBag) list() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.messages...)
}

// withMessages returns a context carrying an empty message bag.
func withMessages(ctx context.Context) (context.Context, *messageBag) {
	bag := &messageBag{}
	return context.WithValue(ctx, messagesKey{}, bag), bag
}

// RequestMessenger adds messages to the bag carried by the request context.
// Messages raised outside a request are dropped.
func RequestMessenger() gateway.UserMessenger {
	return gateway.UserMessengerFunc(func(ctx context.Context, message string) {
		if bag, ok := ctx.Value(messagesKey{}).(*messageBag); ok {
			bag.add(message)
		}
	})
}
