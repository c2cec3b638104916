package handler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestMessenger_CollectsPerRequest(t *testing.T) {
	messenger := RequestMessenger()

	ctxA, bagA := withMessages(context.Background())
	ctxB, bagB := withMessages(context.Background())

	messenger.AddError(ctxA, "first")
	messenger.AddError(ctxB, "other")
	messenger.AddError(ctxA, "second")

	assert.Equal(t, []string{"first", "second"}, bagA.list())
	assert.Equal(t, []string{"other"}, bagB.list())
}

func TestRequestMessenger_NoBag(t *testing.T) {
	assert.NotPanics(t, func() {
		RequestMessenger().AddError(context.Background(), "dropped")
	})
}

func TestRequestMessenger_Concurrent(t *testing.T) {
	messenger := RequestMessenger()
	ctx, bag := withMessages(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			messenger.AddError(ctx, "msg")
		}()
	}
	wg.Wait()

	assert.Len(t, bag.list(), 20)
}
