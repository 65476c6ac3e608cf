package crawlcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextCancelledReflectsSignal(t *testing.T) {
	cancel := make(chan struct{})
	cc := Context{Cancel: cancel}
	assert.False(t, cc.Cancelled())

	close(cancel)
	assert.True(t, cc.Cancelled())
}

func TestContextWithTimeoutCancelsOnSignal(t *testing.T) {
	cancel := make(chan struct{})
	cc := Context{Cancel: cancel}

	ctx, stop := cc.WithTimeout(context.Background())
	defer stop()

	close(cancel)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected WithTimeout's context to be cancelled by the signal")
	}
}

func TestContextWithTimeoutCancelsOnStop(t *testing.T) {
	cc := Context{Cancel: make(chan struct{})}

	ctx, stop := cc.WithTimeout(context.Background())
	stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected WithTimeout's context to be cancelled by stop")
	}
}

func TestContextWithTimeoutRespectsParentDeadline(t *testing.T) {
	cc := Context{Cancel: make(chan struct{})}
	parent, parentCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer parentCancel()

	ctx, stop := cc.WithTimeout(parent)
	defer stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected WithTimeout's context to inherit the parent deadline")
	}
}
