package api

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestClientLimiter(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	l := newClientLimiter(2, clock)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "clients are limited independently")

	clock.Advance(30 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "one token refills every 30s")
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestClientLimiter_SweepsIdleClients(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	l := newClientLimiter(1, clock)

	l.Allow("10.0.0.1")
	clock.Advance(limiterIdleTTL + time.Second)
	l.Allow("10.0.0.2")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.clients, 1)
	assert.Contains(t, l.clients, "10.0.0.2")
}

func TestClientLimiter_Disabled(t *testing.T) {
	l := newClientLimiter(0, clockwork.NewFakeClock())
	for i := 0; i < 100; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("attempt %d was limited", i)
		}
	}
}
