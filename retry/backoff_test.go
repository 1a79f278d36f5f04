package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStrategy(t *testing.T) {
	strategy := DefaultStrategy()

	assert.Equal(t, 0, strategy.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, strategy.BaseDelay)
	assert.Equal(t, 30*time.Second, strategy.MaxDelay)
	assert.Equal(t, 2.0, strategy.ExponentialBase)
}

func TestStrategy_Delay(t *testing.T) {
	strategy := DefaultStrategy()

	tests := []struct {
		name          string
		attempt       int
		expectedDelay time.Duration
	}{
		{name: "zero attempts - base delay", attempt: 0, expectedDelay: 250 * time.Millisecond},
		{name: "first attempt - doubled", attempt: 1, expectedDelay: 500 * time.Millisecond},
		{name: "second attempt", attempt: 2, expectedDelay: time.Second},
		{name: "fourth attempt", attempt: 4, expectedDelay: 4 * time.Second},
		{name: "capped at max delay", attempt: 20, expectedDelay: 30 * time.Second},
		{name: "negative attempt - base delay", attempt: -1, expectedDelay: 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedDelay, strategy.Delay(tt.attempt))
		})
	}
}

func TestStrategy_Exhausted(t *testing.T) {
	unbounded := DefaultStrategy()
	assert.False(t, unbounded.Exhausted(0))
	assert.False(t, unbounded.Exhausted(1000))

	bounded := Strategy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second, ExponentialBase: 2.0}
	assert.False(t, bounded.Exhausted(2))
	assert.True(t, bounded.Exhausted(3))
	assert.True(t, bounded.Exhausted(4))
}
