package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)

	b.Failure()
	b.Failure()
	assert.True(t, b.Allow(), "below threshold stays closed")

	b.Failure()
	assert.False(t, b.Allow(), "threshold reached opens the breaker")
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker("test", 2, time.Minute)

	b.Failure()
	b.Success()
	b.Failure()
	assert.True(t, b.Allow(), "success in between resets the streak")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond)

	b.Failure()
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow(), "cooldown elapsed lets one probe through")

	b.Failure()
	assert.False(t, b.Allow(), "failed probe reopens immediately")

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	b.Success()
	assert.True(t, b.Allow(), "successful probe closes the breaker")
}
