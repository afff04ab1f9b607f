package upstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLLimiter_AllowConsumesBurstIndependentlyPerURL(t *testing.T) {
	l := NewURLLimiter(1, 1)
	assert.True(t, l.Allow("https://a.example/v1/responses"))
	assert.False(t, l.Allow("https://a.example/v1/responses"))
	assert.True(t, l.Allow("https://b.example/v1/responses"))
}

func TestURLLimiter_WaitUnblocksImmediatelyWithBurst(t *testing.T) {
	l := NewURLLimiter(10, 5)
	err := l.Wait(context.Background(), "https://a.example/v1/responses")
	assert.NoError(t, err)
}
