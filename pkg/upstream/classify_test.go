package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableBody_EmptyBodyIsRetryable(t *testing.T) {
	assert.True(t, IsRetryableBody(400, nil))
}

func TestIsRetryableBody_NonRetryableStatusIsFalse(t *testing.T) {
	assert.False(t, IsRetryableBody(500, nil))
}

func TestIsRetryableBody_InvalidAPIKeyIsNotRetryable(t *testing.T) {
	assert.False(t, IsRetryableBody(400, []byte(`{"error":"invalid api key"}`)))
}

func TestIsRetryableBody_RouteNotFoundIsNotRetryable(t *testing.T) {
	assert.False(t, IsRetryableBody(400, []byte(`{"error":"route not found"}`)))
}

func TestIsRetryableBody_UnknownShapeErrorIsRetryable(t *testing.T) {
	assert.True(t, IsRetryableBody(422, []byte(`{"error":"unrecognized field 'foo'"}`)))
}

func TestShouldHopURL(t *testing.T) {
	assert.True(t, ShouldHopURL(404))
	assert.True(t, ShouldHopURL(503))
	assert.True(t, ShouldHopURL(400))
	assert.False(t, ShouldHopURL(409))
}
