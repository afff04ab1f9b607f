package upstream

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeEmptyStream_EOFWithZeroBytesIsEmpty(t *testing.T) {
	r := strings.NewReader("")
	result := ProbeEmptyStream(r, 50*time.Millisecond, 256)
	assert.True(t, result.Empty)
}

func TestProbeEmptyStream_DataLineIsNonEmpty(t *testing.T) {
	r := strings.NewReader("event: response.created\ndata: {\"type\":\"ping\"}\n\n")
	result := ProbeEmptyStream(r, 50*time.Millisecond, 256)
	assert.False(t, result.Empty)
}

func TestProbeEmptyStream_ReplaysConsumedBytes(t *testing.T) {
	payload := "data: {\"hello\":true}\n\n"
	r := strings.NewReader(payload)
	result := ProbeEmptyStream(r, 50*time.Millisecond, 4096)
	require.False(t, result.Empty)
	replayed, err := io.ReadAll(result.Reader)
	require.NoError(t, err)
	assert.Equal(t, payload, string(replayed))
}

type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	select {}
}

func TestProbeEmptyStream_TimeoutWithNoBytesIsEmpty(t *testing.T) {
	result := ProbeEmptyStream(blockingReader{}, 10*time.Millisecond, 256)
	assert.True(t, result.Empty)
}
