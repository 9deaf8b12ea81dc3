package transload

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_countsBytesRead(t *testing.T) {
	stats := NewStats()
	payload := bytes.Repeat([]byte("a"), 10000)

	n, err := io.Copy(io.Discard, stats.Reader(bytes.NewReader(payload)))

	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, int64(len(payload)), stats.Bytes())
}

func TestStats_clockStartsOnFirstRead(t *testing.T) {
	stats := NewStats()
	reader := stats.Reader(bytes.NewReader([]byte("abcdef")))
	time.Sleep(20 * time.Millisecond)

	buf := make([]byte, 3)
	_, err := reader.Read(buf)
	require.NoError(t, err)

	assert.Less(t, stats.Elapsed(), 20*time.Millisecond)
}

func TestStats_emptyReaderHasNoThroughput(t *testing.T) {
	stats := NewStats()

	_, err := io.Copy(io.Discard, stats.Reader(bytes.NewReader(nil)))

	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Bytes())
	assert.Equal(t, time.Duration(0), stats.Elapsed())
	assert.Equal(t, float64(0), stats.BytesPerSecond())
}
