package transload

import (
	"io"
	"sync"
	"time"
)

// Stats tracks how many bytes moved through a transfer and for how long.
type Stats struct {
	bytes   int64
	started time.Time
	elapsed time.Duration
	mu      sync.Mutex
}

// NewStats ...
func NewStats() *Stats {
	return &Stats{}
}

// Reader wraps r so every read is accounted. The clock starts on the first read.
func (s *Stats) Reader(r io.Reader) io.Reader {
	return &countingReader{reader: r, stats: s}
}

func (s *Stats) add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		s.started = time.Now()
	}
	s.bytes += int64(n)
	s.elapsed = time.Since(s.started)
}

// Bytes returns the number of bytes read so far.
func (s *Stats) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Elapsed returns the time between the first and the latest read.
func (s *Stats) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// BytesPerSecond returns the average throughput, 0 before any measurable time passed.
func (s *Stats) BytesPerSecond() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.elapsed <= 0 {
		return 0
	}
	return float64(s.bytes) / s.elapsed.Seconds()
}

type countingReader struct {
	reader io.Reader
	stats  *Stats
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.stats.add(n)
	}
	return n, err
}
