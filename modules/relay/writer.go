package relay

import (
	"io"
	"sync"
)

// ChannelWriter hands written chunks to a single consumer. Writers block
// while the channel is full and fail once it is closed.
type ChannelWriter struct {
	mu       sync.RWMutex
	dataChan chan []byte
	done     chan struct{}
	once     sync.Once
	closed   bool
}

func NewChannelWriter() *ChannelWriter {
	return &ChannelWriter{
		dataChan: make(chan []byte, 1024),
		done:     make(chan struct{}),
	}
}

// Write queues a copy of p.
func (cw *ChannelWriter) Write(p []byte) (n int, err error) {
	cw.mu.RLock()
	defer cw.mu.RUnlock()

	if cw.closed {
		return 0, io.ErrClosedPipe
	}

	b := make([]byte, len(p))
	copy(b, p)

	select {
	case cw.dataChan <- b:
		return len(p), nil
	case <-cw.done:
		return 0, io.ErrClosedPipe
	}
}

// Close releases blocked writers and closes the channel.
func (cw *ChannelWriter) Close() error {
	cw.once.Do(func() { close(cw.done) })

	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.closed {
		close(cw.dataChan)
		cw.closed = true
	}

	return nil
}
