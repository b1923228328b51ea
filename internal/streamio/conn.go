package streamio

import (
	"io"
	"sync"
	"sync/atomic"
)

const (
	// DefaultBacklog is the most unread bytes a Conn holds.
	DefaultBacklog = 4096

	// readChunkSize is the size of each read from the underlying stream.
	readChunkSize = 256
)

// closeOnce wraps a channel with sync.Once so Close can be called twice.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// ConnStats holds byte counters for a Conn.
type ConnStats struct {
	BytesRead    uint64
	BytesWritten uint64
	BytesDropped uint64 // oldest bytes discarded when the backlog overflowed
}

// Conn adapts an io.ReadWriteCloser to a polled, non-blocking stream.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Conn struct {
	rwc     io.ReadWriteCloser
	backlog int

	mu      sync.Mutex
	buf     []byte
	readErr error

	writeMu sync.Mutex

	done   *closeOnce
	closed atomic.Bool
	wg     sync.WaitGroup

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
	bytesDropped atomic.Uint64
}

// NewConn starts reading from rwc in the background. A non-positive backlog
// selects DefaultBacklog.
func NewConn(rwc io.ReadWriteCloser, backlog int) *Conn {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	c := &Conn{
		rwc:     rwc,
		backlog: backlog,
		done:    newCloseOnce(),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer c.wg.Done()

	chunk := make([]byte, readChunkSize)
	for {
		n, err := c.rwc.Read(chunk)
		if n > 0 {
			c.append(chunk[:n])
		}
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}
		select {
		case <-c.done.Done():
			return
		default:
		}
	}
}

// append adds p to the buffer, dropping the oldest bytes past the backlog.
func (c *Conn) append(p []byte) {
	c.bytesRead.Add(uint64(len(p)))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, p...)
	if over := len(c.buf) - c.backlog; over > 0 {
		c.bytesDropped.Add(uint64(over))
		c.buf = append(c.buf[:0], c.buf[over:]...)
	}
}

// Available reports whether unread bytes are buffered.
func (c *Conn) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf) > 0
}

// ReadAvailable returns every buffered byte. Once the buffer is drained it
// returns the error that ended the background reader, if any.
func (c *Conn) ReadAvailable() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) == 0 {
		return "", c.readErr
	}
	s := string(c.buf)
	c.buf = c.buf[:0]
	return s, nil
}

// WriteString writes s to the underlying stream.
func (c *Conn) WriteString(s string) (int, error) {
	select {
	case <-c.done.Done():
		return 0, ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	n, err := io.WriteString(c.rwc, s)
	c.bytesWritten.Add(uint64(n))
	return n, err
}

// Err returns the error that ended the background reader, or nil while it
// is still running. io.EOF is reported as is.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Stats returns the byte counters.
func (c *Conn) Stats() ConnStats {
	return ConnStats{
		BytesRead:    c.bytesRead.Load(),
		BytesWritten: c.bytesWritten.Load(),
		BytesDropped: c.bytesDropped.Load(),
	}
}

// Close closes the underlying stream and waits for the reader to exit.
// Later calls return nil.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.done.Close()
	err := c.rwc.Close()
	c.wg.Wait()
	return err
}
