// serial/host.go
package serial

import (
	"context"
	"io"
	"time"

	"gpibengine/x/shmring"
)

// Host adapts any io.ReadWriter — a real OS serial port when built for
// the host, an in-memory pipe in tests — into a Stream backed by an
// shmring.Ring, so a slow or bursty transport never blocks the bridge's
// read loop for longer than a ring drain.
type Host struct {
	rw     io.ReadWriter
	ring   *shmring.Ring
	handle shmring.Handle

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHost wraps rw. ringSize must be a power of two; 0 selects a 256-byte
// default. The ring is registered in shmring's process-wide registry so a
// multi-port bring-up (cmd/gpib-adapter) can enumerate and inspect every
// open port's buffering by Handle without holding onto the Host itself.
func NewHost(rw io.ReadWriter, ringSize int) *Host {
	if ringSize <= 0 {
		ringSize = 256
	}
	h, ring := shmring.NewRegistered(ringSize)
	return &Host{rw: rw, ring: ring, handle: h}
}

// Handle returns the registry handle for this port's ring, suitable for
// shmring.Get from another goroutine (e.g. a REPL "ports" command).
func (h *Host) Handle() shmring.Handle { return h.handle }

// Start launches the background pump that copies bytes from the
// underlying transport into the ring until ctx is canceled or Stop is
// called.
func (h *Host) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.pump(cctx)
}

// Stop cancels the pump goroutine, waits for it to exit, and forgets this
// port's ring in the shmring registry. A transport Read still blocked at
// that point is left to return on its own; its bytes are dropped.
func (h *Host) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
	shmring.Close(h.handle)
}

func (h *Host) pump(ctx context.Context) {
	defer close(h.done)
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		// Read in a helper goroutine so cancellation is seen even while
		// the transport Read blocks.
		type readResult struct {
			n   int
			err error
		}
		rc := make(chan readResult, 1)
		go func() {
			n, err := h.rw.Read(buf)
			rc <- readResult{n, err}
		}()
		var r readResult
		select {
		case r = <-rc:
		case <-ctx.Done():
			return
		}
		n, err := r.n, r.err
		if n > 0 {
			chunk := buf[:n]
			for len(chunk) > 0 {
				w := h.ring.TryWriteFrom(chunk)
				if w == 0 {
					// Ring full: wait briefly for the consumer to drain
					// rather than busy-spin or silently drop bytes.
					select {
					case <-h.ring.Writable():
					case <-ctx.Done():
						return
					case <-time.After(10 * time.Millisecond):
					}
					continue
				}
				chunk = chunk[w:]
			}
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			select {
			case <-time.After(10 * time.Millisecond):
			case <-ctx.Done():
				return
			}
		}
	}
}

// Read implements Stream by draining whatever the pump has buffered so
// far. It never blocks; callers select on Readable() first.
func (h *Host) Read(p []byte) (int, error) {
	n := h.ring.TryReadInto(p)
	return n, nil
}

func (h *Host) Write(p []byte) (int, error) { return h.rw.Write(p) }

// Readable signals on the empty-to-non-empty edge of the buffering ring.
func (h *Host) Readable() <-chan struct{} { return h.ring.Readable() }
