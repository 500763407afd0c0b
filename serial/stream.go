// serial/stream.go
package serial

import "io"

// Stream is the byte transport the command bridge reads parsed GPIB
// commands from and writes data/status back to: a host USB-serial link
// in production, an in-memory pipe in tests.
type Stream interface {
	io.Reader
	io.Writer
	Readable() <-chan struct{}
}
