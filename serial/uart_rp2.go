// serial/uart_rp2.go
//go:build rp2040 || rp2350

package serial

import (
	"context"
	"fmt"

	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// NewRP2UART opens uart0 or uart1 at baud and wraps it as a Host-backed
// Stream for the command bridge.
func NewRP2UART(id string, baud uint32, tx, rx uint8) (*Host, error) {
	var hw *uartx.UART
	switch id {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, fmt.Errorf("serial: unknown UART id %q", id)
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.Pin(tx),
		RX:       machine.Pin(rx),
	}); err != nil {
		return nil, err
	}
	return NewHost(&uartxReadWriter{u: hw}, 512), nil
}

// uartxReadWriter adapts *uartx.UART to io.ReadWriter so it can back a
// Host the same way a host-side serial port does.
type uartxReadWriter struct{ u *uartx.UART }

func (w *uartxReadWriter) Write(p []byte) (int, error) { return w.u.Write(p) }

func (w *uartxReadWriter) Read(p []byte) (int, error) {
	return w.u.RecvSomeContext(context.Background(), p)
}
