// serial/worker.go
package serial

import (
	"context"
	"time"

	"gpibengine/x/timex"
)

// Event is a framed chunk read from a Stream, tagged with the direction
// it flowed (the bridge also emits "tx" events so a diagnostic console
// can echo what it sent).
type Event struct {
	Dir  string // "rx" | "tx"
	Data []byte
	TS   time.Time
}

// ReaderCfg configures Worker.Register.
type ReaderCfg struct {
	Stream Stream

	// Mode selects framing: "bytes" emits every read verbatim, "lines"
	// accumulates until a newline or the idle-flush timer fires.
	Mode      string
	MaxFrame  int           // clamp 16..256
	IdleFlush time.Duration // clamp 0..2s, "lines" mode only
}

// Worker turns a Stream into a channel of framed Events, grouping bytes
// into lines (dropping CR, splitting on LF) when asked, and flushing a
// partial line after an idle window so a command without a trailing
// newline still surfaces promptly.
type Worker struct {
	outQ chan Event
}

func NewWorker(outBuf int) *Worker {
	if outBuf <= 0 {
		outBuf = 64
	}
	return &Worker{outQ: make(chan Event, outBuf)}
}

func (w *Worker) Events() <-chan Event { return w.outQ }

// Register starts a bounded reader goroutine over cfg.Stream. Returns a
// cancel func.
func (w *Worker) Register(ctx context.Context, cfg ReaderCfg) func() {
	max := cfg.MaxFrame
	if max < 16 {
		max = 16
	}
	if max > 256 {
		max = 256
	}
	idle := cfg.IdleFlush
	if idle < 0 {
		idle = 0
	}
	if idle > 2*time.Second {
		idle = 2 * time.Second
	}
	cctx, cancel := context.WithCancel(ctx)

	go func() {
		buf := make([]byte, max)
		var line []byte

		timer := time.NewTimer(time.Hour)
		if !timer.Stop() {
			timex.DrainTimer(timer)
		}

		flush := func(now time.Time) {
			if len(line) == 0 {
				return
			}
			payload := append([]byte(nil), line...)
			line = line[:0]
			select {
			case w.outQ <- Event{Dir: "rx", Data: payload, TS: now}:
			default:
			}
		}

		for {
			if cfg.Mode == "lines" && len(line) > 0 && idle > 0 {
				timex.ResetTimer(timer, idle)
			} else {
				timex.ResetTimer(timer, time.Hour)
			}
			select {
			case <-cctx.Done():
				return
			case <-cfg.Stream.Readable():
				n, _ := cfg.Stream.Read(buf)
				if n <= 0 {
					continue
				}
				now := time.Now()
				if cfg.Mode == "lines" {
					for i := 0; i < n; i++ {
						b := buf[i]
						switch b {
						case '\n':
							flush(now)
						case '\r':
						default:
							if len(line) < max {
								line = append(line, b)
							}
						}
					}
				} else {
					payload := append([]byte(nil), buf[:n]...)
					select {
					case w.outQ <- Event{Dir: "rx", Data: payload, TS: now}:
					default:
					}
				}
			case <-timer.C:
				flush(time.Now())
			}
		}
	}()

	return cancel
}

// EmitTX publishes a TX echo event for a diagnostic console.
func (w *Worker) EmitTX(data []byte) {
	p := append([]byte(nil), data...)
	select {
	case w.outQ <- Event{Dir: "tx", Data: p, TS: time.Now()}:
	default:
	}
}
