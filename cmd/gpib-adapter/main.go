// cmd/gpib-adapter/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gpibengine/bus"
	"gpibengine/config"
	"gpibengine/errcode"
	"gpibengine/gpib"
	"gpibengine/platform"
	"gpibengine/serial"
	"gpibengine/x/shmring"
	"gpibengine/x/strx"

	"github.com/google/shlex"
)

// openPorts tracks every tty port opened by serveTTY, keyed by the path
// it was opened from, so the REPL's "ports" command can report each
// port's registered shmring.Handle and current buffering without holding
// a reference to the serial.Host itself.
var openPorts = map[string]shmring.Handle{}

// This binary is the host-side bring-up harness: it wires the simulated
// pin set from platform (NewHostPin, on every build; the RP2 pin factory
// is not used here) to an Engine, narrates bus-state changes over an
// in-process bus the way the teacher's boardtest does, and drives it
// all from a shlex-tokenized line REPL instead of the out-of-scope host
// command parser.
func main() {
	var arg1 string
	if len(os.Args) > 1 {
		arg1 = os.Args[1]
	}
	device := strx.Coalesce(arg1, "pico-controller")

	cfg, err := config.Load(device, gpib.DefaultConfig())
	if err != nil {
		fmt.Println("[gpib-adapter] config load:", err)
		cfg = gpib.DefaultConfig()
	}

	pin := platform.NewHostPin()
	eng := gpib.NewEngine(pin, cfg)

	ctx := context.Background()
	b := bus.NewBus(8)
	adapterConn := b.NewConnection("adapter")
	diagConn := b.NewConnection("diag")

	svc := config.NewService()
	svc.Start(context.WithValue(ctx, config.CtxDeviceKey, device), adapterConn)

	diagSub := diagConn.Subscribe(bus.T("adapter", "+"))
	go func() {
		for m := range diagSub.Channel() {
			fmt.Printf("[bus] %v = %v\n", m.Topic, m.Payload)
		}
	}()

	// Every path after the device name is a serial port to bridge
	// concurrently (multi-port bring-up: e.g. a production UART plus a
	// pty used for bench testing at the same time).
	for _, path := range os.Args[2:] {
		serveTTY(ctx, path, eng, adapterConn)
	}

	fmt.Printf("[gpib-adapter] device=%s mode=%v paddr=%d\n", device, cfg.Mode, cfg.Paddr)
	fmt.Println("type 'help' for commands, 'quit' to exit")

	repl(eng, adapterConn)
}

// serveTTY opens path as the host-serial link and runs the same command
// dispatch over it, line by line, echoing each result back — the
// production substitute for the interactive REPL, using the same
// transport stack (serial.Host over an shmring.Ring, serial.Worker for
// line framing) a TinyGo build selects via build tag for its UART.
func serveTTY(ctx context.Context, path string, eng *gpib.Engine, conn *bus.Connection) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		fmt.Println("[gpib-adapter] tty:", err)
		return
	}

	host := serial.NewHost(f, 256)
	host.Start(ctx)
	openPorts[path] = host.Handle()

	worker := serial.NewWorker(32)
	worker.Register(ctx, serial.ReaderCfg{Stream: host, Mode: "lines", IdleFlush: 50 * time.Millisecond})

	go func() {
		for ev := range worker.Events() {
			if ev.Dir != "rx" {
				continue
			}
			args, err := shlex.Split(string(ev.Data))
			if err != nil || len(args) == 0 {
				continue
			}
			reply := "ok"
			if err := dispatch(eng, conn, args); err != nil {
				reply = "err: " + err.Error()
			}
			worker.EmitTX([]byte(reply))
			_, _ = host.Write(append([]byte(reply), '\r', '\n'))
		}
	}()
}

func repl(eng *gpib.Engine, conn *bus.Connection) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		args, err := shlex.Split(scanner.Text())
		if err != nil || len(args) == 0 {
			continue
		}
		if err := dispatch(eng, conn, args); err != nil {
			fmt.Println("error:", err)
		}
	}
}

// asErr converts an errcode.Code to a plain error, returning nil on
// success. errcode.Code satisfies the error interface itself, so
// handing one back as an error directly would report success as a
// non-nil "ok" error.
func asErr(code errcode.Code) error {
	if code.IsOK() {
		return nil
	}
	return code
}

func dispatch(eng *gpib.Engine, conn *bus.Connection, args []string) error {
	switch args[0] {
	case "quit", "exit":
		os.Exit(0)
		return nil

	case "help":
		fmt.Println(`commands:
  begin              bring the bus engine up per the configured mode
  stop               release all lines
  state              print the current bus state
  cmd <hex>          send a raw command byte while ATN is asserted
  addr <n> [talk]    address device n as listener (default) or talker
  unaddr             release addressing
  sdc <n>            selective device clear on address n
  data <text>        send data bytes (controller mode)
  recv               read data until the eor terminator (EOI in device mode)
  status <n>         set and send the local status byte (device mode)
  ports              list open serial ports and their buffered bytes
  quit               exit`)
		return nil

	case "ports":
		if len(openPorts) == 0 {
			fmt.Println("no serial ports open")
			return nil
		}
		for path, h := range openPorts {
			r := shmring.Get(h)
			if r == nil {
				fmt.Printf("%s: handle %d closed\n", path, h)
				continue
			}
			fmt.Printf("%s: handle %d, %d/%d bytes buffered\n", path, h, r.Available(), r.Cap())
		}
		return nil

	case "begin":
		if code := eng.Begin(); !code.IsOK() {
			return code
		}
		publishState(conn, eng)
		return nil

	case "stop":
		eng.Stop()
		publishState(conn, eng)
		return nil

	case "state":
		fmt.Println(eng.State())
		return nil

	case "cmd":
		if len(args) != 2 {
			return fmt.Errorf("usage: cmd <hex-byte>")
		}
		b, err := parseByte(args[1])
		if err != nil {
			return err
		}
		return asErr(eng.SendCmd(b))

	case "addr":
		if len(args) < 2 {
			return fmt.Errorf("usage: addr <n> [talk]")
		}
		n, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		talk := len(args) > 2 && args[2] == "talk"
		return asErr(eng.AddressDevice(n, talk))

	case "unaddr":
		eng.UnAddressDevice()
		return nil

	case "sdc":
		if len(args) != 2 {
			return fmt.Errorf("usage: sdc <addr>")
		}
		n, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		return asErr(eng.SendSDC(n))

	case "data":
		if len(args) < 2 {
			return fmt.Errorf("usage: data <text>")
		}
		return asErr(eng.SendData([]byte(strings.Join(args[1:], " "))))

	case "recv":
		var sink strings.Builder
		code := eng.ReceiveData(&sink, false, false, 0)
		fmt.Printf("%q\n", sink.String())
		if !code.IsOK() {
			return code
		}
		return nil

	case "status":
		if len(args) != 2 {
			return fmt.Errorf("usage: status <byte>")
		}
		b, err := parseByte(args[1])
		if err != nil {
			return err
		}
		eng.SetStatus(b)
		return asErr(eng.SendStatus())

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func publishState(conn *bus.Connection, eng *gpib.Engine) {
	conn.Publish(conn.NewMessage(bus.T("adapter", "state"), eng.State().String(), true))
}

func parseByte(s string) (byte, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("bad hex byte %q: %w", s, err)
	}
	return byte(n), nil
}

func parseAddr(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > 30 {
		return 0, fmt.Errorf("bad GPIB address %q", s)
	}
	return uint8(n), nil
}
