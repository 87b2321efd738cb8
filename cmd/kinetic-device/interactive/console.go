// Package interactive provides the interactive console of kinetic-device.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"

	"github.com/kinetic-sim/kinetic-go/pkg/connection"
	"github.com/kinetic-sim/kinetic-go/pkg/service"
)

// Device is the part of the device service the console inspects.
// *service.DeviceService implements it.
type Device interface {
	State() service.ServiceState
	Config() service.DeviceConfig
	Engine() *service.Engine
	Connections() *connection.Registry
	Addr() net.Addr
	TLSAddr() net.Addr
	SetFaultInjection(on bool)
}

// Console is a readline-driven command loop.
type Console struct {
	rl      *readline.Instance
	started time.Time
}

// New creates a console. Create it before any logger that writes to the
// terminal so log lines can go through Stderr.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "kinetic> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, started: time.Now()}, nil
}

// Stdout returns a writer that coordinates with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that coordinates with the prompt.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run reads commands until quit, EOF or ctx is done. cancel is called when
// the user quits.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc, dev Device) {
	defer c.rl.Close()

	out := c.rl.Stdout()
	printHelp(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}

		if quit := Exec(dev, line, out, c.started); quit {
			cancel()
			return
		}
	}
}

// Exec runs one console command and reports whether the user asked to quit.
func Exec(dev Device, line string, w io.Writer, started time.Time) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "help", "?":
		printHelp(w)
	case "status", "s":
		printStatus(dev, w, started)
	case "conns", "c":
		printConnections(dev, w)
	case "security", "sec":
		printSecurity(dev, w)
	case "fault":
		setFault(dev, args, w)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(w, "Unknown command: %s (type 'help')\n", cmd)
	}
	return false
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `Commands:
  status, s          Device state, listeners, cluster version
  conns, c           Registered connections
  security, sec      ACL identities and pin state
  fault on|off       Toggle close-on-first-request fault injection
  help, ?            This help
  quit, q            Stop the device
`)
}

func printStatus(dev Device, w io.Writer, started time.Time) {
	cfg := dev.Config()
	e := dev.Engine()

	fmt.Fprintf(w, "State:           %s (up since %s)\n", dev.State(), humanize.Time(started))
	fmt.Fprintf(w, "Device:          %s (%s)\n", cfg.SerialNumber, cfg.Model)
	fmt.Fprintf(w, "Listen:          %s\n", addrOrOff(dev.Addr()))
	fmt.Fprintf(w, "TLS listen:      %s\n", addrOrOff(dev.TLSAddr()))
	fmt.Fprintf(w, "Home:            %s\n", cfg.Home)
	fmt.Fprintf(w, "Store:           %s\n", cfg.StoreBackend)
	fmt.Fprintf(w, "Ordering:        %s\n", onOff(cfg.EnforceOrdering))
	fmt.Fprintf(w, "Fault injection: %s\n", onOff(cfg.FaultInjectCloseConnection))
	fmt.Fprintf(w, "Cluster version: %s\n", humanize.Comma(e.ClusterVersion()))
	fmt.Fprintf(w, "Locked:          %t\n", e.Locked())
	fmt.Fprintf(w, "Connections:     %d\n", dev.Connections().Len())
}

func printConnections(dev Device, w io.Writer) {
	records := dev.Connections().Records()
	if len(records) == 0 {
		fmt.Fprintln(w, "No connections")
		return
	}
	slices.SortFunc(records, func(a, b *connection.Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSECURE\tACK SEQ\tOPENED")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%t\t%d\t%s\n", r.ID, r.Secure, r.AckSequence(), humanize.Time(r.Opened))
	}
	_ = tw.Flush()
}

func printSecurity(dev Device, w io.Writer) {
	snap := dev.Engine().Security().Snapshot()

	fmt.Fprintf(w, "Lock pin:  %s\n", setOrUnset(snap.Pins.Lock))
	fmt.Fprintf(w, "Erase pin: %s\n", setOrUnset(snap.Pins.Erase))
	fmt.Fprintf(w, "Locked:    %t\n", snap.Locked)

	if snap.ACLs == nil {
		fmt.Fprintln(w, "ACLs:      none (all identities permitted)")
		return
	}

	ids := make([]int64, 0, len(snap.ACLs))
	for id := range snap.ACLs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTITY\tTLS\tPERMISSIONS")
	for _, id := range ids {
		acl := snap.ACLs[id]
		perms := make([]string, len(acl.Permissions))
		for i, p := range acl.Permissions {
			perms[i] = p.String()
		}
		fmt.Fprintf(tw, "%d\t%t\t%s\n", id, acl.TLSRequired, strings.Join(perms, ","))
	}
	_ = tw.Flush()
}

func setFault(dev Device, args []string, w io.Writer) {
	if len(args) != 1 {
		fmt.Fprintln(w, "Usage: fault on|off")
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		dev.SetFaultInjection(true)
	case "off":
		dev.SetFaultInjection(false)
	default:
		fmt.Fprintln(w, "Usage: fault on|off")
		return
	}
	fmt.Fprintf(w, "Fault injection %s\n", strings.ToLower(args[0]))
}

func addrOrOff(a net.Addr) string {
	if a == nil {
		return "off"
	}
	return a.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func setOrUnset(pin []byte) string {
	if len(pin) == 0 {
		return "unset"
	}
	return "set"
}
