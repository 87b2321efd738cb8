// Command kinetic-discover lists simulated Kinetic devices announced on the
// local network.
//
// Usage:
//
//	kinetic-discover [flags]
//
// Without -serial it browses for -timeout and prints every device seen.
// With -serial it stops at the first device announcing that serial number.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/discovery"
)

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("kinetic-discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	iface := fs.String("interface", "", "Network interface to browse on (default: all)")
	timeout := fs.Duration("timeout", discovery.BrowseTimeout, "How long to browse")
	serial := fs.String("serial", "", "Stop at the device with this serial number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{
		Interface: *iface,
		Timeout:   *timeout,
	})

	if *serial != "" {
		dev, err := browser.Find(ctx, *serial)
		if err != nil {
			return err
		}
		printDevices(stdout, []*discovery.DeviceService{dev})
		return nil
	}

	devices, err := browse(ctx, browser, *timeout)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(stdout, "No devices found.")
		return nil
	}
	printDevices(stdout, devices)
	return nil
}

func browse(ctx context.Context, browser *discovery.MDNSBrowser, timeout time.Duration) ([]*discovery.DeviceService, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := browser.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var devices []*discovery.DeviceService
	for dev := range results {
		devices = append(devices, dev)
	}
	return devices, nil
}

// printDevices writes one row per device, sorted by serial number.
func printDevices(w io.Writer, devices []*discovery.DeviceService) {
	sort.Slice(devices, func(i, j int) bool { return devices[i].Serial < devices[j].Serial })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIAL\tMODEL\tHOST\tPORT\tTLS PORT\tCLUSTER\tADDRESSES")
	for _, d := range devices {
		tlsPort := "-"
		if d.TLSPort != 0 {
			tlsPort = fmt.Sprintf("%d", d.TLSPort)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			d.Serial, d.Model, d.Host, d.Port, tlsPort, d.ClusterVersion, strings.Join(d.Addresses, ","))
	}
	tw.Flush()
}
