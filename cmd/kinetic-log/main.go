// Command kinetic-log views and analyzes protocol log files written by
// kinetic-device with the -protocol-log flag.
//
// Usage:
//
//	kinetic-log <command> [flags] <file.klog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON lines or CSV
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View wire-layer events of connection 3
//	kinetic-log view -layer wire -conn-id 3 device.klog
//
//	# Show only PUT requests
//	kinetic-log view -type put device.klog
//
//	# Export to CSV
//	kinetic-log export -format csv -o device.csv device.klog
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kinetic-sim/kinetic-go/cmd/kinetic-log/commands"
)

const usage = `kinetic-log - Kinetic Protocol Log Analyzer

Usage:
  kinetic-log <command> [flags] <file.klog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON lines or CSV
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "kinetic-log <command> -help" for more information about a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 1
	}

	cmd, args := args[0], args[1:]
	var err error
	switch cmd {
	case "view":
		err = runView(args, stdout, stderr)
	case "export":
		err = runExport(args, stdout, stderr)
	case "filter":
		err = runFilter(args, stdout, stderr)
	case "stats":
		err = runStats(args, stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(stderr, usage)
		return 1
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newFlagSet returns a flag set whose usage text is written to stderr.
func newFlagSet(name, summary string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "kinetic-log %s - %s\n\nUsage:\n  kinetic-log %s [flags] <file.klog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

// addFilterFlags registers the filter flags shared by view, export and filter.
func addFilterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, service)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, state, error)")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by device connection id")
	fs.StringVar(&opts.SessionID, "session-id", "", "Filter by transport session id")
	fs.StringVar(&opts.MessageType, "type", "", "Filter by message type (e.g. put, get_response)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Only events at or after this time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Only events before this time (RFC3339)")
	return opts
}

// parseArgs parses fs and returns the log file argument.
func parseArgs(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return "", fmt.Errorf("log file path required")
	}
	return fs.Arg(0), nil
}

func runView(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("view", "View log file in human-readable format", stderr)
	opts := addFilterFlags(fs)

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	filter, err := commands.BuildFilter(*opts)
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, stdout)
}

func runExport(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("export", "Export log file to JSON lines or CSV", stderr)
	opts := addFilterFlags(fs)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	filter, err := commands.BuildFilter(*opts)
	if err != nil {
		return err
	}

	w := stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return commands.RunExport(path, *format, filter, w)
}

func runFilter(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("filter", "Filter log file and write to new file", stderr)
	opts := addFilterFlags(fs)
	output := fs.String("o", "", "Output file (required)")

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("output file required (-o)")
	}
	filter, err := commands.BuildFilter(*opts)
	if err != nil {
		return err
	}

	count, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Filtered %d events to %s\n", count, *output)
	return nil
}

func runStats(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("stats", "Show statistics about the log file", stderr)

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, stdout)
}
