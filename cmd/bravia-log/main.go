// Command bravia-log views and analyzes protocol capture files.
//
// Capture files are written by bravia-ctl with the -protocol-log flag.
//
// Usage:
//
//	bravia-log <command> [flags] <file.blog>
//	bravia-log [view flags] <file.blog>
//
// Commands:
//
//	view     View log file in human-readable format (default)
//	export   Export log file to JSON lines or CSV
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	bravia-log tv.blog
//
//	# View only calls of one method
//	bravia-log view -method getPowerStatus tv.blog
//
//	# View only errors
//	bravia-log view -errors tv.blog
//
//	# Export audio endpoint events to CSV
//	bravia-log export -format csv -endpoint audio tv.blog
//
//	# Show statistics
//	bravia-log stats tv.blog
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bravia-rpc/bravia-go/cmd/bravia-log/commands"
)

const usage = `bravia-log - Protocol Log Analyzer

Usage:
  bravia-log <command> [flags] <file.blog>

Commands:
  view     View log file in human-readable format (default)
  export   Export log file to JSON lines or CSV
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "bravia-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		if strings.HasPrefix(cmd, "-") || fileExists(cmd) {
			runView(os.Args[1:])
			return
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// filterFlags registers the shared filter flags on fs.
func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	var o commands.FilterOptions
	fs.StringVar(&o.SessionID, "session", "", "Filter by session ID")
	fs.StringVar(&o.Endpoint, "endpoint", "", "Filter by service endpoint")
	fs.StringVar(&o.Method, "method", "", "Filter by remote method")
	fs.StringVar(&o.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&o.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&o.Layer, "layer", "", "Filter by layer (transport, service, device)")
	fs.StringVar(&o.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&o.Category, "category", "", "Filter by category (message, state, error)")
	fs.BoolVar(&o.Errors, "errors", false, "Show only error events")
	return &o
}

// parse parses args and returns the required log file argument.
func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func usageFor(fs *flag.FlagSet, title, line string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "bravia-log %s - %s\n\nUsage:\n  bravia-log %s\n\nFlags:\n", fs.Name(), title, line)
		fs.PrintDefaults()
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = usageFor(fs, "View log file in human-readable format", "view [flags] <file.blog>")
	opts := filterFlags(fs)
	path := parse(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = usageFor(fs, "Export log file to JSON lines or CSV", "export [flags] <file.blog>")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	opts := filterFlags(fs)
	path := parse(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	if err := commands.RunExport(path, filter, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = usageFor(fs, "Filter log file and write to new file", "filter -o <out.blog> [flags] <file.blog>")
	output := fs.String("o", "", "Output file (required)")
	opts := filterFlags(fs)
	path := parse(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	n, err := commands.RunFilter(path, filter, *output)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = usageFor(fs, "Show statistics about the log file", "stats <file.blog>")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	if err := commands.RunStats(fs.Arg(0), os.Stdout); err != nil {
		fail(err)
	}
}
