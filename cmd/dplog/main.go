// Command dplog views and analyzes DP session log files.
//
// Session logs are written by dpctl and dpsim when run with -session-log.
//
// Usage:
//
//	dplog <command> [flags] <file.dplog>
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
//	# View only DP updates
//	dplog view -category dp hall.dplog
//
//	# View set requests and their acks
//	dplog view -kind set hall.dplog
//
//	# Keep one session
//	dplog filter -session 1b4e28ba -o one.dplog hall.dplog
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/dpcontrol/dpcontrol-go/cmd/dplog/commands"
)

type command struct {
	name, summary, args string
	run                 func(fs *flag.FlagSet, args []string) error
}

var commandList = []command{
	{"view", "View log file in human-readable format", "[flags] <file.dplog>", runView},
	{"export", "Export log file to JSON lines or CSV", "[flags] <file.dplog>", runExport},
	{"filter", "Filter log file and write to new file", "-o <out.dplog> [flags] <file.dplog>", runFilter},
	{"stats", "Show statistics about the log file", "<file.dplog>", runStats},
}

func usage(w io.Writer) {
	fmt.Fprint(w, "dplog - DP Session Log Analyzer\n\nUsage:\n  dplog <command> [flags] <file.dplog>\n\nCommands:\n")
	for _, c := range commandList {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprint(w, "\nUse \"dplog <command> -help\" for more information about a command.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	name := os.Args[1]
	if name == "help" || name == "-h" || name == "-help" || name == "--help" {
		usage(os.Stdout)
		return
	}

	i := slices.IndexFunc(commandList, func(c command) bool { return c.name == name })
	if i < 0 {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		usage(os.Stderr)
		os.Exit(1)
	}
	c := commandList[i]

	fs := flag.NewFlagSet(c.name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "dplog %s - %s\n\nUsage:\n  dplog %s %s\n\nFlags:\n", c.name, c.summary, c.name, c.args)
		fs.PrintDefaults()
	}
	if err := c.run(fs, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// filterFlags registers the shared filter flags on fs.
func filterFlags(fs *flag.FlagSet) *commands.FilterFlags {
	f := &commands.FilterFlags{}
	fs.StringVar(&f.SessionID, "session", "", "Filter by session ID")
	fs.StringVar(&f.DeviceID, "device-id", "", "Filter by device ID")
	fs.StringVar(&f.Kind, "kind", "", "Filter by wire message kind (set, set-ack, data, ...)")
	fs.StringVar(&f.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&f.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&f.Layer, "layer", "", "Filter by layer (transport, wire, device)")
	fs.StringVar(&f.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&f.Category, "category", "", "Filter by category (message, control, state, error, dp)")
	return f
}

// logFile parses args and returns the single log file argument.
func logFile(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return "", errors.New("exactly one log file path required")
	}
	return fs.Arg(0), nil
}

func runView(fs *flag.FlagSet, args []string) error {
	ff := filterFlags(fs)
	path, err := logFile(fs, args)
	if err != nil {
		return err
	}
	filter, err := ff.Build()
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runExport(fs *flag.FlagSet, args []string) error {
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path, err := logFile(fs, args)
	if err != nil {
		return err
	}
	return commands.RunExport(path, *format, *output)
}

func runFilter(fs *flag.FlagSet, args []string) error {
	output := fs.String("o", "", "Output file (required)")
	ff := filterFlags(fs)
	path, err := logFile(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		fs.Usage()
		return errors.New("output file (-o) required")
	}
	filter, err := ff.Build()
	if err != nil {
		return err
	}
	n, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		return err
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
	return nil
}

func runStats(fs *flag.FlagSet, args []string) error {
	path, err := logFile(fs, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, os.Stdout)
}
