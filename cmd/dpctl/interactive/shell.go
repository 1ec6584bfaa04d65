package interactive

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/dpcontrol/dpcontrol-go/pkg/profile"
)

// Shell is the interactive dpctl prompt.
type Shell struct {
	devices map[string]profile.Device
	names   []string
	current string
	out     io.Writer
	rl      *readline.Instance
}

// New creates a shell over the named devices. The first name in sort order
// is selected.
func New(devices map[string]profile.Device) *Shell {
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)

	s := &Shell{devices: devices, names: names, out: os.Stdout}
	if len(names) > 0 {
		s.current = names[0]
	}
	return s
}

// SetOutput redirects command output.
func (s *Shell) SetOutput(w io.Writer) {
	s.out = w
}

// Open attaches the shell to the terminal.
func (s *Shell) Open() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    s.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	s.rl = rl
	s.out = rl.Stdout()
	return nil
}

// Stdout returns a writer that coordinates with the readline prompt. Use it
// for log output.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run reads commands until quit, EOF or ctx is done. Open must have been
// called.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if s.Exec(ctx, line) {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
		s.rl.SetPrompt(s.prompt())
	}
}

// Exec runs one input line and reports whether the shell should quit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "devices", "ls":
		s.cmdDevices()

	case "use":
		s.cmdUse(args)

	case "quit", "exit", "q":
		return true

	default:
		d, ok := s.devices[s.current]
		if !ok {
			fmt.Fprintln(s.out, "No device selected (see 'devices' and 'use')")
			return false
		}
		if err := RunCommand(ctx, s.out, d, cmd, args); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
	return false
}

func (s *Shell) cmdDevices() {
	if len(s.names) == 0 {
		fmt.Fprintln(s.out, "No devices configured")
		return
	}
	for _, name := range s.names {
		d := s.devices[name]
		marker := " "
		if name == s.current {
			marker = "*"
		}
		fmt.Fprintf(s.out, "%s %-16s %-8s %-12s %s\n", marker, name, d.Kind(), d.State(), d.ID())
	}
}

func (s *Shell) cmdUse(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: use <device>")
		return
	}
	if _, ok := s.devices[args[0]]; !ok {
		fmt.Fprintf(s.out, "Unknown device: %s\n", args[0])
		return
	}
	s.current = args[0]
	fmt.Fprintf(s.out, "Using %s\n", s.current)
}

func (s *Shell) prompt() string {
	if s.current == "" {
		return "dp> "
	}
	return s.current + "> "
}

func (s *Shell) completer() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("devices"),
		readline.PcItem("use", readline.PcItemDynamic(func(string) []string { return s.names })),
		readline.PcItem("quit"),
	}
	for _, c := range DeviceCommands {
		items = append(items, readline.PcItem(c.Name))
	}
	return readline.NewPrefixCompleter(items...)
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, "\ndpctl Commands:")
	fmt.Fprintln(s.out, "  devices               - List devices (* = selected)")
	fmt.Fprintln(s.out, "  use <device>          - Select a device")
	for _, c := range DeviceCommands {
		fmt.Fprintln(s.out, "  "+c.Usage)
	}
	fmt.Fprintln(s.out, "  help                  - Show this help")
	fmt.Fprintln(s.out, "  quit                  - Exit")
}
