package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/dpcontrol/dpcontrol-go/cmd/dpctl/interactive"
	"github.com/dpcontrol/dpcontrol-go/internal/sim"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
)

// console is the simulator's interactive prompt.
type console struct {
	dev *sim.Device
	rl  *readline.Instance
	out io.Writer
}

func newConsole(dev *sim.Device) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{dev: dev, rl: rl, out: rl.Stdout()}, nil
}

func (c *console) Stdout() io.Writer {
	return c.out
}

func (c *console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
		if c.exec(line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// exec runs one line and reports whether to quit.
func (c *console) exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	switch parts[0] {
	case "state", "s":
		state := c.dev.State()
		for _, k := range state.Keys() {
			fmt.Fprintf(c.out, "%s = %v\n", k, state[k])
		}
	case "push", "p":
		if len(parts) != 3 {
			fmt.Fprintln(c.out, "Usage: push <dp> <value>")
			return false
		}
		u := dps.Update{dps.Key(parts[1]): interactive.ParseValue(parts[2])}
		if err := c.dev.Push(u); err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	case "sessions":
		fmt.Fprintf(c.out, "Connected clients: %d, sets applied: %d\n", c.dev.Sessions(), c.dev.SetCount())
	case "help", "?":
		c.printHelp()
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help')\n", parts[0])
	}
	return false
}

func (c *console) printHelp() {
	fmt.Fprintln(c.out, "\nSimulator Commands:")
	fmt.Fprintln(c.out, "  state              - Show the current DPs")
	fmt.Fprintln(c.out, "  push <dp> <value>  - Simulate a local DP change")
	fmt.Fprintln(c.out, "  sessions           - Show connected clients")
	fmt.Fprintln(c.out, "  quit               - Exit the simulator")
}
