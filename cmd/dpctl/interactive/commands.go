// Package interactive provides the command set of dpctl, both for one-shot
// invocations and the interactive shell.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/profile"
)

// Command errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrNotSupported   = errors.New("not supported by this device kind")
)

// DeviceCommands lists the per-device commands with their usage.
var DeviceCommands = []struct{ Name, Usage string }{
	{"state", "state                 - Show the friendly state as JSON"},
	{"raw", "raw                   - Show the raw DP snapshot"},
	{"set", "set <json>            - Apply a partial state, e.g. set {\"power\":true}"},
	{"dp", "dp <key> <value>      - Write one raw DP"},
	{"refresh", "refresh               - Ask the device for a full refresh"},
	{"on", "on                    - Turn on (light, plug, switch)"},
	{"off", "off                   - Turn off (light, plug, switch)"},
	{"toggle", "toggle [channel]      - Toggle a plug or a switch channel"},
	{"brightness", "brightness <1-100>    - Set light brightness"},
	{"temp", "temp <0-1000>         - Set light white temperature"},
	{"color", "color <hex|rgb()>     - Set light colour"},
	{"scene", "scene <data>          - Activate a light scene"},
	{"white", "white                 - Switch light to white mode"},
	{"colour", "colour                - Switch light to colour mode"},
	{"open", "open                  - Open curtain"},
	{"close", "close                 - Close curtain"},
	{"stop", "stop                  - Stop curtain"},
	{"position", "position <0-100>      - Move curtain to closed percentage"},
	{"indicator", "indicator on|off      - Switch power indicator"},
}

type onOff interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// RunCommand executes one device command and writes its output to w.
func RunCommand(ctx context.Context, w io.Writer, d profile.Device, cmd string, args []string) error {
	switch cmd {
	case "state", "s":
		js, err := d.StateJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(js))
		return nil

	case "raw":
		snap := d.RawState()
		for _, k := range snap.Keys() {
			v, _ := snap.Get(k)
			fmt.Fprintf(w, "%s = %v\n", k, v)
		}
		return nil

	case "set":
		if len(args) == 0 {
			return fmt.Errorf("%w: set <json>", ErrUsage)
		}
		return d.ApplyJSON(ctx, []byte(strings.Join(args, " ")))

	case "dp":
		if len(args) != 2 {
			return fmt.Errorf("%w: dp <key> <value>", ErrUsage)
		}
		_, err := d.SetRaw(ctx, dps.Update{dps.Key(args[0]): ParseValue(args[1])})
		return err

	case "refresh":
		return d.Refresh(ctx)

	case "on", "off":
		dev, ok := d.(onOff)
		if !ok {
			return fmt.Errorf("%s: %w", cmd, ErrNotSupported)
		}
		if cmd == "on" {
			return dev.TurnOn(ctx)
		}
		return dev.TurnOff(ctx)

	case "toggle":
		return toggle(ctx, d, args)

	case "brightness", "temp", "color", "scene", "white", "colour":
		l, ok := d.(*profile.Light)
		if !ok {
			return fmt.Errorf("%s: %w", cmd, ErrNotSupported)
		}
		return lightCommand(ctx, l, cmd, args)

	case "open", "close", "stop", "position":
		c, ok := d.(*profile.Curtain)
		if !ok {
			return fmt.Errorf("%s: %w", cmd, ErrNotSupported)
		}
		return curtainCommand(ctx, c, cmd, args)

	case "indicator":
		s, ok := d.(*profile.Switch)
		if !ok {
			return fmt.Errorf("%s: %w", cmd, ErrNotSupported)
		}
		if len(args) != 1 {
			return fmt.Errorf("%w: indicator on|off", ErrUsage)
		}
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		if on {
			return s.EnablePowerIndicator(ctx)
		}
		return s.DisablePowerIndicator(ctx)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func toggle(ctx context.Context, d profile.Device, args []string) error {
	switch dev := d.(type) {
	case *profile.Plug:
		return dev.Toggle(ctx)
	case *profile.Switch:
		if len(args) != 1 {
			return fmt.Errorf("%w: toggle <channel>", ErrUsage)
		}
		ch, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid channel: %w", err)
		}
		return dev.Toggle(ctx, ch, nil)
	default:
		return fmt.Errorf("toggle: %w", ErrNotSupported)
	}
}

func lightCommand(ctx context.Context, l *profile.Light, cmd string, args []string) error {
	switch cmd {
	case "white":
		return l.SetWhiteMode(ctx)
	case "colour":
		return l.SetColorMode(ctx)
	}

	if len(args) != 1 {
		return fmt.Errorf("%w: %s <value>", ErrUsage, cmd)
	}
	switch cmd {
	case "brightness":
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid brightness: %w", err)
		}
		return l.SetBrightness(ctx, n)
	case "temp":
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid temperature: %w", err)
		}
		return l.SetTemperature(ctx, n)
	case "color":
		return l.SetColor(ctx, args[0])
	default:
		return l.SetScene(ctx, args[0])
	}
}

func curtainCommand(ctx context.Context, c *profile.Curtain, cmd string, args []string) error {
	switch cmd {
	case "open":
		return c.Open(ctx)
	case "close":
		return c.Close(ctx)
	case "stop":
		return c.Stop(ctx)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: position <0-100>", ErrUsage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid position: %w", err)
	}
	return c.SetClosedPercentage(ctx, n)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected on or off, got %q", ErrUsage, s)
	}
}

// ParseValue converts a command-line token into a DP value: bool, int,
// float or string, in that order. Quotes force a string.
func ParseValue(s string) dps.Value {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
