// Package commands implements the dplog CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/log"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// RunView prints every event of path matching filter.
func RunView(path string, filter log.Filter, output io.Writer) error {
	return each(path, filter, func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
}

// formatEvent writes a header line, indented details and a blank line:
//
//	2026-01-28T10:15:32.123456Z [session:abc12345] OUT WIRE set
//	  RequestID: req-1
func formatEvent(w io.Writer, event log.Event) {
	layer := event.Layer.String()
	if event.Category == log.CategoryControl {
		layer = "CTRL"
	}
	fmt.Fprintf(w, "%s [session:%s] %-3s %s %s\n",
		event.Timestamp.UTC().Format(timestampLayout), shortenID(event.SessionID),
		event.Direction, layer, eventLabel(event))
	for _, line := range eventDetails(event) {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintln(w)
}

// eventLabel names the payload carried by event.
func eventLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Message != nil:
		return event.Message.Kind
	case event.StateChange != nil:
		return "State"
	case event.ControlMsg != nil:
		return event.ControlMsg.Type.String()
	case event.DPUpdate != nil && event.DPUpdate.Refresh:
		return "DP refresh"
	case event.DPUpdate != nil:
		return "DP update"
	case event.Error != nil:
		return "Error"
	}
	return "Unknown"
}

// eventDPS returns the data points an event carries, if any.
func eventDPS(event log.Event) dps.Update {
	switch {
	case event.Message != nil:
		return event.Message.DPS
	case event.DPUpdate != nil:
		return event.DPUpdate.DPS
	}
	return nil
}

func eventDetails(event log.Event) []string {
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	switch {
	case event.Frame != nil:
		f := event.Frame
		add("Size: %d bytes", f.Size)
		if len(f.Data) > 0 {
			suffix := ""
			if f.Truncated {
				suffix = " (truncated)"
			}
			add("Data: %s%s", hex.EncodeToString(f.Data), suffix)
		}

	case event.Message != nil:
		m := event.Message
		if m.RequestID != "" {
			add("RequestID: %s", m.RequestID)
		}
		if m.OK != nil {
			add("OK: %t", *m.OK)
		}
		if m.Error != "" {
			add("Error: %s", m.Error)
		}
		if m.RoundTrip != nil {
			add("Duration: %s", formatDuration(*m.RoundTrip))
		}

	case event.StateChange != nil:
		sc := event.StateChange
		add("Entity: %s", sc.Entity)
		if sc.OldState != "" {
			add("%s -> %s", sc.OldState, sc.NewState)
		} else {
			add("-> %s", sc.NewState)
		}
		if sc.Reason != "" {
			add("Reason: %s", sc.Reason)
		}

	case event.ControlMsg != nil:
		if seq := event.ControlMsg.Sequence; seq != 0 {
			add("Seq: %d", seq)
		}

	case event.DPUpdate != nil:
		if event.DPUpdate.First {
			add("First: true")
		}

	case event.Error != nil:
		e := event.Error
		add("Layer: %s", e.Layer)
		add("Message: %s", e.Message)
		if e.Context != "" {
			add("Context: %s", e.Context)
		}
	}

	if u := eventDPS(event); len(u) > 0 || event.DPUpdate != nil {
		add("DPS: %s", formatDPS(u))
	}
	return lines
}

func shortenID(id string) string {
	return id[:min(len(id), 8)]
}

// formatDPS renders an update in DP order: {1=true 2=50}.
func formatDPS(u dps.Update) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range u.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, u[k])
	}
	b.WriteByte('}')
	return b.String()
}

// formatDuration prints d with millisecond-friendly precision, e.g. 1.500ms.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.3fus", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
}
