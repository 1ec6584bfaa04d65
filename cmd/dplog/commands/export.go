package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dpcontrol/dpcontrol-go/pkg/log"
)

var csvHeader = []string{"timestamp", "session_id", "direction", "layer", "category", "device_id", "type", "dps"}

// RunExport writes every event of path as jsonl or csv to output, or to
// stdout when output is empty.
func RunExport(path, format, output string) error {
	var write func(io.Writer) error
	switch format {
	case "jsonl":
		write = func(w io.Writer) error {
			enc := json.NewEncoder(w)
			return each(path, log.Filter{}, func(event log.Event) error { return enc.Encode(event) })
		}
	case "csv":
		write = func(w io.Writer) error {
			cw := csv.NewWriter(w)
			if err := cw.Write(csvHeader); err != nil {
				return err
			}
			err := each(path, log.Filter{}, func(event log.Event) error { return cw.Write(csvRow(event)) })
			cw.Flush()
			if err != nil {
				return err
			}
			return cw.Error()
		}
	default:
		return fmt.Errorf("unknown format %q (supported: jsonl, csv)", format)
	}

	if output == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func csvRow(event log.Event) []string {
	var dpsField string
	if u := eventDPS(event); len(u) > 0 {
		dpsField = formatDPS(u)
	}
	return []string{
		event.Timestamp.UTC().Format(timestampLayout),
		event.SessionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		event.DeviceID,
		eventLabel(event),
		dpsField,
	}
}
