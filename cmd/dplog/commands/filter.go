package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/dpcontrol/dpcontrol-go/pkg/log"
)

// each calls fn for every event of path matching filter, in file order.
func each(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunFilter copies the events of path matching filter into output and
// returns how many were written.
func RunFilter(path, output string, filter log.Filter) (int, error) {
	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", output, err)
	}
	defer logger.Close()

	n := 0
	err = each(path, filter, func(event log.Event) error {
		logger.Log(event)
		n++
		return nil
	})
	return n, err
}
