package commands

import (
	"fmt"
	"time"

	"github.com/dpcontrol/dpcontrol-go/pkg/log"
)

// FilterFlags are the textual filter criteria shared by view and filter.
type FilterFlags struct {
	SessionID string
	DeviceID  string
	Kind      string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Build parses the flags into a log.Filter. Empty flags match everything.
func (f FilterFlags) Build() (log.Filter, error) {
	filter := log.Filter{
		SessionID: f.SessionID,
		DeviceID:  f.DeviceID,
		Kind:      f.Kind,
	}
	var err error
	if filter.TimeStart, err = optional(f.TimeStart, parseTime("time-start")); err != nil {
		return filter, err
	}
	if filter.TimeEnd, err = optional(f.TimeEnd, parseTime("time-end")); err != nil {
		return filter, err
	}
	if filter.Layer, err = optional(f.Layer, log.ParseLayer); err != nil {
		return filter, err
	}
	if filter.Direction, err = optional(f.Direction, log.ParseDirection); err != nil {
		return filter, err
	}
	if filter.Category, err = optional(f.Category, log.ParseCategory); err != nil {
		return filter, err
	}
	return filter, nil
}

// optional parses s when set and returns nil for an empty flag.
func optional[T any](s string, parse func(string) (T, error)) (*T, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseTime(flag string) func(string) (time.Time, error) {
	return func(s string) (time.Time, error) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return t, fmt.Errorf("invalid %s: %w", flag, err)
		}
		return t, nil
	}
}
