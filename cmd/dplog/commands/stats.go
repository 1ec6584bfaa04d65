package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/dpcontrol/dpcontrol-go/pkg/log"
)

// Stats aggregates a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Sessions          map[string]*SessionStats
	Errors            int
	Start, End        time.Time
}

// SessionStats aggregates one device session.
type SessionStats struct {
	ID        string
	DeviceID  string
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Sets      int
	DPUpdates int

	// FirstState is the delay from the session's first event to the DP
	// update that completed Connect.
	FirstState time.Duration
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Sessions:          make(map[string]*SessionStats),
	}
}

func (s *Stats) add(event log.Event) {
	ts := event.Timestamp
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++
	if s.Start.IsZero() || ts.Before(s.Start) {
		s.Start = ts
	}
	if ts.After(s.End) {
		s.End = ts
	}
	if event.Error != nil {
		s.Errors++
	}

	ss := s.Sessions[event.SessionID]
	if ss == nil {
		ss = &SessionStats{ID: event.SessionID, FirstSeen: ts, LastSeen: ts}
		s.Sessions[event.SessionID] = ss
	}
	ss.Events++
	if ts.After(ss.LastSeen) {
		ss.LastSeen = ts
	}
	if ss.DeviceID == "" {
		ss.DeviceID = event.DeviceID
	}
	if m := event.Message; m != nil && m.Kind == "set" && event.Direction == log.DirectionOut {
		ss.Sets++
	}
	if u := event.DPUpdate; u != nil {
		ss.DPUpdates++
		if u.First {
			ss.FirstState = ts.Sub(ss.FirstSeen)
		}
	}
}

// RunStats prints statistics about the log file at path.
func RunStats(path string, w io.Writer) error {
	stats := newStats()
	err := each(path, log.Filter{}, func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return err
	}
	stats.print(w)
	return nil
}

// counts prints the non-zero entries of m in enum order.
func counts[K ~uint8](w io.Writer, title string, m map[K]int, name func(K) string) {
	fmt.Fprintln(w, title)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if m[k] > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", name(k)+":", m[k])
		}
	}
	fmt.Fprintln(w)
}

func (s *Stats) print(w io.Writer) {
	fmt.Fprintln(w, "=== DP Session Log Statistics ===")
	fmt.Fprintln(w)

	if s.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n\n", s.End.Sub(s.Start).Round(time.Second))
	}
	fmt.Fprintf(w, "Total Events: %d\n\n", s.TotalEvents)

	counts(w, "Events by Layer:", s.EventsByLayer, log.Layer.String)
	counts(w, "Events by Category:", s.EventsByCategory, log.Category.String)
	counts(w, "Events by Direction:", s.EventsByDirection, log.Direction.String)

	sessions := slices.SortedFunc(maps.Values(s.Sessions), func(a, b *SessionStats) int {
		return a.FirstSeen.Compare(b.FirstSeen)
	})
	fmt.Fprintf(w, "Sessions: %d\n", len(sessions))
	if len(sessions) > 0 {
		fmt.Fprintln(w)
	}
	const indent = "           "
	for _, ss := range sessions {
		fmt.Fprintf(w, "  [%s] %d events, duration %s\n",
			shortenID(ss.ID), ss.Events, ss.LastSeen.Sub(ss.FirstSeen).Round(time.Millisecond))
		if ss.DeviceID != "" {
			fmt.Fprintf(w, "%sDevice: %s\n", indent, ss.DeviceID)
		}
		if ss.Sets > 0 || ss.DPUpdates > 0 {
			fmt.Fprintf(w, "%sSets: %d, DP updates: %d\n", indent, ss.Sets, ss.DPUpdates)
		}
		if ss.FirstState > 0 {
			fmt.Fprintf(w, "%sFirst state after %s\n", indent, formatDuration(ss.FirstState))
		}
	}

	if s.Errors > 0 {
		fmt.Fprintf(w, "\nErrors: %d\n", s.Errors)
	}
}
