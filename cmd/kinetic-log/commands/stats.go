package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kinetic-sim/kinetic-go/pkg/log"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Requests          map[wire.MessageType]int
	Statuses          map[wire.StatusCode]int
	Connections       map[int64]*ConnectionStats
	Errors            int
	Truncated         bool
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Requests  int
	Secure    bool
	Remote    string

	// processing accumulates response processing time.
	processing time.Duration
	responses  int
}

// AverageProcessing returns the mean response processing time.
func (c *ConnectionStats) AverageProcessing() time.Duration {
	if c.responses == 0 {
		return 0
	}
	return c.processing / time.Duration(c.responses)
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Requests:          make(map[wire.MessageType]int),
		Statuses:          make(map[wire.StatusCode]int),
		Connections:       make(map[int64]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	stats.Truncated = reader.Truncated()

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.Error != nil {
		s.Errors++
	}

	if msg := event.Message; msg != nil {
		switch msg.Kind {
		case log.MessageKindRequest:
			s.Requests[msg.MessageType]++
		case log.MessageKindResponse:
			if msg.Status != nil {
				s.Statuses[*msg.Status]++
			}
		}
	}

	// Events logged before registration carry no connection id.
	if event.ConnectionID == 0 {
		return
	}
	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
		}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if event.Secure {
		conn.Secure = true
	}
	if conn.Remote == "" {
		conn.Remote = event.RemoteAddr
	}
	if msg := event.Message; msg != nil {
		switch msg.Kind {
		case log.MessageKindRequest:
			conn.Requests++
		case log.MessageKindResponse:
			if msg.ProcessingTime != nil {
				conn.processing += *msg.ProcessingTime
				conn.responses++
			}
		}
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Kinetic Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %s\n", humanize.Comma(int64(stats.TotalEvents)))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerService} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}

	if len(stats.Requests) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Requests by Type:")
		for _, mt := range wire.RequestTypes() {
			if count := stats.Requests[mt]; count > 0 {
				fmt.Fprintf(w, "  %-16s %d\n", mt.String()+":", count)
			}
		}
	}

	if len(stats.Statuses) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Responses by Status:")
		codes := make([]wire.StatusCode, 0, len(stats.Statuses))
		for code := range stats.Statuses {
			codes = append(codes, code)
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
		for _, code := range codes {
			fmt.Fprintf(w, "  %-24s %d\n", code.String()+":", stats.Statuses[code])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		ids := make([]int64, 0, len(stats.Connections))
		for id := range stats.Connections {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		fmt.Fprintln(w)
		for _, id := range ids {
			c := stats.Connections[id]
			duration := c.LastSeen.Sub(c.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%d] %d events, %d requests, duration %s\n", id, c.Events, c.Requests, duration)
			if c.Remote != "" {
				kind := "plain"
				if c.Secure {
					kind = "tls"
				}
				fmt.Fprintf(w, "       Remote: %s (%s)\n", c.Remote, kind)
			}
			if avg := c.AverageProcessing(); avg > 0 {
				fmt.Fprintf(w, "       Avg processing: %s\n", formatDuration(avg))
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
	if stats.Truncated {
		fmt.Fprintln(w)
		fmt.Fprintln(w, truncatedNote)
	}
}
