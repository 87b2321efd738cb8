package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/log"
)

// FilterOptions holds the textual filter flags shared by view, export and filter.
type FilterOptions struct {
	SessionID   string
	ConnID      string
	TimeStart   string
	TimeEnd     string
	Layer       string
	Direction   string
	Category    string
	MessageType string
}

// BuildFilter parses the options into a log.Filter.
func BuildFilter(opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{SessionID: opts.SessionID}

	if opts.ConnID != "" {
		id, err := strconv.ParseInt(opts.ConnID, 10, 64)
		if err != nil || id <= 0 {
			return log.Filter{}, fmt.Errorf("invalid conn-id: %s", opts.ConnID)
		}
		filter.ConnectionID = id
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if opts.Layer != "" {
		l, err := ParseLayerFlag(opts.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}

	if opts.Direction != "" {
		d, err := ParseDirectionFlag(opts.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}

	if opts.Category != "" {
		c, err := ParseCategoryFlag(opts.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}

	if opts.MessageType != "" {
		mt, err := ParseMessageTypeFlag(opts.MessageType)
		if err != nil {
			return log.Filter{}, err
		}
		filter.MessageType = &mt
	}

	return filter, nil
}

// RunFilter writes the events of path matching filter to output and
// returns the number of events written.
func RunFilter(path, output string, filter log.Filter) (int, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}

		logger.Log(event)
		count++
	}
	return count, nil
}
