package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kinetic-sim/kinetic-go/pkg/log"
)

// RunExport writes the events of path matching filter to w in the given
// format (jsonl or csv).
func RunExport(path, format string, filter log.Filter, w io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "session_id", "connection_id", "direction", "layer", "category", "type", "sequence", "status"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var seq, status string
		if msg := event.Message; msg != nil {
			switch msg.Kind {
			case log.MessageKindRequest:
				seq = strconv.FormatInt(msg.Sequence, 10)
			case log.MessageKindResponse:
				seq = strconv.FormatInt(msg.AckSequence, 10)
			}
			if msg.Status != nil {
				status = msg.Status.String()
			}
		}

		row := []string{
			event.Timestamp.UTC().Format(timestampLayout),
			event.SessionID,
			strconv.FormatInt(event.ConnectionID, 10),
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			typeLabel(event),
			seq,
			status,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
