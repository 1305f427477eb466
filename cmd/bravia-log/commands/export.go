package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bravia-rpc/bravia-go/pkg/log"
)

// RunExport exports the matching events of a log file as JSON lines or CSV.
// An empty output writes to stdout.
func RunExport(path string, filter log.Filter, format, output string) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return export(reader, format, w)
}

func export(reader *log.Reader, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

var csvHeader = []string{"timestamp", "session_id", "direction", "layer", "category", "endpoint", "type", "call_id", "method", "version", "status", "detail"}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
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

		var eventType, callID, method, version, status, detail string
		switch {
		case event.Message != nil:
			m := event.Message
			eventType = m.Type.String()
			callID = strconv.Itoa(m.CallID)
			method, version = m.Method, m.Version
			if m.StatusCode != nil {
				status = strconv.Itoa(*m.StatusCode)
			}
			if m.PowerOff {
				detail = "power_off"
			}
		case event.StateChange != nil:
			eventType = "state"
			detail = fmt.Sprintf("%s %s->%s", event.StateChange.Entity, event.StateChange.OldState, event.StateChange.NewState)
		case event.Error != nil:
			eventType = "error"
			if event.Error.Code != nil {
				status = strconv.Itoa(*event.Error.Code)
			}
			detail = event.Error.Message
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.SessionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.Endpoint,
			eventType,
			callID,
			method,
			version,
			status,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return cw.Error()
}
