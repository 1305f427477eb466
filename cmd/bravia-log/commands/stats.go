package commands

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/bravia-rpc/bravia-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Methods           map[string]*MethodStats
	Sessions          map[string]int
	Errors            int
	PowerOff          int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// MethodStats holds per-method call statistics.
type MethodStats struct {
	Calls     int
	Responses int
	Total     time.Duration
	Max       time.Duration
}

// Avg returns the mean response time.
func (m *MethodStats) Avg() time.Duration {
	if m.Responses == 0 {
		return 0
	}
	return m.Total / time.Duration(m.Responses)
}

// Collect reads every event of reader into Stats.
func Collect(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Methods:           make(map[string]*MethodStats),
		Sessions:          make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++
		stats.Sessions[event.SessionID]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if msg := event.Message; msg != nil && msg.Method != "" {
			key := event.Endpoint + "." + msg.Method
			ms, ok := stats.Methods[key]
			if !ok {
				ms = &MethodStats{}
				stats.Methods[key] = ms
			}
			switch msg.Type {
			case log.MessageTypeRequest:
				ms.Calls++
			case log.MessageTypeResponse:
				ms.Responses++
				if msg.Duration != nil {
					ms.Total += *msg.Duration
					ms.Max = max(ms.Max, *msg.Duration)
				}
				if msg.PowerOff {
					stats.PowerOff++
				}
			}
		}
		if event.Error != nil {
			stats.Errors++
		}
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats, err := Collect(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Sessions:     %d\n", len(stats.Sessions))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerService, log.LayerDevice} {
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

	if len(stats.Methods) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Methods:")
		keys := make([]string, 0, len(stats.Methods))
		for k := range stats.Methods {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, func(a, b string) int {
			if c := cmp.Compare(stats.Methods[b].Calls, stats.Methods[a].Calls); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		for _, k := range keys {
			ms := stats.Methods[k]
			fmt.Fprintf(w, "  %-40s calls=%d avg=%s max=%s\n", k, ms.Calls, formatDuration(ms.Avg()), formatDuration(ms.Max))
		}
	}

	if stats.PowerOff > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Power-off answers: %d\n", stats.PowerOff)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
