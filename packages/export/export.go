// Package export serializes a session's run data (event log + metrics
// snapshot) to the CSV and JSON wire shapes defined in §6. It is the
// "out of scope as external collaborator" CSV/JSON serializer named in §1,
// exercised here through SessionController.ExportRunData and the
// cmd/simserver export subcommand.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dsimlab/distsim/packages/core/event"
	"github.com/dsimlab/distsim/packages/corerr"
	"github.com/dsimlab/distsim/packages/engine"
)

// Format identifies a supported export format. ParseFormat matches a raw
// format string case-insensitively (§4.9); Run accepts only the exact
// constants below.
type Format string

const (
	JSON Format = "JSON"
	CSV  Format = "CSV"
)

// ParseFormat normalizes a case-insensitive format string, rejecting
// anything but "json"/"csv".
func ParseFormat(raw string) (Format, error) {
	switch strings.ToUpper(raw) {
	case string(JSON):
		return JSON, nil
	case string(CSV):
		return CSV, nil
	default:
		return "", corerr.Newf(corerr.InvalidArgument, "unsupported export format: %s", raw)
	}
}

// Run serializes events and metrics as format and returns the encoded bytes.
func Run(events []event.Event, metrics engine.Snapshot, format Format) ([]byte, error) {
	switch format {
	case JSON:
		return toJSON(events, metrics)
	case CSV:
		return toCSV(events, metrics)
	default:
		return nil, corerr.Newf(corerr.InvalidArgument, "unsupported export format: %s", format)
	}
}

// jsonExport is the §6 JSON export wire shape: {"events":[…], "metrics":{…}}.
type jsonExport struct {
	Events  []event.Event   `json:"events"`
	Metrics engine.Snapshot `json:"metrics"`
}

func toJSON(events []event.Event, metrics engine.Snapshot) ([]byte, error) {
	if events == nil {
		events = []event.Event{}
	}
	return json.MarshalIndent(jsonExport{Events: events, Metrics: metrics}, "", "  ")
}

// toCSV renders the two-section §6 CSV shape: an EVENTS table, a blank line,
// then a one-row METRICS table. Fields containing a comma, quote, or
// newline are quoted per RFC 4180, which encoding/csv already implements.
func toCSV(events []event.Event, metrics engine.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("=== EVENTS ===\n")
	eventsWriter := csv.NewWriter(&buf)
	if err := eventsWriter.Write([]string{"timestamp", "type", "nodeId", "peerId", "payloadSummary"}); err != nil {
		return nil, err
	}
	for _, ev := range events {
		row := []string{
			fmt.Sprintf("%d", ev.Timestamp),
			string(ev.Kind),
			ev.NodeId,
			ev.PeerId,
			ev.PayloadSummary,
		}
		if err := eventsWriter.Write(row); err != nil {
			return nil, err
		}
	}
	eventsWriter.Flush()
	if err := eventsWriter.Error(); err != nil {
		return nil, err
	}

	buf.WriteString("\n=== METRICS ===\n")
	metricsWriter := csv.NewWriter(&buf)
	if err := metricsWriter.Write([]string{"simulatedTime", "realTimeMillis", "messageCount", "rounds", "converged", "leaderId"}); err != nil {
		return nil, err
	}
	if err := metricsWriter.Write([]string{
		fmt.Sprintf("%d", metrics.SimulatedTime),
		fmt.Sprintf("%d", metrics.RealTimeMillis),
		fmt.Sprintf("%d", metrics.MessageCount),
		fmt.Sprintf("%d", metrics.Rounds),
		fmt.Sprintf("%t", metrics.Converged),
		metrics.LeaderId.Value(),
	}); err != nil {
		return nil, err
	}
	metricsWriter.Flush()
	if err := metricsWriter.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
