package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sousvide-ble/nano-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.nlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func exchangeEvent(ts time.Time, session, command string, state log.ExchangeState, d time.Duration) log.Event {
	ev := log.Event{
		Timestamp: ts,
		SessionID: session,
		Direction: log.DirectionIn,
		Layer:     log.LayerCommand,
		Category:  log.CategoryMessage,
		Exchange: &log.ExchangeEvent{
			Command:     command,
			Instruction: 5,
			State:       state,
		},
	}
	if state.Terminal() {
		ev.Exchange.Duration = &d
	}
	return ev
}

func TestExportToJSONL(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	events := []log.Event{
		exchangeEvent(ts, "abc12345", "GET_SENSOR_VALUES", log.ExchangeSending, 0),
		exchangeEvent(ts.Add(80*time.Millisecond), "abc12345", "GET_SENSOR_VALUES", log.ExchangeComplete, 80*time.Millisecond),
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var decoded log.Event
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if decoded.SessionID != "abc12345" {
		t.Errorf("expected session abc12345, got %s", decoded.SessionID)
	}
	if decoded.Exchange == nil || decoded.Exchange.State != log.ExchangeComplete {
		t.Errorf("expected complete exchange, got %+v", decoded.Exchange)
	}
}

func TestExportToCSV(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp:     ts,
			SessionID:     "abc12345",
			Direction:     log.DirectionOut,
			Layer:         log.LayerTransport,
			Category:      log.CategoryMessage,
			DeviceAddress: "C8:2E:18:00:00:01",
			Frame:         log.NewFrameEvent("", []byte{0x01, 0x05}),
		},
		exchangeEvent(ts, "abc12345", "READ_TIMER", log.ExchangeComplete, 1500*time.Microsecond),
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d records", len(records))
	}
	if records[0][0] != "timestamp" {
		t.Errorf("expected header row, got %v", records[0])
	}

	frame := records[1]
	if frame[5] != "C8:2E:18:00:00:01" || frame[6] != "frame" || frame[9] != "0105" {
		t.Errorf("unexpected frame row: %v", frame)
	}

	exchange := records[2]
	if exchange[6] != "READ_TIMER" || exchange[7] != "COMPLETE" || exchange[8] != "1500" {
		t.Errorf("unexpected exchange row: %v", exchange)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)

	err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml"))
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}

func TestViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView(filepath.Join(t.TempDir(), "missing.nlog"), FilterOptions{}, &buf); err == nil {
		t.Error("expected error for missing file")
	}
}
