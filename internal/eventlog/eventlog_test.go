package eventlog

import (
	"path/filepath"
	"testing"
)

func TestAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "events.ndjson")

	if err := Append(path, Event{Action: ActionClaim, Actor: "alice", Task: "TASK-001"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := Append(path, Event{Action: ActionSubmit, Actor: "alice", Task: "TASK-001"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	events, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Action != ActionClaim || events[1].Action != ActionSubmit {
		t.Fatalf("unexpected event order: %+v", events)
	}
}

func TestReadAllMissingFileIsEmptyNotError(t *testing.T) {
	events, err := ReadAll(filepath.Join(t.TempDir(), "nope", "events.ndjson"))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected 0 events, got %d", len(events))
	}
}

func TestAppendPreservesLineOrderAcrossAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	for i := 0; i < 5; i++ {
		if err := Append(path, Event{Action: ActionValidate, Actor: "ci", Details: map[string]any{"n": i}}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	events, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i, ev := range events {
		n, ok := ev.Details["n"].(float64)
		if !ok || int(n) != i {
			t.Fatalf("event %d details = %+v, want n=%d", i, ev.Details, i)
		}
	}
}
