package task

import (
	"strings"
	"testing"
	"time"
)

const sampleTask = `---
id: TASK-001
title: Fix the frobnicator
priority: high
created: 2026-01-02T03:04:05Z
tags:
  - backend
assigned_to: ""
qa_attempts: 0
affects:
  - internal/frob/frob.go
must_not_touch:
  - internal/frob/generated.go
custom_future_key: keep-me
---
## Description

Frobnicate the widget.
`

func TestParseRoundTripPreservesUnknownKey(t *testing.T) {
	tk, err := Parse([]byte(sampleTask))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tk.Fields.ID != "TASK-001" {
		t.Fatalf("ID = %q", tk.Fields.ID)
	}
	if tk.Fields.Priority != PriorityHigh {
		t.Fatalf("Priority = %q", tk.Fields.Priority)
	}
	if !strings.Contains(string(tk.Body), "Frobnicate the widget.") {
		t.Fatalf("body missing content: %s", tk.Body)
	}

	out, err := tk.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(string(out), "custom_future_key: keep-me") {
		t.Fatalf("unknown key dropped:\n%s", out)
	}
}

func TestParseNoMutationByteRoundTrip(t *testing.T) {
	tk, err := Parse([]byte(sampleTask))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := tk.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	// Re-parsing the serialized form must yield the same fields and body;
	// this is the forward-compatibility property that matters (byte
	// round trip of meaning, not necessarily of YAML formatting).
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if reparsed.Fields.ID != tk.Fields.ID || reparsed.Fields.Title != tk.Fields.Title {
		t.Fatalf("fields changed across round trip")
	}
	if string(reparsed.Body) != string(tk.Body) {
		t.Fatalf("body changed across round trip:\n%q\nvs\n%q", reparsed.Body, tk.Body)
	}
}

func TestCRLFRoundTrip(t *testing.T) {
	crlf := strings.ReplaceAll(sampleTask, "\n", "\r\n")
	tk, err := Parse([]byte(crlf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := tk.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(string(out), "\r\n") {
		t.Fatalf("expected CRLF line endings preserved")
	}
	if strings.Contains(strings.ReplaceAll(string(out), "\r\n", ""), "\n") {
		t.Fatalf("found bare LF in CRLF output:\n%q", out)
	}
}

func TestClaimRefusesSilentBaseSHAChange(t *testing.T) {
	tk, err := Parse([]byte(sampleTask))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	now := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	if err := tk.Claim("alice", "task-001-fix", "/repo/.worktrees/task-001-fix", strings.Repeat("a", 40), now); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := tk.Claim("bob", "task-001-fix", "/repo/.worktrees/task-001-fix", strings.Repeat("b", 40), now); err == nil {
		t.Fatalf("expected error when base_sha would silently change")
	}
}

func TestAppendQAReportEntryCreatesHeading(t *testing.T) {
	tk, err := Parse([]byte(sampleTask))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	now := time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)
	tk.AppendQAReportEntry(now, "validator", "stub gate failed at foo.go:12")

	body := string(tk.Body)
	if !strings.Contains(body, qaReportHeading) {
		t.Fatalf("QA Report heading missing:\n%s", body)
	}
	if !strings.Contains(body, "stub gate failed at foo.go:12") {
		t.Fatalf("entry missing:\n%s", body)
	}
}

func TestAppendQAReportEntryReusesExistingHeading(t *testing.T) {
	src := sampleTask + "\n## QA Report\n\n### earlier entry\n"
	tk, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	tk.AppendQAReportEntry(now, "validator", "second entry")

	body := string(tk.Body)
	if strings.Count(body, qaReportHeading) != 1 {
		t.Fatalf("expected exactly one QA Report heading, got body:\n%s", body)
	}
}

func TestValidID(t *testing.T) {
	cases := map[string]bool{
		"TASK-001":   true,
		"TASK-12345": true,
		"TASK-01":    false,
		"task-001":   false,
		"TASK-abc":   false,
		"../TASK-001": false,
	}
	for id, want := range cases {
		if got := ValidID(id); got != want {
			t.Errorf("ValidID(%q) = %v, want %v", id, got, want)
		}
	}
}
