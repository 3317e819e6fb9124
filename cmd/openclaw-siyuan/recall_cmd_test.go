package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRunRecallSkipsCommand(t *testing.T) {
	setupTestPlugin(t)

	var runErr error
	out := captureStdout(t, func() {
		runErr = runRecallCmd("/help please show commands", false)
	})
	if runErr != nil {
		t.Fatalf("runRecallCmd: %v", runErr)
	}
	if !strings.Contains(out, "Skipped (") {
		t.Fatalf("output missing skip line:\n%s", out)
	}
}

func TestRunRecallPrintsContext(t *testing.T) {
	setupTestPlugin(t)

	var runErr error
	out := captureStdout(t, func() {
		runErr = runRecallCmd("search my notes for rust ownership rules", false)
	})
	if runErr != nil {
		t.Fatalf("runRecallCmd: %v", runErr)
	}
	if !strings.Contains(out, "Recalled 1 document(s)") {
		t.Fatalf("output missing doc summary:\n%s", out)
	}
	if !strings.Contains(out, "<recalled-notes>") {
		t.Fatalf("output missing context block:\n%s", out)
	}
}

func TestRunRecallJSON(t *testing.T) {
	setupTestPlugin(t)

	var runErr error
	out := captureStdout(t, func() {
		runErr = runRecallCmd("search my notes for rust ownership rules", true)
	})
	if runErr != nil {
		t.Fatalf("runRecallCmd: %v", runErr)
	}

	var res struct {
		Skipped bool   `json:"skipped"`
		Reason  string `json:"reason"`
		Docs    []struct {
			DocID string `json:"docId"`
		} `json:"docs"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.Skipped {
		t.Fatalf("skipped, reason=%s", res.Reason)
	}
	if len(res.Docs) != 1 || res.Docs[0].DocID != "20240101120000-rustdoc" {
		t.Fatalf("docs = %+v", res.Docs)
	}
}
