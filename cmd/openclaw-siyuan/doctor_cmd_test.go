package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRunDoctorJSON(t *testing.T) {
	setTestConfig(t, "http://"+deadAddr(t), true)

	var runErr error
	out := captureStdout(t, func() {
		runErr = runDoctorCmd(true)
	})
	if runErr != nil && !strings.Contains(runErr.Error(), "check(s) failed") {
		t.Fatalf("unexpected error: %v", runErr)
	}

	var report doctorReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("doctor output is not JSON: %v\n%s", err, out)
	}
	if report.Summary.Total == 0 {
		t.Fatal("no checks ran")
	}
	if report.Summary.Total != report.Summary.Passed+report.Summary.Skipped+report.Summary.Failed {
		t.Fatalf("summary inconsistent: %+v", report.Summary)
	}

	byName := make(map[string]doctorCheck, len(report.Checks))
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	if byName["config"].Status != "pass" {
		t.Errorf("config check = %+v", byName["config"])
	}
	if byName["note store"].Status != "fail" {
		t.Errorf("note store check = %+v, want fail against a dead address", byName["note store"])
	}
	if byName["api token"].Status != "skip" {
		t.Errorf("api token check = %+v, want skip when the store is down", byName["api token"])
	}
	if byName["index db"].Status != "pass" {
		t.Errorf("index db check = %+v", byName["index db"])
	}
	if byName["index freshness"].Status != "fail" {
		t.Errorf("freshness check = %+v, want fail before the first sync", byName["index freshness"])
	}
}

func TestRunDoctorSkipsWhenIndexDisabled(t *testing.T) {
	setTestConfig(t, "http://"+deadAddr(t), false)

	var runErr error
	out := captureStdout(t, func() {
		runErr = runDoctorCmd(true)
	})
	if runErr != nil && !strings.Contains(runErr.Error(), "check(s) failed") {
		t.Fatalf("unexpected error: %v", runErr)
	}

	var report doctorReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("doctor output is not JSON: %v\n%s", err, out)
	}
	for _, name := range []string{"index db", "full-text search", "index freshness"} {
		var found *doctorCheck
		for i := range report.Checks {
			if report.Checks[i].Name == name {
				found = &report.Checks[i]
			}
		}
		if found == nil || found.Status != "skip" {
			t.Errorf("%s = %+v, want skip", name, found)
		}
	}
}

func TestRunDoctorTextMentionsFailures(t *testing.T) {
	setTestConfig(t, "http://"+deadAddr(t), true)

	out := captureStdout(t, func() {
		_ = runDoctorCmd(false)
	})
	if !strings.Contains(out, "note store") {
		t.Fatalf("text output missing the failing check:\n%s", out)
	}
	if !strings.Contains(out, "checks failed") && !strings.Contains(out, "of ") {
		t.Fatalf("text output missing the summary:\n%s", out)
	}
}
