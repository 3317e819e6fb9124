package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// A broken setup must still answer the gateway with empty JSON instead
// of an error exit.
func TestHookCmdBrokenConfigStillResponds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(path, []byte("[siyuan\napiUrl = not toml"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	cmd := hookCmd()
	out := captureStdout(t, func() {
		if err := cmd.RunE(cmd, []string{"agent_end"}); err != nil {
			t.Errorf("hook command returned error: %v", err)
		}
	})
	if strings.TrimSpace(out) != "{}" {
		t.Fatalf("stdout = %q, want {}", out)
	}
}
