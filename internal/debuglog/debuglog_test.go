package debuglog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugfWritesWhenEnabled(t *testing.T) {
	file := filepath.Join(t.TempDir(), "debug.log")
	SetOutput(file)
	defer SetOutput("")

	Debugf("merge issue=%d kind=%s", 7, "append")
	Debugf("second")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines want 2: %q", len(lines), data)
	}
	if !strings.HasSuffix(lines[0], "merge issue=7 kind=append") {
		t.Fatalf("line = %q", lines[0])
	}
}

func TestDebugfSilentWhenDisabled(t *testing.T) {
	file := filepath.Join(t.TempDir(), "debug.log")
	SetOutput(file)
	SetOutput("")

	Debugf("ignored")
	if Enabled() {
		t.Fatalf("expected logging disabled")
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Fatalf("expected no log file, stat err = %v", err)
	}
}
