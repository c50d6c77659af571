// Package debuglog appends timestamped diagnostics to a file when RLOG_DEBUG=1.
package debuglog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	enabled = os.Getenv("RLOG_DEBUG") == "1"
	path    = defaultPath()
	mu      sync.Mutex
)

func defaultPath() string {
	if p := os.Getenv("RLOG_DEBUG_FILE"); p != "" {
		return p
	}
	return filepath.Join(os.TempDir(), "rlog-debug.log")
}

// Enabled reports whether Debugf writes anything.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetOutput redirects logging to file and turns it on; an empty path turns
// it off.
func SetOutput(file string) {
	mu.Lock()
	defer mu.Unlock()
	enabled = file != ""
	if file != "" {
		path = file
	}
}

func Debugf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	timestamp := time.Now().Format(time.RFC3339Nano)
	_, _ = fmt.Fprintf(f, "%s "+format+"\n", append([]interface{}{timestamp}, args...)...)
	_ = f.Close()
}
