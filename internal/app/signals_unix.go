//go:build !windows

package app

import (
	"os"

	"golang.org/x/sys/unix"
)

func contSignals() []os.Signal {
	return []os.Signal{unix.SIGCONT}
}
