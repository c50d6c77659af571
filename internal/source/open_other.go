//go:build !windows

package source

import "os"

func openShared(path string) (*os.File, error) {
	return os.Open(path)
}
