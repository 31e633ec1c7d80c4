//go:build unix

package camera

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ensureFIFO creates the named pipe unless it already exists.
func ensureFIFO(path string) error {
	err := unix.Mkfifo(path, 0o666)
	if err == nil || errors.Is(err, unix.EEXIST) {
		fi, serr := os.Stat(path)
		if serr != nil {
			return fmt.Errorf("stat fifo: %w", serr)
		}
		if fi.Mode()&os.ModeNamedPipe == 0 {
			return fmt.Errorf("%s exists and is not a named pipe", path)
		}
		return nil
	}
	return fmt.Errorf("mkfifo %s: %w", path, err)
}
