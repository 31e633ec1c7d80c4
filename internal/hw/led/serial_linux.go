//go:build linux

package led

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/fraxinas/photobooth/internal/debug"
)

// maxDevices is the number of numbered device nodes probed per prefix.
const maxDevices = 10

// OpenSerial probes prefix0..prefix9 (e.g. /dev/ttyACM0) and returns the
// first device that greets as an LED controller.
func OpenSerial(prefix string) (*Controller, error) {
	var errs []error
	for i := 0; i < maxDevices; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, err := os.Stat(name); err != nil {
			continue
		}
		debug.Verbose("trying LED device %s", name)
		f, err := os.OpenFile(name, os.O_RDWR|unix.O_NOCTTY, 0)
		if err != nil {
			debug.Warn("couldn't open %s: %v", name, err)
			errs = append(errs, err)
			continue
		}
		if err := configureTTY(int(f.Fd())); err != nil {
			f.Close()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		c, err := NewController(f)
		if err != nil {
			debug.Warn("%s: %v", name, err)
			errs = append(errs, err)
			continue
		}
		debug.Info("successfully opened %s", name)
		return c, nil
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("led: no device matching %s[0-%d]", prefix, maxDevices-1)
	}
	return nil, errors.Join(errs...)
}

// configureTTY sets 115200 baud 8N1, no flow control, canonical input.
func configureTTY(fd int) error {
	tty, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("tcgetattr: %w", err)
	}

	tty.Cflag &^= unix.CBAUD | unix.PARENB | unix.CSTOPB | unix.CSIZE | unix.CRTSCTS
	tty.Cflag |= unix.B115200 | unix.CS8 | unix.CLOCAL | unix.CREAD
	tty.Ispeed = unix.B115200
	tty.Ospeed = unix.B115200
	tty.Iflag |= unix.IGNPAR | unix.IGNCR
	tty.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
	tty.Lflag |= unix.ICANON
	tty.Oflag &^= unix.OPOST

	if err := unix.IoctlSetTermios(fd, unix.TCSETSF, tty); err != nil {
		return fmt.Errorf("tcsetattr: %w", err)
	}
	return nil
}
