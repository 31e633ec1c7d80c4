//go:build !linux

package led

import "errors"

// OpenSerial is only implemented on Linux.
func OpenSerial(prefix string) (*Controller, error) {
	return nil, errors.New("led: serial LED controller requires linux")
}
