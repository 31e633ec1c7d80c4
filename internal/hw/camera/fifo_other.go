//go:build !unix

package camera

import "errors"

func ensureFIFO(string) error {
	return errors.New("camera: named pipes are not supported on this platform")
}
