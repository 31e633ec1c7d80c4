package preview

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fraxinas/photobooth/internal/debug"
)

// MaxFrameSize bounds a single JPEG frame in the stream.
const MaxFrameSize = 8 << 20

// Sink receives frames from Pump.
type Sink interface {
	Publish(frame []byte) bool
}

// Pump splits r into JPEG frames and publishes them to sink until r ends
// or ctx is cancelled. It returns how many frames were read. A reader
// closed underneath it (the camera stopped the preview) is a normal end.
func Pump(ctx context.Context, r io.Reader, sink Sink) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256<<10), MaxFrameSize)
	sc.Split(SplitJPEG)

	n := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		n++
		sink.Publish(sc.Bytes())
		if n%250 == 0 {
			debug.Trace("preview: %d frames read", n)
		}
	}

	err := sc.Err()
	switch {
	case err == nil,
		errors.Is(err, os.ErrClosed),
		errors.Is(err, io.ErrClosedPipe):
		if cerr := ctx.Err(); cerr != nil {
			return n, cerr
		}
		return n, nil
	default:
		return n, fmt.Errorf("read preview stream: %w", err)
	}
}
