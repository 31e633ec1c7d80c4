package preview

import "bytes"

var (
	soi = []byte{0xFF, 0xD8} // start of image
	eoi = []byte{0xFF, 0xD9} // end of image
)

// SplitJPEG is a bufio.SplitFunc that yields complete JPEG images
// (SOI .. EOI) from a motion-JPEG byte stream such as the output of
// gphoto2 --capture-movie --stdout. Bytes outside a frame are skipped and
// a truncated frame at EOF is dropped.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}

	start := bytes.Index(data, soi)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// The last byte may be the first half of a SOI marker.
		return len(data) - 1, nil, nil
	}

	end := bytes.Index(data[start+len(soi):], eoi)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + len(soi) + end + len(eoi)
	return stop, data[start:stop], nil
}
