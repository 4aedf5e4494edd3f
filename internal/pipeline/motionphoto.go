package pipeline

import "bytes"

var (
	jpegEOI  = []byte{0xFF, 0xD9}
	ftypMark = []byte("ftyp")
)

// extractMotionVideo returns the MP4 stream a motion photo embeds after its
// JPEG image data, or nil when the file carries none. Android motion photos
// and Apple-exported stills both append the full video container behind the
// JPEG end-of-image marker, so the scan looks for an MP4 `ftyp` box in the
// trailer.
func extractMotionVideo(data []byte) []byte {
	eoi := bytes.LastIndex(data, jpegEOI)
	if eoi < 0 {
		return nil
	}
	trailer := data[eoi+len(jpegEOI):]
	if len(trailer) < 12 {
		return nil
	}

	// The ftyp box is prefixed by its 4-byte big-endian size, so the video
	// stream starts 4 bytes before the marker.
	idx := bytes.Index(trailer, ftypMark)
	if idx < 4 {
		return nil
	}
	return trailer[idx-4:]
}
