package util

import "bytes"

// SniffArtifactMIME detects the container of a rendered artifact from its
// first bytes. Unknown data yields application/octet-stream.
func SniffArtifactMIME(b []byte) string {
	// ISO BMFF: size(4) "ftyp" brand(4)
	if len(b) >= 12 && bytes.Equal(b[4:8], []byte("ftyp")) {
		if bytes.Equal(b[8:10], []byte("qt")) {
			return "video/quicktime"
		}
		return "video/mp4"
	}
	// EBML header
	if len(b) >= 4 && b[0] == 0x1A && b[1] == 0x45 && b[2] == 0xDF && b[3] == 0xA3 {
		return "video/webm"
	}
	if len(b) >= 6 && (bytes.Equal(b[:6], []byte("GIF87a")) || bytes.Equal(b[:6], []byte("GIF89a"))) {
		return "image/gif"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	return "application/octet-stream"
}

// IsVideoMIME reports whether m can be sent as a video message.
func IsVideoMIME(m string) bool {
	switch m {
	case "video/mp4", "video/quicktime", "video/webm":
		return true
	}
	return false
}
