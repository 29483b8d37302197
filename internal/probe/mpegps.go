package probe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const psReadLimit = 1 << 20

// parseMPEGPS scans a program stream for the video sequence header, an
// audio stream, and the system clock references that bound the duration.
// The system layer never emulates video start codes, so a raw scan of the
// multiplexed bytes is sufficient for the handful of fields needed here.
func parseMPEGPS(f *os.File, size int64, info *Info) error {
	head := make([]byte, min(size, psReadLimit))
	if _, err := f.ReadAt(head, 0); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading stream head: %w", err)
	}

	if !parseMPEGSequenceHeader(head, info) {
		return errors.New("no video sequence header found")
	}
	scanPSAudio(head, info)

	firstSCR, okFirst := scanSCR(head, false)
	tailStart := max(size-psReadLimit, 0)
	tail := make([]byte, size-tailStart)
	if _, err := f.ReadAt(tail, tailStart); err != nil && !errors.Is(err, io.EOF) {
		return nil
	}
	lastSCR, okLast := scanSCR(tail, true)
	if okFirst && okLast && lastSCR > firstSCR {
		info.Duration = time.Duration(lastSCR-firstSCR) * time.Second / 90000
		if secs := info.Duration.Seconds(); secs > 0 {
			info.Bitrate = int(float64(size) * 8 / secs)
		}
	}
	return nil
}

// scanPSAudio looks for the first audio PES packet and classifies its
// codec. MPEG audio lives in stream IDs 0xC0-0xDF; AC-3, DTS, and LPCM
// ride private stream 1 behind a substream ID.
func scanPSAudio(buf []byte, info *Info) {
	for i := 0; i+9 < len(buf); i++ {
		if buf[i] != 0 || buf[i+1] != 0 || buf[i+2] != 0x01 {
			continue
		}
		id := buf[i+3]
		switch {
		case id >= 0xc0 && id <= 0xdf:
			if payload := psPayload(buf[i:]); payload != nil {
				for j := 0; j+4 < len(payload); j++ {
					if parseMPAHeader(payload[j:], info) {
						return
					}
				}
			}
		case id == 0xbd:
			payload := psPayload(buf[i:])
			if len(payload) == 0 {
				continue
			}
			sub := payload[0]
			switch {
			case sub >= 0x80 && sub <= 0x87:
				info.AudioCodec = AudioAC3
				for j := 4; j+7 < len(payload); j++ {
					if parseAC3Header(payload[j:], info) {
						return
					}
				}
				return
			case sub >= 0x88 && sub <= 0x8f:
				info.AudioCodec = AudioDTS
				return
			case sub >= 0xa0 && sub <= 0xaf:
				info.AudioCodec = AudioPCM
				return
			}
		}
	}
}

// psPayload returns the payload of a PES packet starting at buf[0], or nil
// when the header is malformed or truncated.
func psPayload(buf []byte) []byte {
	if len(buf) < 9 {
		return nil
	}
	// MPEG-2 PES optional header: flags then header data length.
	if buf[6]&0xc0 == 0x80 {
		headerLen := int(buf[8])
		start := 9 + headerLen
		if start >= len(buf) {
			return nil
		}
		return buf[start:]
	}
	// MPEG-1: skip stuffing bytes then STD/PTS/DTS fields.
	i := 6
	for i < len(buf) && buf[i] == 0xff {
		i++
	}
	if i < len(buf) && buf[i]&0xc0 == 0x40 {
		i += 2
	}
	switch {
	case i < len(buf) && buf[i]&0xf0 == 0x20:
		i += 5
	case i < len(buf) && buf[i]&0xf0 == 0x30:
		i += 10
	default:
		i++
	}
	if i >= len(buf) {
		return nil
	}
	return buf[i:]
}

// scanSCR extracts the system clock reference base from pack headers,
// returning the first or last value found in the buffer.
func scanSCR(buf []byte, wantLast bool) (int64, bool) {
	var found int64
	var ok bool
	for i := 0; i+10 < len(buf); i++ {
		if buf[i] != 0 || buf[i+1] != 0 || buf[i+2] != 0x01 || buf[i+3] != 0xba {
			continue
		}
		b := buf[i+4:]
		var base int64
		switch {
		case b[0]&0xc0 == 0x40: // MPEG-2 pack header
			base = int64(b[0]&0x38)<<27 | int64(b[0]&0x03)<<28 |
				int64(b[1])<<20 | int64(b[2]&0xf8)<<12 | int64(b[2]&0x03)<<13 |
				int64(b[3])<<5 | int64(b[4]&0xf8)>>3
		case b[0]&0xf0 == 0x20: // MPEG-1 pack header
			base = int64(b[0]&0x0e)<<29 | int64(b[1])<<22 |
				int64(b[2]&0xfe)<<14 | int64(b[3])<<7 | int64(b[4])>>1
		default:
			continue
		}
		found, ok = base, true
		if !wantLast {
			return found, true
		}
	}
	return found, ok
}
