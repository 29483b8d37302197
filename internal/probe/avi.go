package probe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const aviReadLimit = 256 << 10

// parseAVI walks the RIFF header lists for the main AVI header and the
// per-stream format chunks. AVI never yields a DLNA profile; the fields
// gathered here feed the Detail record and the DiVX creator tag.
func parseAVI(f *os.File, size int64, info *Info) error {
	head := make([]byte, min(size, aviReadLimit))
	if _, err := f.ReadAt(head, 0); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading header: %w", err)
	}
	if len(head) < 12 {
		return errors.New("header too short")
	}

	var streamType string
	off := 12
	for off+8 <= len(head) {
		id := string(head[off : off+4])
		chunkSize := int(binary.LittleEndian.Uint32(head[off+4 : off+8]))
		body := head[off+8:]

		switch id {
		case "LIST":
			// Descend into the list; its body starts with a 4-byte type.
			listType := ""
			if len(body) >= 4 {
				listType = string(body[:4])
			}
			if listType == "hdrl" || listType == "strl" {
				off += 12
				continue
			}
			if listType == "movi" {
				return finishAVI(info)
			}
		case "avih":
			if len(body) >= 40 {
				usPerFrame := binary.LittleEndian.Uint32(body[0:4])
				totalFrames := binary.LittleEndian.Uint32(body[16:20])
				info.Width = int(binary.LittleEndian.Uint32(body[32:36]))
				info.Height = int(binary.LittleEndian.Uint32(body[36:40]))
				if usPerFrame > 0 {
					info.FPS = 1e6 / float64(usPerFrame)
					info.Duration = time.Duration(totalFrames) * time.Duration(usPerFrame) * time.Microsecond
				}
			}
		case "strh":
			if len(body) >= 8 {
				streamType = string(body[:4])
				if streamType == "vids" && info.VideoFourCC == "" {
					info.VideoFourCC = string(body[4:8])
				}
			}
		case "strf":
			switch streamType {
			case "vids":
				if info.VideoCodec == VideoNone && len(body) >= 40 {
					applyAVIVideoFormat(body, info)
				}
			case "auds":
				if info.AudioCodec == AudioNone {
					parseWaveFormatEx(body, info)
				}
			}
		}

		off += 8 + chunkSize
		if chunkSize%2 == 1 {
			off++
		}
	}
	return finishAVI(info)
}

func applyAVIVideoFormat(bmih []byte, info *Info) {
	fourcc := string(bmih[16:20])
	if fourcc != "\x00\x00\x00\x00" {
		info.VideoFourCC = fourcc
	}
	switch info.VideoFourCC {
	case "XVID", "xvid", "DX50", "DIVX", "divx", "FMP4", "MP4V":
		info.VideoCodec = VideoMPEG4
	case "MP43", "MP42", "DIV3", "div3":
		info.VideoCodec = VideoMSMPEG4
	case "H264", "h264", "X264", "x264", "AVC1", "avc1":
		info.VideoCodec = VideoH264
	default:
		info.VideoCodec = VideoOther
	}
}

func finishAVI(info *Info) error {
	if info.VideoCodec == VideoNone {
		return errors.New("no video stream found")
	}
	return nil
}

// IsDiVX reports whether the video carries one of the DivX-family fourccs.
// Such files get a "DiVX" creator tag, which several renderers key on.
func IsDiVX(fourcc string) bool {
	switch fourcc {
	case "XVID", "xvid", "DX50", "DIVX", "divx":
		return true
	}
	return false
}
