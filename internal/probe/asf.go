package probe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const asfReadLimit = 1 << 20

// ASF object and stream type GUIDs, byte order as stored on disk.
var (
	asfFilePropertiesGUID = []byte{
		0xa1, 0xdc, 0xab, 0x8c, 0x47, 0xa9, 0xcf, 0x11,
		0x8e, 0xe4, 0x00, 0xc0, 0x0c, 0x20, 0x53, 0x65,
	}
	asfStreamPropertiesGUID = []byte{
		0x91, 0x07, 0xdc, 0xb7, 0xb7, 0xa9, 0xcf, 0x11,
		0x8e, 0xe6, 0x00, 0xc0, 0x0c, 0x20, 0x53, 0x65,
	}
	asfAudioMediaGUID = []byte{
		0x40, 0x9e, 0x69, 0xf8, 0x4d, 0x5b, 0xcf, 0x11,
		0xa8, 0xfd, 0x00, 0x80, 0x5f, 0x5c, 0x44, 0x2b,
	}
	asfVideoMediaGUID = []byte{
		0xc0, 0xef, 0x19, 0xbc, 0x4d, 0x5b, 0xcf, 0x11,
		0xa8, 0xfd, 0x00, 0x80, 0x5f, 0x5c, 0x44, 0x2b,
	}
)

// WAVEFORMATEX codec identifiers.
const (
	waveFormatPCM    = 0x0001
	waveFormatMP2    = 0x0050
	waveFormatMP3    = 0x0055
	waveFormatAC3    = 0x2000
	waveFormatWMA1   = 0x0160
	waveFormatWMA2   = 0x0161
	waveFormatWMAPro = 0x0162
)

// parseASF walks the ASF top-level header objects and fills stream
// parameters from the file properties and stream properties objects.
func parseASF(f *os.File, size int64, info *Info) error {
	head := make([]byte, min(size, asfReadLimit))
	if _, err := f.ReadAt(head, 0); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading header: %w", err)
	}
	if len(head) < 30 {
		return errors.New("header too short")
	}

	headerSize := int64(binary.LittleEndian.Uint64(head[16:24]))
	if headerSize > int64(len(head)) {
		headerSize = int64(len(head))
	}

	// Child objects start after the 30-byte header object preamble.
	off := int64(30)
	for off+24 <= headerSize {
		guid := head[off : off+16]
		objSize := int64(binary.LittleEndian.Uint64(head[off+16 : off+24]))
		if objSize < 24 || off+objSize > headerSize {
			break
		}
		body := head[off+24 : off+objSize]
		switch {
		case bytes.Equal(guid, asfFilePropertiesGUID):
			parseASFFileProperties(body, info)
		case bytes.Equal(guid, asfStreamPropertiesGUID):
			parseASFStreamProperties(body, info)
		}
		off += objSize
	}

	if info.VideoCodec == VideoNone {
		return errors.New("no video stream found")
	}
	return nil
}

func parseASFFileProperties(body []byte, info *Info) {
	if len(body) < 80 {
		return
	}
	// Play duration is in 100ns units and includes the preroll in ms.
	play := time.Duration(binary.LittleEndian.Uint64(body[40:48])) * 100
	preroll := time.Duration(binary.LittleEndian.Uint64(body[56:64])) * time.Millisecond
	if play > preroll {
		info.Duration = play - preroll
	}
	info.Bitrate = int(binary.LittleEndian.Uint32(body[76:80]))
}

func parseASFStreamProperties(body []byte, info *Info) {
	if len(body) < 54 {
		return
	}
	streamType := body[:16]
	typeLen := int(binary.LittleEndian.Uint32(body[40:44]))
	if 54+typeLen > len(body) {
		return
	}
	data := body[54 : 54+typeLen]

	switch {
	case bytes.Equal(streamType, asfAudioMediaGUID) && info.AudioCodec == AudioNone:
		parseWaveFormatEx(data, info)
	case bytes.Equal(streamType, asfVideoMediaGUID) && info.VideoCodec == VideoNone:
		parseASFVideo(data, info)
	}
}

// parseWaveFormatEx decodes the WAVEFORMATEX structure carried by an ASF
// audio stream.
func parseWaveFormatEx(data []byte, info *Info) {
	if len(data) < 16 {
		return
	}
	switch binary.LittleEndian.Uint16(data[0:2]) {
	case waveFormatPCM:
		info.AudioCodec = AudioPCM
	case waveFormatMP2:
		info.AudioCodec = AudioMP2
	case waveFormatMP3:
		info.AudioCodec = AudioMP3
	case waveFormatAC3:
		info.AudioCodec = AudioAC3
	case waveFormatWMA1:
		info.AudioCodec = AudioWMA1
	case waveFormatWMA2:
		info.AudioCodec = AudioWMA2
	case waveFormatWMAPro:
		info.AudioCodec = AudioWMAPro
	default:
		info.AudioCodec = AudioOther
	}
	info.AudioChannels = int(binary.LittleEndian.Uint16(data[2:4]))
	info.AudioSampleRate = int(binary.LittleEndian.Uint32(data[4:8]))
	info.AudioBitrate = int(binary.LittleEndian.Uint32(data[8:12])) * 8
	if len(data) > 18 {
		info.AudioExtradata = data[18:]
	}
}

// parseASFVideo decodes the video stream header plus the embedded
// BITMAPINFOHEADER. Codec private data after the 40-byte bitmap header
// carries the sequence header bits the profile rules inspect.
func parseASFVideo(data []byte, info *Info) {
	if len(data) < 51 {
		return
	}
	info.Width = int(binary.LittleEndian.Uint32(data[0:4]))
	info.Height = int(binary.LittleEndian.Uint32(data[4:8]))

	bmih := data[11:]
	if len(bmih) < 40 {
		return
	}
	fourcc := string(bmih[16:20])
	info.VideoFourCC = fourcc
	switch fourcc {
	case "WMV3", "WMV2", "WMV1":
		info.VideoCodec = VideoWMV3
	case "WVC1", "WMVA":
		info.VideoCodec = VideoVC1
	case "MP43", "MP42", "MP4S", "M4S2":
		info.VideoCodec = VideoMSMPEG4
	default:
		info.VideoCodec = VideoOther
	}
	if len(bmih) > 40 {
		info.VideoExtradata = bmih[40:]
	}
	if info.VideoCodec == VideoWMV3 && len(info.VideoExtradata) > 0 {
		// Sequence header bits in the codec private data distinguish the
		// simple profile and its lowest level tier.
		info.VideoProfile = int((info.VideoExtradata[0] >> 6) & 1)
		info.VideoLevel = int((info.VideoExtradata[0] >> 3) & 1)
	}
}
