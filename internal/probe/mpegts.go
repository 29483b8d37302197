package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/asticode/go-astits"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// How much of a transport stream the prober is willing to read from each
// end of the file. Big enough to cover a PMT plus several access units.
const (
	tsHeadReadLimit = 4 << 20
	tsTailReadLimit = 2 << 20
)

// PMT stream type assignments relevant to DLNA profiles.
const (
	tsStreamMPEG1Video = 0x01
	tsStreamMPEG2Video = 0x02
	tsStreamMPEG1Audio = 0x03
	tsStreamMPEG2Audio = 0x04
	tsStreamPrivate    = 0x06
	tsStreamADTSAAC    = 0x0f
	tsStreamLATMAAC    = 0x11
	tsStreamH264       = 0x1b
	tsStreamAC3        = 0x81
	tsStreamDTS        = 0x82
)

// parseMPEGTS reads the PMT and the first access units of the chosen video
// and audio streams. The caller has already established the packet framing
// and recorded it in info.
func parseMPEGTS(ctx context.Context, f *os.File, size int64, info *Info) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking stream start: %w", err)
	}

	dmx := astits.NewDemuxer(ctx,
		bufio.NewReader(io.LimitReader(f, tsHeadReadLimit)),
		astits.DemuxerOptPacketSize(info.TSPacketSize))

	var (
		videoPID, audioPID uint16
		videoType          uint8
		videoBuf           []byte
		videoDone          bool
		audioDone          bool
		pmtSeen            bool
		demuxErrs          int
	)

	for {
		data, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, astits.ErrNoMorePackets) {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if demuxErrs++; demuxErrs > 64 {
				break
			}
			continue
		}
		demuxErrs = 0

		if data.PMT != nil && !pmtSeen {
			pmtSeen = true
			for _, es := range data.PMT.ElementaryStreams {
				switch uint8(es.StreamType) {
				case tsStreamMPEG1Video, tsStreamMPEG2Video, tsStreamH264:
					if videoPID == 0 {
						videoPID = es.ElementaryPID
						videoType = uint8(es.StreamType)
					}
				case tsStreamMPEG1Audio, tsStreamMPEG2Audio, tsStreamADTSAAC,
					tsStreamLATMAAC, tsStreamAC3, tsStreamDTS, tsStreamPrivate:
					if audioPID == 0 {
						audioPID = es.ElementaryPID
						markTSAudio(uint8(es.StreamType), info)
					}
				}
			}
			if videoPID == 0 {
				return errors.New("no video stream in program map")
			}
			continue
		}

		if data.PES == nil || data.FirstPacket == nil {
			continue
		}

		pid := data.FirstPacket.Header.PID
		switch {
		case pid == videoPID && !videoDone:
			videoBuf = append(videoBuf, data.PES.Data...)
			videoDone = parseTSVideo(videoType, videoBuf, info)
		case pid == audioPID && !audioDone:
			audioDone = parseTSAudioFrame(data.PES.Data, info)
		}

		if videoDone && (audioDone || audioPID == 0) {
			break
		}
	}

	if !pmtSeen {
		return errors.New("no program map table found")
	}
	if info.VideoCodec == VideoNone {
		return errors.New("video stream did not yield codec parameters")
	}

	fillTSDuration(f, size, info)
	return nil
}

// markTSAudio records the audio codec implied by the PMT stream type.
// Frame headers refine channels, sample rate, and bitrate later.
func markTSAudio(streamType uint8, info *Info) {
	switch streamType {
	case tsStreamMPEG1Audio:
		info.AudioCodec = AudioMP3
	case tsStreamMPEG2Audio:
		info.AudioCodec = AudioMP2
	case tsStreamADTSAAC, tsStreamLATMAAC:
		info.AudioCodec = AudioAAC
	case tsStreamAC3, tsStreamPrivate:
		info.AudioCodec = AudioAC3
	case tsStreamDTS:
		info.AudioCodec = AudioDTS
	}
}

// parseTSVideo extracts codec parameters from accumulated video PES data.
// Returns true once the parameters are complete.
func parseTSVideo(streamType uint8, buf []byte, info *Info) bool {
	switch streamType {
	case tsStreamH264:
		return parseH264AnnexB(buf, info)
	case tsStreamMPEG1Video, tsStreamMPEG2Video:
		return parseMPEGSequenceHeader(buf, info)
	}
	return false
}

// parseH264AnnexB scans an Annex B elementary stream for the SPS and
// decodes resolution, frame rate, profile, and level from it.
func parseH264AnnexB(buf []byte, info *Info) bool {
	var nalus h264.AnnexB
	if err := nalus.Unmarshal(buf); err != nil {
		return false
	}
	for _, nalu := range nalus {
		if len(nalu) == 0 || h264.NALUType(nalu[0]&0x1f) != h264.NALUTypeSPS {
			continue
		}
		var sps h264.SPS
		if err := sps.Unmarshal(nalu); err != nil {
			continue
		}
		info.VideoCodec = VideoH264
		info.Width = sps.Width()
		info.Height = sps.Height()
		info.FPS = sps.FPS()
		info.VideoProfile = int(sps.ProfileIdc)
		info.VideoLevel = int(sps.LevelIdc)
		info.Interlaced = !sps.FrameMbsOnlyFlag
		return true
	}
	return false
}

var mpegFrameRates = [16]float64{
	0, 23.976, 24, 25, 29.97, 30, 50, 59.94, 60, 0, 0, 0, 0, 0, 0, 0,
}

// parseMPEGSequenceHeader finds an MPEG-1/2 sequence header start code and
// decodes resolution and frame rate. The presence of a sequence extension
// distinguishes MPEG-2 from MPEG-1.
func parseMPEGSequenceHeader(buf []byte, info *Info) bool {
	for i := 0; i+11 < len(buf); i++ {
		if buf[i] != 0 || buf[i+1] != 0 || buf[i+2] != 0x01 || buf[i+3] != 0xb3 {
			continue
		}
		b := buf[i+4:]
		info.Width = int(b[0])<<4 | int(b[1])>>4
		info.Height = int(b[1]&0x0f)<<8 | int(b[2])
		info.FPS = mpegFrameRates[b[3]&0x0f]
		info.VideoCodec = VideoMPEG1
		if hasMPEG2SequenceExtension(buf[i+4:]) {
			info.VideoCodec = VideoMPEG2
		}
		return true
	}
	return false
}

// hasMPEG2SequenceExtension looks for an extension start code with the
// sequence extension identifier following the sequence header.
func hasMPEG2SequenceExtension(buf []byte) bool {
	limit := len(buf)
	if limit > 256 {
		limit = 256
	}
	for i := 0; i+4 < limit; i++ {
		if buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 0x01 && buf[i+3] == 0xb5 &&
			buf[i+4]>>4 == 0x01 {
			return true
		}
	}
	return false
}

// parseTSAudioFrame refines the audio description from the first frame
// header found in a PES payload.
func parseTSAudioFrame(data []byte, info *Info) bool {
	switch info.AudioCodec {
	case AudioAAC:
		return parseADTSHeader(data, info)
	case AudioAC3:
		for i := 0; i+7 < len(data); i++ {
			if parseAC3Header(data[i:], info) {
				return true
			}
		}
		return false
	case AudioMP3, AudioMP2:
		for i := 0; i+4 < len(data); i++ {
			if parseMPAHeader(data[i:], info) {
				return true
			}
		}
		return false
	case AudioDTS:
		// Channel layout is not needed for the AC3-equivalent profile.
		return true
	}
	return false
}

// fillTSDuration derives the stream duration from the program clock
// references nearest each end of the file, and the container bitrate from
// size over duration. Best effort: a stream without PCRs keeps zero values.
func fillTSDuration(f *os.File, size int64, info *Info) {
	first, okFirst := scanPCR(f, 0, min(size, tsTailReadLimit), info.TSPacketSize, false)
	tailStart := size - tsTailReadLimit
	if tailStart < 0 {
		tailStart = 0
	}
	tailStart -= tailStart % int64(info.TSPacketSize)
	last, okLast := scanPCR(f, tailStart, size-tailStart, info.TSPacketSize, true)
	if !okFirst || !okLast || last <= first {
		return
	}
	elapsed := time.Duration(last-first) * time.Second / 90000
	info.Duration = elapsed
	if secs := elapsed.Seconds(); secs > 0 {
		info.Bitrate = int(float64(size) * 8 / secs)
	}
}

// scanPCR reads a window of the file and returns the first or last PCR base
// found. The window offset must be packet-aligned.
func scanPCR(f *os.File, offset, length int64, packetSize int, wantLast bool) (int64, bool) {
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, false
	}
	buf = buf[:n]

	// 192-byte DLNA framing carries a 4-byte timestamp ahead of each packet.
	lead := 0
	if packetSize == 192 {
		lead = 4
	}

	var found int64
	var ok bool
	for i := 0; i+packetSize <= len(buf); i += packetSize {
		p := buf[i+lead:]
		if p[0] != 0x47 {
			break
		}
		if p[3]&0x20 == 0 || p[4] < 7 || p[5]&0x10 == 0 {
			continue
		}
		base := int64(p[6])<<25 | int64(p[7])<<17 | int64(p[8])<<9 |
			int64(p[9])<<1 | int64(p[10])>>7
		found, ok = base, true
		if !wantLast {
			return found, true
		}
	}
	return found, ok
}
