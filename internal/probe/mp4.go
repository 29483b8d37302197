package probe

import (
	"fmt"
	"io"
	"os"
	"time"

	gomp4 "github.com/abema/go-mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// MPEG-4 object type indications from the esds decoder config.
const (
	otiMPEG4Video = 0x20
	otiAACLC      = 0x40
	otiMP3        = 0x6b
	otiAC3        = 0xa5
)

// parseMP4 walks the box structure of an MP4-family file and fills codec
// parameters for the first video and audio tracks.
func parseMP4(f *os.File, size int64, info *Info) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking stream start: %w", err)
	}

	var handler string

	_, err := gomp4.ReadBoxStructure(f, func(h *gomp4.ReadHandle) (interface{}, error) {
		switch h.BoxInfo.Type.String() {
		case "ftyp":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			ftyp := box.(*gomp4.Ftyp)
			info.FTypBrand = string(ftyp.MajorBrand[:])

		case "mvhd":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			mvhd := box.(*gomp4.Mvhd)
			if mvhd.Timescale > 0 {
				info.Duration = time.Duration(mvhd.GetDuration()) * time.Second / time.Duration(mvhd.Timescale)
			}

		case "trak":
			handler = ""

		case "hdlr":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			hdlr := box.(*gomp4.Hdlr)
			handler = string(hdlr.HandlerType[:])

		case "avc1", "avc3":
			if handler == "vide" && info.VideoCodec == VideoNone {
				info.VideoCodec = VideoH264
			}

		case "avcC":
			if info.VideoCodec != VideoH264 || info.Width != 0 {
				break
			}
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			conf := box.(*gomp4.AVCDecoderConfiguration)
			info.VideoProfile = int(conf.Profile)
			info.VideoLevel = int(conf.Level)
			for _, set := range conf.SequenceParameterSets {
				var sps h264.SPS
				if err := sps.Unmarshal(set.NALUnit); err != nil {
					continue
				}
				info.Width = sps.Width()
				info.Height = sps.Height()
				info.FPS = sps.FPS()
				info.Interlaced = !sps.FrameMbsOnlyFlag
				break
			}

		case "mp4v":
			if handler != "vide" || info.VideoCodec != VideoNone {
				break
			}
			info.VideoCodec = VideoMPEG4
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			vse := box.(*gomp4.VisualSampleEntry)
			info.Width = int(vse.Width)
			info.Height = int(vse.Height)

		case "s263":
			if handler == "vide" && info.VideoCodec == VideoNone {
				info.VideoCodec = VideoMPEG4
			}

		case "mp4a":
			if handler != "soun" || info.AudioCodec != AudioNone {
				break
			}
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			ase := box.(*gomp4.AudioSampleEntry)
			info.AudioChannels = int(ase.ChannelCount)
			info.AudioSampleRate = int(ase.SampleRate >> 16)

		case "samr":
			if handler == "soun" && info.AudioCodec == AudioNone {
				info.AudioCodec = AudioAMR
				box, _, err := h.ReadPayload()
				if err != nil {
					return nil, err
				}
				ase := box.(*gomp4.AudioSampleEntry)
				info.AudioChannels = int(ase.ChannelCount)
				info.AudioSampleRate = int(ase.SampleRate >> 16)
			}

		case "ac-3":
			if handler == "soun" && info.AudioCodec == AudioNone {
				info.AudioCodec = AudioAC3
			}

		case "esds":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			applyEsds(box.(*gomp4.Esds), handler, info)
		}

		return h.Expand()
	})
	if err != nil {
		return fmt.Errorf("reading box structure: %w", err)
	}

	if info.VideoCodec == VideoNone {
		return fmt.Errorf("no video track found")
	}

	if info.Bitrate == 0 && info.Duration > 0 {
		info.Bitrate = int(float64(size) * 8 / info.Duration.Seconds())
	}
	return nil
}

// applyEsds reads the object type, bitrate, and decoder specific info out
// of an elementary stream descriptor.
func applyEsds(esds *gomp4.Esds, handler string, info *Info) {
	for _, d := range esds.Descriptors {
		switch d.Tag {
		case gomp4.DecoderConfigDescrTag:
			if d.DecoderConfigDescriptor == nil {
				continue
			}
			oti := d.DecoderConfigDescriptor.ObjectTypeIndication
			if handler == "soun" {
				switch oti {
				case otiAACLC:
					info.AudioCodec = AudioAAC
				case otiMP3:
					info.AudioCodec = AudioMP3
				case otiAC3:
					info.AudioCodec = AudioAC3
				}
				if info.AudioBitrate == 0 {
					info.AudioBitrate = int(d.DecoderConfigDescriptor.AvgBitrate)
				}
			}
		case gomp4.DecSpecificInfoTag:
			if handler == "soun" && len(d.Data) > 0 {
				info.AudioExtradata = d.Data
				info.AACObjectType = int(d.Data[0] >> 3)
			}
		}
	}
}
