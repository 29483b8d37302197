package probe

import "time"

// Container is the detected media container format.
type Container string

// Containers recognized by the prober.
const (
	ContainerMPEGTS   Container = "mpegts"
	ContainerMPEGPS   Container = "mpeg"
	ContainerMP4      Container = "mp4"
	ContainerAVI      Container = "avi"
	ContainerASF      Container = "asf"
	ContainerMatroska Container = "matroska"
	ContainerFLV      Container = "flv"
	ContainerUnknown  Container = ""
)

// VideoCodec identifies the video elementary stream codec.
type VideoCodec string

// Video codecs.
const (
	VideoNone    VideoCodec = ""
	VideoMPEG1   VideoCodec = "mpeg1video"
	VideoMPEG2   VideoCodec = "mpeg2video"
	VideoH264    VideoCodec = "h264"
	VideoMPEG4   VideoCodec = "mpeg4"
	VideoMSMPEG4 VideoCodec = "msmpeg4"
	VideoWMV3    VideoCodec = "wmv3"
	VideoVC1     VideoCodec = "vc1"
	VideoOther   VideoCodec = "other"
)

// AudioCodec identifies the audio elementary stream codec.
type AudioCodec string

// Audio codecs.
const (
	AudioNone   AudioCodec = ""
	AudioMP2    AudioCodec = "mp2"
	AudioMP3    AudioCodec = "mp3"
	AudioAC3    AudioCodec = "ac3"
	AudioDTS    AudioCodec = "dts"
	AudioAAC    AudioCodec = "aac"
	AudioWMA1   AudioCodec = "wmav1"
	AudioWMA2   AudioCodec = "wmav2"
	AudioWMAPro AudioCodec = "wmapro"
	AudioPCM    AudioCodec = "pcm"
	AudioAMR    AudioCodec = "amr"
	AudioOther  AudioCodec = "other"
)

// TSTimestamp describes the 4-byte timestamp prefix of 192-byte TS framing.
type TSTimestamp int

// Timestamp states for MPEG-TS packets.
const (
	TSTimestampNone TSTimestamp = iota
	TSTimestampEmpty
	TSTimestampValid
)

// Info is everything the prober learned about a file. The profile cascade
// reads it; the Detail builder copies the display fields out of it.
type Info struct {
	Container Container

	// FTypBrand is the MP4 major brand ("isom", "3gp4", "qt  ") when the
	// container is MP4-family, empty otherwise.
	FTypBrand string

	VideoCodec   VideoCodec
	VideoFourCC  string
	Width        int
	Height       int
	FPS          float64
	Interlaced   bool
	VideoProfile int // H.264 profile_idc or container-specific profile
	VideoLevel   int // H.264 level_idc (x10) or container-specific level

	// VideoExtradata is codec private data (avcC payload, BITMAPINFOHEADER
	// trailer for WMV3). Consulted for profile bits the headers omit.
	VideoExtradata []byte

	AudioCodec      AudioCodec
	AudioChannels   int
	AudioSampleRate int
	AudioBitrate    int // bits per second
	AudioExtradata  []byte

	// AACObjectType is the MPEG-4 audio object type from the decoder
	// specific info, zero when unknown.
	AACObjectType int

	Duration time.Duration
	Bitrate  int // container bitrate, bits per second

	TSPacketSize int // 188 or 192, zero for non-TS containers
	TSTimestamp  TSTimestamp

	Title string
}

// HasVideo reports whether a video stream was found.
func (i *Info) HasVideo() bool {
	return i.VideoCodec != VideoNone
}
