package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDLNAProfileCascade(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		ext      string
		wantPN   string
		wantMime string
	}{
		{
			name:     "mpeg1 program stream",
			info:     Info{Container: ContainerMPEGPS, VideoCodec: VideoMPEG1, Width: 352, Height: 240},
			wantPN:   "MPEG1",
			wantMime: "video/mpeg",
		},
		{
			name:     "mpeg1 oversized keeps mime only",
			info:     Info{Container: ContainerMPEGPS, VideoCodec: VideoMPEG1, Width: 704, Height: 480},
			wantPN:   "",
			wantMime: "video/mpeg",
		},
		{
			name:     "mpeg2 program stream pal",
			info:     Info{Container: ContainerMPEGPS, VideoCodec: VideoMPEG2, Width: 720, Height: 576},
			wantPN:   "MPEG_PS_PAL",
			wantMime: "video/mpeg",
		},
		{
			name:     "mpeg2 program stream ntsc",
			info:     Info{Container: ContainerMPEGPS, VideoCodec: VideoMPEG2, Width: 720, Height: 480},
			wantPN:   "MPEG_PS_NTSC",
			wantMime: "video/mpeg",
		},
		{
			name: "mpeg2 transport hd iso",
			info: Info{
				Container: ContainerMPEGTS, VideoCodec: VideoMPEG2,
				Width: 1920, Height: 1080, TSPacketSize: 188, TSTimestamp: TSTimestampNone,
			},
			wantPN:   "MPEG_TS_HD_NA_ISO",
			wantMime: "video/mpeg",
		},
		{
			name: "mpeg2 transport sd eu timestamped",
			info: Info{
				Container: ContainerMPEGTS, VideoCodec: VideoMPEG2,
				Width: 720, Height: 576, TSPacketSize: 192, TSTimestamp: TSTimestampValid,
			},
			wantPN:   "MPEG_TS_SD_EU_T",
			wantMime: "video/vnd.dlna.mpeg-tts",
		},
		{
			name: "mpeg2 transport sd na empty timestamp",
			info: Info{
				Container: ContainerMPEGTS, VideoCodec: VideoMPEG2,
				Width: 720, Height: 480, TSPacketSize: 192, TSTimestamp: TSTimestampEmpty,
			},
			wantPN:   "MPEG_TS_SD_NA",
			wantMime: "video/vnd.dlna.mpeg-tts",
		},
		{
			name: "avc transport main sd ac3",
			info: Info{
				Container: ContainerMPEGTS, VideoCodec: VideoH264,
				VideoProfile: h264ProfileMain, Width: 720, Height: 576, Bitrate: 8000000,
				AudioCodec: AudioAC3, TSPacketSize: 188, TSTimestamp: TSTimestampNone,
			},
			wantPN:   "AVC_TS_MP_SD_AC3_ISO",
			wantMime: "video/mpeg",
		},
		{
			name: "avc transport baseline cif30 mp3 timestamped",
			info: Info{
				Container: ContainerMPEGTS, VideoCodec: VideoH264,
				VideoProfile: h264ProfileBaseline, Width: 352, Height: 288, Bitrate: 2000000,
				AudioCodec: AudioMP3, TSPacketSize: 192, TSTimestamp: TSTimestampValid,
			},
			wantPN:   "AVC_TS_BL_CIF30_MPEG1_L3_T",
			wantMime: "video/vnd.dlna.mpeg-tts",
		},
		{
			name: "avc transport hd60 progressive 720p",
			info: Info{
				Container: ContainerMPEGTS, VideoCodec: VideoH264,
				VideoProfile: h264ProfileMain, Width: 1280, Height: 720, FPS: 59.94,
				Bitrate:    12000000,
				AudioCodec: AudioAC3, TSPacketSize: 192, TSTimestamp: TSTimestampEmpty,
			},
			wantPN:   "AVC_TS_HD_60_AC3",
			wantMime: "video/vnd.dlna.mpeg-tts",
		},
		{
			name: "avc transport high profile forces timestamp",
			info: Info{
				Container: ContainerMPEGTS, VideoCodec: VideoH264,
				VideoProfile: h264ProfileHigh, Width: 1920, Height: 1080, Bitrate: 25000000,
				AudioCodec: AudioAC3, TSPacketSize: 192, TSTimestamp: TSTimestampEmpty,
			},
			wantPN:   "AVC_TS_HP_HD_AC3_T",
			wantMime: "video/vnd.dlna.mpeg-tts",
		},
		{
			name: "avc transport high profile without ac3 fails",
			info: Info{
				Container: ContainerMPEGTS, VideoCodec: VideoH264,
				VideoProfile: h264ProfileHigh, Width: 1920, Height: 1080, Bitrate: 25000000,
				AudioCodec: AudioAAC, AudioChannels: 2, AudioSampleRate: 48000,
				TSPacketSize: 188,
			},
			wantPN:   "",
			wantMime: "video/mpeg",
		},
		{
			name: "avc mp4 main sd aac",
			info: Info{
				Container: ContainerMP4, VideoCodec: VideoH264,
				VideoProfile: h264ProfileMain, Width: 720, Height: 576, Bitrate: 8000000,
				AudioCodec: AudioAAC, AudioChannels: 2, AudioSampleRate: 48000, AudioBitrate: 128000,
			},
			ext:      ".mp4",
			wantPN:   "AVC_MP4_MP_SD_AAC_MULT5",
			wantMime: "video/mp4",
		},
		{
			name: "avc mp4 baseline cif15 low rate aac",
			info: Info{
				Container: ContainerMP4, VideoCodec: VideoH264,
				VideoProfile: h264ProfileBaseline, VideoLevel: 13,
				Width: 352, Height: 288, Bitrate: 400000,
				AudioCodec: AudioAAC, AudioChannels: 2, AudioSampleRate: 44100, AudioBitrate: 96000,
			},
			ext:      ".mp4",
			wantPN:   "AVC_MP4_BL_CIF15_AAC_520",
			wantMime: "video/mp4",
		},
		{
			name: "avc mp4 baseline falls back to main tiers",
			info: Info{
				Container: ContainerMP4, VideoCodec: VideoH264,
				VideoProfile: h264ProfileBaseline, VideoLevel: 40,
				Width: 1920, Height: 1080, Bitrate: 20000000,
				AudioCodec: AudioAAC, AudioChannels: 2, AudioSampleRate: 48000, AudioBitrate: 192000,
			},
			ext:      ".mp4",
			wantPN:   "AVC_MP4_MP_HD_1080i_AAC",
			wantMime: "video/mp4",
		},
		{
			name: "mpeg4 part2 3gpp amr",
			info: Info{
				Container: ContainerMP4, VideoCodec: VideoMPEG4,
				FTypBrand: "3gp4", Width: 176, Height: 144, Bitrate: 200000,
				AudioCodec: AudioAMR,
			},
			ext:      ".3gp",
			wantPN:   "MPEG4_P2_3GPP_SP_L0B_AMR",
			wantMime: "video/3gpp",
		},
		{
			name: "wmv medium base audio",
			info: Info{
				Container: ContainerASF, VideoCodec: VideoWMV3, VideoProfile: 1, VideoLevel: 1,
				Width: 640, Height: 480, Bitrate: 8000000,
				AudioCodec: AudioWMA2, AudioBitrate: 150000,
			},
			ext:      ".wmv",
			wantPN:   "WMVMED_BASE",
			wantMime: "video/x-ms-wmv",
		},
		{
			name: "wmv simple profile low level",
			info: Info{
				Container: ContainerASF, VideoCodec: VideoWMV3, VideoProfile: 0, VideoLevel: 0,
				Width: 176, Height: 144, Bitrate: 500000,
				AudioCodec: AudioMP3, AudioBitrate: 64000,
			},
			ext:      ".wmv",
			wantPN:   "WMVSPLL_MP3",
			wantMime: "video/x-ms-wmv",
		},
		{
			name:     "matroska has no profile",
			info:     Info{Container: ContainerMatroska, VideoCodec: VideoOther},
			ext:      ".mkv",
			wantPN:   "",
			wantMime: "video/x-matroska",
		},
		{
			name:     "quicktime extension selects quicktime mime",
			info:     Info{Container: ContainerMP4, VideoCodec: VideoH264, VideoProfile: h264ProfileMain, Width: 1280, Height: 720},
			ext:      ".mov",
			wantPN:   "",
			wantMime: "video/quicktime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pn, mime := DLNAProfile(&tt.info, tt.ext)
			assert.Equal(t, tt.wantPN, pn)
			assert.Equal(t, tt.wantMime, mime)
		})
	}
}

func TestClassifyAudio(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want AudioProfile
	}{
		{"mp3", Info{AudioCodec: AudioMP3}, AudioProfileMP3},
		{"ac3", Info{AudioCodec: AudioAC3}, AudioProfileAC3},
		{"dts maps to ac3", Info{AudioCodec: AudioDTS}, AudioProfileAC3},
		{"wma base", Info{AudioCodec: AudioWMA2, AudioBitrate: 128000}, AudioProfileWMABase},
		{"wma full", Info{AudioCodec: AudioWMA2, AudioBitrate: 320000}, AudioProfileWMAFull},
		{"wma too fast", Info{AudioCodec: AudioWMA2, AudioBitrate: 500000}, AudioProfileUnknown},
		{"wma pro", Info{AudioCodec: AudioWMAPro, AudioBitrate: 768000}, AudioProfileWMAPro},
		{"aac stereo", Info{AudioCodec: AudioAAC, AACObjectType: 2, AudioChannels: 2, AudioSampleRate: 48000, AudioBitrate: 128000}, AudioProfileAAC},
		{"aac 5.1", Info{AudioCodec: AudioAAC, AACObjectType: 2, AudioChannels: 6, AudioSampleRate: 48000, AudioBitrate: 640000}, AudioProfileAACMult5},
		{"aac wrong object type", Info{AudioCodec: AudioAAC, AACObjectType: 5, AudioChannels: 2, AudioSampleRate: 48000}, AudioProfileUnknown},
		{"aac sample rate too high", Info{AudioCodec: AudioAAC, AACObjectType: 2, AudioChannels: 2, AudioSampleRate: 96000}, AudioProfileUnknown},
		{"amr", Info{AudioCodec: AudioAMR}, AudioProfileAMR},
		{"none", Info{}, AudioProfileUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyAudio(&tt.info))
		})
	}
}
