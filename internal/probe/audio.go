package probe

// AudioProfile is the DLNA audio classification that suffixes video
// profile names and gates several of them.
type AudioProfile int

// Audio profiles.
const (
	AudioProfileUnknown AudioProfile = iota
	AudioProfileMP3
	AudioProfileAC3
	AudioProfileWMABase
	AudioProfileWMAFull
	AudioProfileWMAPro
	AudioProfileMP2
	AudioProfilePCM
	AudioProfileAAC
	AudioProfileAACMult5
	AudioProfileAMR
)

// MPEG-4 audio object types accepted for the AAC profiles.
const (
	aacObjectLC   = 2
	aacObjectLCER = 17
)

// classifyAudio buckets the audio stream into a DLNA audio profile using
// codec identity, channel count, sample rate, and bitrate.
func classifyAudio(info *Info) AudioProfile {
	switch info.AudioCodec {
	case AudioMP3:
		return AudioProfileMP3
	case AudioAC3, AudioDTS:
		return AudioProfileAC3
	case AudioWMA1, AudioWMA2:
		switch {
		case info.AudioBitrate <= 193000:
			return AudioProfileWMABase
		case info.AudioBitrate <= 385000:
			return AudioProfileWMAFull
		}
		return AudioProfileUnknown
	case AudioWMAPro:
		return AudioProfileWMAPro
	case AudioMP2:
		return AudioProfileMP2
	case AudioPCM:
		return AudioProfilePCM
	case AudioAAC:
		if info.AACObjectType != 0 &&
			info.AACObjectType != aacObjectLC && info.AACObjectType != aacObjectLCER {
			return AudioProfileUnknown
		}
		if info.AudioSampleRate < 8000 || info.AudioSampleRate > 48000 {
			return AudioProfileUnknown
		}
		switch {
		case info.AudioChannels <= 2 && info.AudioBitrate <= 576000:
			return AudioProfileAAC
		case info.AudioChannels <= 6 && info.AudioBitrate <= 1440000:
			return AudioProfileAACMult5
		}
		return AudioProfileUnknown
	case AudioAMR:
		return AudioProfileAMR
	}
	return AudioProfileUnknown
}

var adtsSampleRates = [16]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

// parseADTSHeader decodes the fixed part of an ADTS frame header. Returns
// false when the buffer does not start with an ADTS sync word.
func parseADTSHeader(b []byte, info *Info) bool {
	if len(b) < 7 || b[0] != 0xff || b[1]&0xf0 != 0xf0 {
		return false
	}
	info.AudioCodec = AudioAAC
	// profile field is the object type minus one.
	info.AACObjectType = int(b[2]>>6) + 1
	info.AudioSampleRate = adtsSampleRates[(b[2]>>2)&0x0f]
	channelConfig := int(b[2]&0x01)<<2 | int(b[3]>>6)
	if channelConfig == 7 {
		channelConfig = 8
	}
	info.AudioChannels = channelConfig
	return true
}

var ac3SampleRates = [4]int{48000, 44100, 32000, 0}

// ac3Bitrates indexes the nominal bitrate in kbit/s by frmsizecod>>1.
var ac3Bitrates = [19]int{
	32, 40, 48, 56, 64, 80, 96, 112, 128,
	160, 192, 224, 256, 320, 384, 448, 512, 576, 640,
}

// ac3Channels indexes channel count by acmod; LFE adds one more.
var ac3Channels = [8]int{2, 1, 2, 3, 3, 4, 4, 5}

// parseAC3Header decodes an AC-3 syncframe header.
func parseAC3Header(b []byte, info *Info) bool {
	if len(b) < 7 || b[0] != 0x0b || b[1] != 0x77 {
		return false
	}
	fscod := int(b[4] >> 6)
	frmsizecod := int(b[4] & 0x3f)
	if fscod == 3 || frmsizecod>>1 >= len(ac3Bitrates) {
		return false
	}
	info.AudioCodec = AudioAC3
	info.AudioSampleRate = ac3SampleRates[fscod]
	info.AudioBitrate = ac3Bitrates[frmsizecod>>1] * 1000
	acmod := int(b[6] >> 5)
	info.AudioChannels = ac3Channels[acmod]
	// The LFE bit position depends on acmod; skip it and accept the
	// full-bandwidth channel count, which is what the profiles gate on.
	return true
}

// mpaBitratesV1 holds MPEG-1 bitrates in kbit/s, indexed [layer-1][code].
var mpaBitratesV1 = [3][16]int{
	{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
	{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
}

var mpaSampleRates = [4]int{44100, 48000, 32000, 0}

// parseMPAHeader decodes an MPEG audio frame header (layers 2 and 3).
func parseMPAHeader(b []byte, info *Info) bool {
	if len(b) < 4 || b[0] != 0xff || b[1]&0xe0 != 0xe0 {
		return false
	}
	version := (b[1] >> 3) & 0x03 // 3 = MPEG-1, 2 = MPEG-2
	layer := 4 - int((b[1]>>1)&0x03)
	if layer < 1 || layer > 3 {
		return false
	}
	switch layer {
	case 3:
		info.AudioCodec = AudioMP3
	case 2:
		info.AudioCodec = AudioMP2
	default:
		return false
	}
	rate := mpaSampleRates[(b[2]>>2)&0x03]
	if version == 2 {
		rate /= 2
	} else if version == 0 {
		rate /= 4
	}
	info.AudioSampleRate = rate
	if version == 3 {
		info.AudioBitrate = mpaBitratesV1[layer-1][(b[2]>>4)&0x0f] * 1000
	}
	if (b[3]>>6)&0x03 == 3 {
		info.AudioChannels = 1
	} else {
		info.AudioChannels = 2
	}
	return true
}
