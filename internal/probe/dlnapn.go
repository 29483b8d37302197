package probe

import "strings"

// H.264 profile_idc values the rules care about.
const (
	h264ProfileBaseline = 66
	h264ProfileMain     = 77
	h264ProfileHigh     = 100
)

// pnInput is the full tuple the profile rules are indexed by.
type pnInput struct {
	info  *Info
	audio AudioProfile
	ext   string // lowercased filename extension with dot
}

// pnRule is one row of the profile decision table. Rules are evaluated in
// order; the first rule whose match accepts the input decides the outcome.
// An emit that returns an empty profile means the family matched but no
// variant within it fits; evaluation stops either way.
type pnRule struct {
	family string
	match  func(*pnInput) bool
	emit   func(*pnInput) (pn, mime string)
}

// pnRules is the DLNA media profile decision table. The DLNA spec only
// names profiles for the TS, PS, MP4, and ASF containers; everything else
// streams with a generic MIME and no profile.
var pnRules = []pnRule{
	{
		family: "MPEG1",
		match: func(in *pnInput) bool {
			return in.info.Container == ContainerMPEGPS && in.info.VideoCodec == VideoMPEG1
		},
		emit: emitMPEG1,
	},
	{
		family: "MPEG_PS",
		match: func(in *pnInput) bool {
			return in.info.Container == ContainerMPEGPS && in.info.VideoCodec == VideoMPEG2
		},
		emit: emitMPEGPS,
	},
	{
		family: "MPEG_TS",
		match: func(in *pnInput) bool {
			return in.info.Container == ContainerMPEGTS && in.info.VideoCodec == VideoMPEG2
		},
		emit: emitMPEGTS,
	},
	{
		family: "AVC_TS",
		match: func(in *pnInput) bool {
			return in.info.Container == ContainerMPEGTS && in.info.VideoCodec == VideoH264
		},
		emit: emitAVCTS,
	},
	{
		family: "AVC_MP4",
		match: func(in *pnInput) bool {
			return in.info.Container == ContainerMP4 && in.info.VideoCodec == VideoH264 &&
				in.ext != ".mov"
		},
		emit: emitAVCMP4,
	},
	{
		family: "MPEG4_P2",
		match: func(in *pnInput) bool {
			return in.info.Container == ContainerMP4 && in.info.VideoCodec == VideoMPEG4 &&
				in.ext != ".mov"
		},
		emit: emitMPEG4P2,
	},
	{
		family: "WMV",
		match: func(in *pnInput) bool {
			return in.info.Container == ContainerASF &&
				(in.info.VideoCodec == VideoWMV3 || in.info.VideoCodec == VideoVC1)
		},
		emit: emitWMV,
	},
}

// DLNAProfile resolves the profile name and MIME type for a probed video
// file. An empty profile with a non-empty MIME is a valid outcome: the
// file still streams, just without a DLNA.ORG_PN declaration.
func DLNAProfile(info *Info, ext string) (string, string) {
	in := &pnInput{info: info, audio: classifyAudio(info), ext: strings.ToLower(ext)}
	var pn, mime string
	for _, rule := range pnRules {
		if rule.match(in) {
			pn, mime = rule.emit(in)
			break
		}
	}
	if mime == "" {
		mime = fallbackMime(info.Container, in.ext)
	}
	return pn, mime
}

func emitMPEG1(in *pnInput) (string, string) {
	if in.info.Width == 352 && in.info.Height <= 288 {
		return "MPEG1", "video/mpeg"
	}
	return "", "video/mpeg"
}

func emitMPEGPS(in *pnInput) (string, string) {
	if in.info.Height == 576 || in.info.Height == 288 {
		return "MPEG_PS_PAL", "video/mpeg"
	}
	return "MPEG_PS_NTSC", "video/mpeg"
}

func emitMPEGTS(in *pnInput) (string, string) {
	info := in.info
	var b strings.Builder
	b.WriteString("MPEG_TS_")
	switch {
	case info.Width >= 1280 && info.Height >= 720:
		b.WriteString("HD_NA")
	case info.Height == 576 || info.Height == 288:
		b.WriteString("SD_EU")
	default:
		b.WriteString("SD_NA")
	}
	return finishTS(b.String(), info.TSTimestamp)
}

func emitAVCTS(in *pnInput) (string, string) {
	info := in.info
	fps := int(info.FPS)
	var b strings.Builder
	b.WriteString("AVC_TS_")

	hd60 := (((info.Width == 1920 || info.Width == 1440) && info.Height == 1080) ||
		(info.Width == 720 && info.Height == 480)) && fps == 59 && info.Interlaced ||
		(info.Width == 1280 && info.Height == 720 && fps == 59 && !info.Interlaced)
	hd50 := ((info.Width == 1920 && info.Height == 1080) ||
		(info.Width == 1440 && info.Height == 1080) ||
		(info.Width == 1280 && info.Height == 720) ||
		(info.Width == 720 && info.Height == 576)) && info.Interlaced && fps == 50

	mainOrHigh := info.VideoProfile == h264ProfileMain || info.VideoProfile == h264ProfileHigh
	tiered := false
	switch {
	case hd60 && mainOrHigh && in.audio == AudioProfileAC3:
		b.WriteString("HD_60_")
		tiered = true
	case hd50 && mainOrHigh && in.audio == AudioProfileAC3:
		b.WriteString("HD_50_")
		tiered = true
	}

	if !tiered {
		baseline := info.VideoProfile == h264ProfileBaseline
		switch {
		case baseline && info.Width <= 352 && info.Height <= 288 && info.Bitrate <= 384000:
			b.WriteString("BL_CIF15_")
		case baseline && info.Width <= 352 && info.Height <= 288 && info.Bitrate <= 3000000:
			b.WriteString("BL_CIF30_")
		case info.VideoProfile == h264ProfileHigh:
			if info.Width <= 1920 && info.Height <= 1152 && info.Bitrate <= 30000000 &&
				in.audio == AudioProfileAC3 {
				b.WriteString("HP_HD_")
			} else {
				return "", ""
			}
		default:
			// Baseline streams too big for the CIF tiers fall back to the
			// main profile tiers, as do unknown profiles.
			switch {
			case info.Width <= 720 && info.Height <= 576 && info.Bitrate <= 10000000:
				b.WriteString("MP_SD_")
			case info.Width <= 1920 && info.Height <= 1152 && info.Bitrate <= 20000000:
				b.WriteString("MP_HD_")
			default:
				return "", ""
			}
		}
	}

	suffix := avcAudioSuffix(in.audio)
	if suffix == "" {
		return "", ""
	}
	b.WriteString(suffix)

	ts := info.TSTimestamp
	if info.TSPacketSize == 192 {
		// High profile streams are declared timestamped even when the
		// prefix bytes happened to be zero in the sampled packets. The
		// HD_60/HD_50 tiers do not get this treatment.
		if (!tiered && info.VideoProfile == h264ProfileHigh) || ts == TSTimestampValid {
			ts = TSTimestampValid
		} else {
			ts = TSTimestampEmpty
		}
	}
	return finishTS(b.String(), ts)
}

func emitAVCMP4(in *pnInput) (string, string) {
	info := in.info
	base := "AVC_MP4_"

	if info.VideoProfile == h264ProfileBaseline {
		if pn := avcMP4Baseline(in); pn != "" {
			return base + pn, ""
		}
		// No baseline tier fits; retry against the main profile tiers.
	}

	switch {
	case info.VideoProfile == h264ProfileHigh:
		if info.Width <= 1920 && info.Height <= 1080 && info.Bitrate <= 25000000 &&
			in.audio == AudioProfileAAC {
			return base + "HP_HD_AAC", ""
		}
		return "", ""
	case info.VideoProfile == h264ProfileMain || info.VideoProfile == h264ProfileBaseline:
		switch {
		case info.Width <= 720 && info.Height <= 576 && info.Bitrate <= 10000000:
			switch in.audio {
			case AudioProfileAC3:
				return base + "MP_SD_AC3", ""
			case AudioProfileAAC, AudioProfileAACMult5:
				return base + "MP_SD_AAC_MULT5", ""
			case AudioProfileMP3:
				return base + "MP_SD_MPEG1_L3", ""
			}
			return "", ""
		case info.Width <= 1280 && info.Height <= 720 && info.Bitrate <= 15000000 &&
			in.audio == AudioProfileAAC:
			return base + "MP_HD_720p_AAC", ""
		case info.Width <= 1920 && info.Height <= 1080 && info.Bitrate <= 21000000 &&
			in.audio == AudioProfileAAC:
			return base + "MP_HD_1080i_AAC", ""
		}
		return "", ""
	}
	return "", ""
}

// avcMP4Baseline resolves the baseline-profile MP4 tiers. Empty means the
// caller should fall back to the main profile tiers.
func avcMP4Baseline(in *pnInput) string {
	info := in.info
	switch {
	case info.Width <= 352 && info.Height <= 288:
		var tier string
		switch {
		case info.Bitrate < 600000:
			tier = "BL_CIF15_"
		case info.Bitrate < 5000000:
			tier = "BL_CIF30_"
		default:
			return ""
		}
		switch in.audio {
		case AudioProfileAMR:
			return tier + "AMR"
		case AudioProfileAAC:
			switch {
			case info.Bitrate < 520000:
				return tier + "AAC_520"
			case info.Bitrate < 940000:
				return tier + "AAC_940"
			}
		}
		return ""
	case info.Width <= 720 && info.Height <= 576:
		switch {
		case info.VideoLevel == 30 && in.audio == AudioProfileAAC && info.Bitrate <= 5000000:
			return "BL_L3L_SD_AAC"
		case info.VideoLevel <= 31 && in.audio == AudioProfileAAC && info.Bitrate <= 15000000:
			return "BL_L31_HD_AAC"
		}
		return ""
	case info.Width <= 1280 && info.Height <= 720:
		switch {
		case info.VideoLevel <= 31 && in.audio == AudioProfileAAC && info.Bitrate <= 15000000:
			return "BL_L31_HD_AAC"
		case info.VideoLevel <= 32 && in.audio == AudioProfileAAC && info.Bitrate <= 21000000:
			return "BL_L32_HD_AAC"
		}
		return ""
	}
	return ""
}

func emitMPEG4P2(in *pnInput) (string, string) {
	info := in.info
	base := "MPEG4_P2_"
	if in.ext == ".3gp" {
		switch in.audio {
		case AudioProfileAAC:
			return base + "3GPP_SP_L0B_AAC", "video/3gpp"
		case AudioProfileAMR:
			return base + "3GPP_SP_L0B_AMR", "video/3gpp"
		}
		return "", "video/3gpp"
	}
	switch {
	case info.Bitrate <= 1000000 && in.audio == AudioProfileAAC:
		return base + "MP4_ASP_AAC", ""
	case info.Bitrate <= 4000000 && info.Width <= 640 && info.Height <= 480 &&
		in.audio == AudioProfileAAC:
		return base + "MP4_SP_VGA_AAC", ""
	}
	return "", ""
}

func emitWMV(in *pnInput) (string, string) {
	info := in.info
	const mime = "video/x-ms-wmv"
	// The medium and high tiers cap bytes per second, not bits.
	byteRate := info.Bitrate / 8
	switch {
	case info.Width <= 176 && info.Height <= 144 && info.VideoLevel == 0:
		switch in.audio {
		case AudioProfileMP3:
			return "WMVSPLL_MP3", mime
		case AudioProfileWMABase:
			return "WMVSPLL_BASE", mime
		}
	case info.Width <= 352 && info.Height <= 288 && info.VideoProfile == 0 &&
		byteRate <= 384000:
		switch in.audio {
		case AudioProfileMP3:
			return "WMVSPML_MP3", mime
		case AudioProfileWMABase:
			return "WMVSPML_BASE", mime
		}
	case info.Width <= 720 && info.Height <= 576 && byteRate <= 10000000:
		switch in.audio {
		case AudioProfileWMAPro:
			return "WMVMED_PRO", mime
		case AudioProfileWMAFull:
			return "WMVMED_FULL", mime
		case AudioProfileWMABase:
			return "WMVMED_BASE", mime
		}
	case info.Width <= 1920 && info.Height <= 1080 && byteRate <= 20000000:
		switch in.audio {
		case AudioProfileWMAPro:
			return "WMVHIGH_PRO", mime
		case AudioProfileWMAFull:
			return "WMVHIGH_FULL", mime
		}
	}
	return "", mime
}

// avcAudioSuffix maps the audio profile onto the suffix AVC TS profile
// names end with.
func avcAudioSuffix(audio AudioProfile) string {
	switch audio {
	case AudioProfileMP3:
		return "MPEG1_L3"
	case AudioProfileAC3:
		return "AC3"
	case AudioProfileAAC, AudioProfileAACMult5:
		return "AAC_MULT5"
	}
	return ""
}

// finishTS applies the packet-framing suffix and MIME to a TS profile.
// Raw 188-byte streams are ISO transport streams served as video/mpeg;
// 192-byte DLNA framing is served as vnd.dlna.mpeg-tts, with a _T suffix
// when the timestamp prefix is populated.
func finishTS(pn string, ts TSTimestamp) (string, string) {
	switch ts {
	case TSTimestampValid:
		return pn + "_T", "video/vnd.dlna.mpeg-tts"
	case TSTimestampEmpty:
		return pn, "video/vnd.dlna.mpeg-tts"
	default:
		return pn + "_ISO", ""
	}
}
