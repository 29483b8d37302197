// Package dlna carries DLNA protocol constants and the contentFeatures
// header builder shared by the content directory and the streaming server.
package dlna

import "fmt"

// DLNA.ORG_FLAGS bits, transmitted as the upper half of the 192-bit
// flags field in fourth-field contentFeatures.
const (
	FlagSenderPaced         = 1 << 31
	FlagTimeBasedSeek       = 1 << 30
	FlagByteBasedSeek       = 1 << 29
	FlagPlayContainer       = 1 << 28
	FlagS0Increase          = 1 << 27
	FlagSNIncrease          = 1 << 26
	FlagRTSPPause           = 1 << 25
	FlagStreamingTransfer   = 1 << 24
	FlagInteractiveTransfer = 1 << 23
	FlagBackgroundTransfer  = 1 << 22
	FlagConnectionStall     = 1 << 21
	FlagDLNAv15             = 1 << 20
)

// TransferMode is the transferMode.dlna.org header value for a media class.
type TransferMode string

// Transfer modes.
const (
	TransferStreaming   TransferMode = "Streaming"
	TransferInteractive TransferMode = "Interactive"
	TransferBackground  TransferMode = "Background"
)

// Features describes one item's DLNA capabilities for the
// contentFeatures.dlna.org header and the DIDL-Lite protocolInfo field.
type Features struct {
	// ProfileName is the DLNA.ORG_PN value. Empty when no profile matched;
	// the PN parameter is then omitted entirely.
	ProfileName string

	// SupportsRange reports whether byte-range requests are honoured.
	SupportsRange bool

	// Flags is the primary flags word. Zero means "use defaults for the
	// media class" is NOT implied; callers always set it explicitly.
	Flags uint32
}

// ItemFlags returns the flags word advertised for a streamable item of the
// given transfer mode. Every item supports connection stalling and DLNA 1.5.
func ItemFlags(mode TransferMode) uint32 {
	flags := uint32(FlagConnectionStall | FlagDLNAv15)
	switch mode {
	case TransferStreaming:
		flags |= FlagStreamingTransfer | FlagBackgroundTransfer
	case TransferInteractive:
		flags |= FlagInteractiveTransfer | FlagBackgroundTransfer
	case TransferBackground:
		flags |= FlagBackgroundTransfer
	}
	return flags
}

// ContentFeatures renders the DLNA.ORG parameter string. The flags field is
// a 256-bit value printed as hex; only the top 32 bits are ever set.
func (f Features) ContentFeatures() string {
	pn := ""
	if f.ProfileName != "" {
		pn = fmt.Sprintf("DLNA.ORG_PN=%s;", f.ProfileName)
	}
	op := 0
	if f.SupportsRange {
		op = 1
	}
	return fmt.Sprintf("%sDLNA.ORG_OP=%02X;DLNA.ORG_CI=%X;DLNA.ORG_FLAGS=%08X%024X",
		pn, op, 0, f.Flags, 0)
}

// ProtocolInfo renders the res@protocolInfo value for a MIME type.
func (f Features) ProtocolInfo(mime string) string {
	return fmt.Sprintf("http-get:*:%s:%s", mime, f.ContentFeatures())
}

// ModeForKind maps a media kind string ("video", "audio", "image") to its
// default transfer mode.
func ModeForKind(kind string) TransferMode {
	switch kind {
	case "image":
		return TransferInteractive
	case "video", "audio":
		return TransferStreaming
	default:
		return TransferBackground
	}
}
