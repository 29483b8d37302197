package probe

import (
	"path/filepath"
	"strings"
)

// fallbackMime assigns the generic MIME type for files that matched no
// DLNA profile rule, keyed on the container.
func fallbackMime(container Container, ext string) string {
	switch container {
	case ContainerAVI:
		return "video/x-msvideo"
	case ContainerMPEGTS, ContainerMPEGPS:
		return "video/mpeg"
	case ContainerASF:
		return "video/x-ms-wmv"
	case ContainerMP4:
		if ext == ".mov" {
			return "video/quicktime"
		}
		return "video/mp4"
	case ContainerMatroska:
		return "video/x-matroska"
	case ContainerFLV:
		return "video/x-flv"
	}
	return ""
}

// MimeToExt maps a video MIME type to the extension used in /MediaItems
// URLs. Unknown types get a neutral extension; renderers key on the MIME
// and contentFeatures, not the URL.
func MimeToExt(mime string) string {
	sub := strings.TrimPrefix(mime, "video/")
	switch sub {
	case "avi", "divx", "x-msvideo":
		return "avi"
	case "mpeg", "vnd.dlna.mpeg-tts":
		return "mpg"
	case "mp4":
		return "mp4"
	case "x-ms-wmv":
		return "wmv"
	case "x-matroska", "x-mkv":
		return "mkv"
	case "x-flv":
		return "flv"
	case "quicktime":
		return "mov"
	case "3gpp":
		return "3gp"
	}
	return "dat"
}

var videoExtensions = map[string]bool{
	".mpg": true, ".mpeg": true, ".avi": true, ".divx": true,
	".asf": true, ".wmv": true, ".mp4": true, ".m4v": true,
	".mts": true, ".m2ts": true, ".m2t": true, ".mkv": true,
	".vob": true, ".ts": true, ".flv": true, ".xvid": true,
	".mov": true, ".3gp": true,
}

// IsVideoFile reports whether the filename carries a recognized video
// extension. The scanner uses this to filter directory entries before
// paying the cost of a probe.
func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// VideoExtensions returns the set of recognized video extensions, keys
// including the leading dot.
func VideoExtensions() map[string]bool {
	return videoExtensions
}

// IsCaptionFile reports whether the filename is a subtitle format the
// catalog can associate with a video.
func IsCaptionFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".srt", ".smi":
		return true
	}
	return false
}

// StripExt returns the filename without its final extension.
func StripExt(name string) string {
	if ext := filepath.Ext(name); ext != "" {
		return name[:len(name)-len(ext)]
	}
	return name
}
