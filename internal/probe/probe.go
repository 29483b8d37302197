// Package probe opens media files, identifies their container and codec
// parameters, and derives the DLNA media profile and MIME type that the
// content directory advertises for them.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmylchreest/dlnad/internal/models"
)

// Prober turns filesystem paths into Detail records.
type Prober struct {
	logger *slog.Logger
}

// NewProber creates a Prober.
func NewProber(logger *slog.Logger) *Prober {
	return &Prober{logger: logger.With("component", "probe")}
}

// File probes the file at path and returns a Detail describing it. The
// display name seeds the default title. Files that cannot be opened or
// decoded come back with MediaKindNone rather than an error; the scanner
// records them as skipped and moves on.
func (p *Prober) File(ctx context.Context, path, name string) (*models.Detail, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	detail := &models.Detail{
		Path:      &path,
		Size:      st.Size(),
		Timestamp: st.ModTime().Unix(),
		MediaKind: models.MediaKindNone,
	}

	f, err := os.Open(path)
	if err != nil {
		p.logger.Warn("cannot open media file", "path", path, "error", err)
		return detail, nil
	}
	defer f.Close()

	info, err := p.read(ctx, f, st.Size())
	if err != nil {
		p.logger.Warn("unrecognized media file", "path", path, "error", err)
		return detail, nil
	}

	ext := filepath.Ext(path)
	pn, mime := DLNAProfile(info, ext)

	detail.MediaKind = models.MediaKindVideo
	detail.Mime = mime
	if pn != "" {
		detail.DLNAProfile = &pn
	}
	if info.Width > 0 {
		detail.Resolution = fmt.Sprintf("%dx%d", info.Width, info.Height)
	}
	if info.Duration > 0 {
		detail.Duration = FormatDuration(info.Duration)
	}
	if info.Bitrate > 8 {
		// Stored and advertised as bytes per second.
		detail.Bitrate = info.Bitrate / 8
	}
	detail.Channels = info.AudioChannels
	detail.SampleRate = info.AudioSampleRate
	if info.Container == ContainerAVI && IsDiVX(info.VideoFourCC) {
		detail.Creator = "DiVX"
	}

	p.applySidecar(path, detail)

	if detail.Date == "" {
		detail.Date = st.ModTime().Format("2006-01-02T15:04:05")
	}
	if detail.Title == "" {
		detail.Title = StripExt(name)
	}

	p.logger.Debug("probed media file",
		"path", path,
		"container", info.Container,
		"video", info.VideoCodec,
		"resolution", detail.Resolution,
		"profile", pn,
		"mime", mime)
	return detail, nil
}

// read sniffs the container and dispatches to the matching parser.
func (p *Prober) read(ctx context.Context, f *os.File, size int64) (*Info, error) {
	head := make([]byte, sniffLen)
	n, err := f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	head = head[:n]

	info := &Info{Container: sniffContainer(head)}
	switch info.Container {
	case ContainerMPEGTS:
		info.TSPacketSize, info.TSTimestamp = detectTSFraming(head)
		if err := parseMPEGTS(ctx, f, size, info); err != nil {
			return nil, err
		}
	case ContainerMP4:
		if err := parseMP4(f, size, info); err != nil {
			return nil, err
		}
	case ContainerMPEGPS:
		if err := parseMPEGPS(f, size, info); err != nil {
			return nil, err
		}
	case ContainerASF:
		if err := parseASF(f, size, info); err != nil {
			return nil, err
		}
	case ContainerAVI:
		if err := parseAVI(f, size, info); err != nil {
			return nil, err
		}
	case ContainerMatroska, ContainerFLV:
		// Served with a generic MIME; no codec parameters are extracted.
		info.VideoCodec = VideoOther
	default:
		return nil, errors.New("unknown container format")
	}
	return info, nil
}

// applySidecar overrides probed fields from a <basename>.nfo file when one
// exists next to the media file.
func (p *Prober) applySidecar(path string, detail *models.Detail) {
	nfoPath := StripExt(path) + ".nfo"
	if _, err := os.Stat(nfoPath); err != nil {
		return
	}
	data, err := parseNFO(nfoPath)
	if err != nil {
		p.logger.Debug("skipping metadata sidecar", "path", nfoPath, "error", err)
		return
	}
	if data.Title != "" {
		detail.Title = data.Title
	}
	if data.Comment != "" {
		detail.Comment = data.Comment
	}
	if data.Date != "" {
		detail.Date = data.Date
	}
	if data.Genre != "" {
		detail.Genre = data.Genre
	}
	if data.Mime != "" {
		detail.Mime = data.Mime
	}
}
