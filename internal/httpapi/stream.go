package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/dlnad/internal/dlna"
	"github.com/jmylchreest/dlnad/internal/models"
	"github.com/jmylchreest/dlnad/internal/repository"
	"github.com/jmylchreest/dlnad/internal/storage"
	"github.com/jmylchreest/dlnad/internal/upnp"
)

// Streamer serves ranged media payloads and caption files. URLs carry the
// detail row ID, which is what the DIDL renderer emits.
type Streamer struct {
	details  repository.DetailRepository
	captions repository.CaptionRepository
	// sandbox confines served files to the media roots plus the
	// database directory. Symlinks pointing elsewhere are refused.
	sandbox *storage.Sandbox
	strict  bool
	logger  *slog.Logger
}

// NewStreamer creates a Streamer over the media roots and database
// directory.
func NewStreamer(
	details repository.DetailRepository,
	captions repository.CaptionRepository,
	roots []string,
	dbDir string,
	strict bool,
	logger *slog.Logger,
) *Streamer {
	return &Streamer{
		details:  details,
		captions: captions,
		sandbox:  storage.NewSandbox(append(append([]string{}, roots...), dbDir)...),
		strict:   strict,
		logger:   logger.With("component", "stream"),
	}
}

// Register mounts the streaming routes.
func (s *Streamer) Register(r chi.Router) {
	r.Get("/MediaItems/{file}", s.serveMedia)
	r.Head("/MediaItems/{file}", s.serveMedia)
	r.Get("/Captions/{file}", s.serveCaption)
	r.Head("/Captions/{file}", s.serveCaption)
}

// detailID extracts the detail row ID from a "<id>.<ext>" path segment.
func detailID(file string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSuffix(file, path.Ext(file)), 10, 64)
	return id, err == nil && id > 0
}

func (s *Streamer) serveMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := detailID(chi.URLParam(r, "file"))
	if !ok {
		htmlError(w, http.StatusBadRequest)
		return
	}
	detail, err := s.details.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("detail lookup failed", "id", id, "error", err)
		htmlError(w, http.StatusInternalServerError)
		return
	}
	if detail == nil || detail.Path == nil {
		htmlError(w, http.StatusNotFound)
		return
	}

	strict := s.strict || r.Header.Get("uctt.upnp.org") != ""
	isImage := detail.MediaKind == models.MediaKindImage

	mode := dlna.TransferMode(r.Header.Get("transferMode.dlna.org"))
	switch mode {
	case dlna.TransferStreaming:
		if isImage {
			htmlError(w, http.StatusNotAcceptable)
			return
		}
	case dlna.TransferInteractive:
		if r.Header.Get("realTimeInfo.dlna.org") != "" {
			htmlError(w, http.StatusBadRequest)
			return
		}
		if !isImage && strict {
			htmlError(w, http.StatusNotAcceptable)
			return
		}
	case "":
		mode = dlna.ModeForKind(string(detail.MediaKind))
	}

	if cf := r.Header.Get("getcontentFeatures.dlna.org"); cf != "" && cf != "1" {
		htmlError(w, http.StatusBadRequest)
		return
	}
	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" &&
		(r.Header.Get("TimeSeekRange.dlna.org") != "" || r.Header.Get("PlaySpeed.dlna.org") != "") {
		htmlError(w, http.StatusNotAcceptable)
		return
	}

	resolved, err := s.sandbox.Resolve(*detail.Path)
	if errors.Is(err, storage.ErrOutsideRoots) {
		s.logger.Warn("refusing path outside media roots", "path", *detail.Path)
		htmlError(w, http.StatusForbidden)
		return
	}
	if err != nil {
		htmlError(w, http.StatusNotFound)
		return
	}

	f, err := os.Open(resolved)
	if err != nil {
		htmlError(w, http.StatusNotFound)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		htmlError(w, http.StatusInternalServerError)
		return
	}
	size := st.Size()

	status := http.StatusOK
	start, end := int64(0), size-1
	if rangeHeader != "" {
		start, end, ok = parseRange(rangeHeader, size)
		if !ok {
			htmlError(w, http.StatusBadRequest)
			return
		}
		if end >= size {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			htmlError(w, http.StatusRequestedRangeNotSatisfiable)
			return
		}
		status = http.StatusPartialContent
	}

	features := dlna.Features{
		SupportsRange: true,
		Flags:         dlna.ItemFlags(dlna.ModeForKind(string(detail.MediaKind))),
	}
	if detail.DLNAProfile != nil {
		features.ProfileName = *detail.DLNAProfile
	}

	h := w.Header()
	h.Set("Content-Type", detail.Mime)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Server", upnp.ServerHeader())
	h.Set("EXT", "")
	h.Set("transferMode.dlna.org", string(mode))
	h.Set("realTimeInfo.dlna.org", "DLNA.ORG_TLAG=*")
	h.Set("contentFeatures.dlna.org", features.ContentFeatures())
	if r.Header.Get("getCaptionInfo.sec") != "" {
		if caption, err := s.captions.GetByDetailID(r.Context(), detail.ID); err == nil && caption != nil {
			h.Set("CaptionInfo.sec", fmt.Sprintf("http://%s/Captions/%d.srt", r.Host, detail.ID))
		}
	}
	h.Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	if status == http.StatusPartialContent {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}
	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return
		}
	}
	// net/http uses sendfile underneath when copying straight from an
	// *os.File.
	if _, err := io.CopyN(w, f, end-start+1); err != nil {
		s.logger.Debug("transfer ended early", "path", resolved, "error", err)
	}
}

func (s *Streamer) serveCaption(w http.ResponseWriter, r *http.Request) {
	id, ok := detailID(chi.URLParam(r, "file"))
	if !ok {
		htmlError(w, http.StatusBadRequest)
		return
	}
	caption, err := s.captions.GetByDetailID(r.Context(), id)
	if err != nil {
		htmlError(w, http.StatusInternalServerError)
		return
	}
	if caption == nil {
		htmlError(w, http.StatusNotFound)
		return
	}

	resolved, err := s.sandbox.Resolve(caption.Path)
	if errors.Is(err, storage.ErrOutsideRoots) {
		htmlError(w, http.StatusForbidden)
		return
	}
	if err != nil {
		htmlError(w, http.StatusNotFound)
		return
	}
	f, err := os.Open(resolved)
	if err != nil {
		htmlError(w, http.StatusNotFound)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		htmlError(w, http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "smi/caption")
	h.Set("Content-Length", strconv.FormatInt(st.Size(), 10))
	h.Set("Server", upnp.ServerHeader())
	if r.Method == http.MethodHead {
		return
	}
	io.Copy(w, f)
}

// parseRange parses a "bytes=S-E" header against the file size. A missing
// or size-equal end collapses to size-1. Malformed specs, negative starts,
// and inverted ranges report !ok; an end past the file is left for the
// caller to refuse with 416.
func parseRange(value string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(value, "bytes=")
	if !found {
		return 0, 0, false
	}
	first, last, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	if strings.TrimSpace(last) == "" {
		return start, size - 1, true
	}
	end, err = strconv.ParseInt(strings.TrimSpace(last), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if end == size {
		end = size - 1
	}
	if start > end {
		return 0, 0, false
	}
	return start, end, true
}
