package didl

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/dlnad/internal/dlna"
	"github.com/jmylchreest/dlnad/internal/models"
	"github.com/jmylchreest/dlnad/internal/probe"
)

const (
	didlOpen = `<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
		` xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/"` +
		` xmlns:sec="http://www.sec.co.kr/"`
	didlDLNANamespace = ` xmlns:dlna="urn:schemas-dlna-org:metadata-1-0/"`
	didlClose         = `</DIDL-Lite>`
)

// Renderer emits DIDL-Lite fragments for catalog objects. The host and
// port feed the media URL synthesis; host is the interface address the
// request arrived on.
type Renderer struct {
	host string
	port int
}

// NewRenderer creates a Renderer for the given server address.
func NewRenderer(host string, port int) *Renderer {
	return &Renderer{host: host, port: port}
}

// MediaURL returns the streaming URL for a detail row.
func (r *Renderer) MediaURL(detailID int64, mime string) string {
	return fmt.Sprintf("http://%s:%d/MediaItems/%d.%s", r.host, r.port, detailID, probe.MimeToExt(mime))
}

// CaptionURL returns the subtitle URL for a detail row.
func (r *Renderer) CaptionURL(detailID int64) string {
	return fmt.Sprintf("http://%s:%d/Captions/%d.srt", r.host, r.port, detailID)
}

// Begin opens the DIDL-Lite document. The dlna namespace is only declared
// when the client filtered it in.
func (r *Renderer) Begin(buf *Buffer, f Filter) {
	buf.WriteString(didlOpen)
	if f&FilterDLNANamespace != 0 {
		buf.WriteString(didlDLNANamespace)
	}
	buf.WriteString(">")
}

// End closes the DIDL-Lite document.
func (r *Renderer) End(buf *Buffer) {
	buf.WriteString(didlClose)
}

// ItemOptions carry per-object rendering context the catalog row itself
// does not hold.
type ItemOptions struct {
	// RootMetadata marks a BrowseMetadata render of the root container,
	// which additionally advertises the searchable classes.
	RootMetadata bool
	// HasCaption reports that a subtitle row exists for the item's detail.
	HasCaption bool
	// ChildCount is emitted on containers when non-negative and filtered in.
	ChildCount int64
}

// Object renders one object as an <item> or <container> fragment.
func (r *Renderer) Object(buf *Buffer, obj *models.Object, f Filter, opts ItemOptions) {
	if obj.IsContainer() {
		r.container(buf, obj, f, opts)
		return
	}
	r.item(buf, obj, f, opts)
}

func (r *Renderer) item(buf *Buffer, obj *models.Object, f Filter, opts ItemOptions) {
	buf.Printf(`<item id="%s" parentID="%s" restricted="1"`, obj.ObjectID, obj.ParentID)
	if f&FilterRefID != 0 && obj.RefID != nil {
		buf.Printf(` refID="%s"`, *obj.RefID)
	}
	buf.WriteString(">")

	buf.WriteString("<dc:title>")
	buf.Escape(obj.Name)
	buf.WriteString("</dc:title>")
	buf.Printf("<upnp:class>object.%s</upnp:class>", obj.Class)

	d := obj.Detail
	if d != nil {
		if f&FilterDCCreator != 0 && d.Creator != "" {
			element(buf, "dc:creator", d.Creator)
		}
		if f&FilterDCDate != 0 && d.Date != "" {
			element(buf, "dc:date", d.Date)
		}
		if f&FilterDCDescription != 0 && d.Comment != "" {
			element(buf, "dc:description", d.Comment)
		}
		if f&FilterUPnPArtist != 0 && d.Artist != "" {
			element(buf, "upnp:artist", d.Artist)
		}
		if f&FilterUPnPActor != 0 && d.Artist != "" {
			element(buf, "upnp:actor", d.Artist)
		}
		if f&FilterUPnPAlbum != 0 && d.Album != "" {
			element(buf, "upnp:album", d.Album)
		}
		if f&FilterUPnPGenre != 0 && d.Genre != "" {
			element(buf, "upnp:genre", d.Genre)
		}
		if f&FilterUPnPTrackNumber != 0 && d.Track > 0 {
			buf.Printf("<upnp:originalTrackNumber>%d</upnp:originalTrackNumber>", d.Track)
		}
		if f&FilterSecCaptionInfoEx != 0 && opts.HasCaption {
			buf.Printf(`<sec:CaptionInfoEx sec:type="srt">%s</sec:CaptionInfoEx>`,
				r.CaptionURL(d.ID))
		}
		if f&FilterRes != 0 {
			r.res(buf, d, f)
		}
	}

	buf.WriteString("</item>")
}

// res renders the <res> element with its filtered attributes and the
// protocolInfo fourth field carrying the DLNA parameters.
func (r *Renderer) res(buf *Buffer, d *models.Detail, f Filter) {
	buf.WriteString("<res ")
	if f&FilterResSize != 0 && d.Size > 0 {
		buf.Printf(`size="%d" `, d.Size)
	}
	if f&FilterResDuration != 0 && d.Duration != "" {
		buf.Printf(`duration="%s" `, d.Duration)
	}
	if f&FilterResBitrate != 0 && d.Bitrate > 0 {
		buf.Printf(`bitrate="%d" `, d.Bitrate)
	}
	if f&FilterResSampleFreq != 0 && d.SampleRate > 0 {
		buf.Printf(`sampleFrequency="%d" `, d.SampleRate)
	}
	if f&FilterResAudioChannels != 0 && d.Channels > 0 {
		buf.Printf(`nrAudioChannels="%d" `, d.Channels)
	}
	if f&FilterResResolution != 0 && d.Resolution != "" {
		buf.Printf(`resolution="%s" `, d.Resolution)
	}

	features := dlna.Features{
		SupportsRange: true,
		Flags:         dlna.ItemFlags(dlna.ModeForKind(string(d.MediaKind))),
	}
	if d.DLNAProfile != nil {
		features.ProfileName = *d.DLNAProfile
	}
	buf.Printf(`protocolInfo="%s">`, features.ProtocolInfo(d.Mime))
	buf.WriteString(r.MediaURL(d.ID, d.Mime))
	buf.WriteString("</res>")
}

func (r *Renderer) container(buf *Buffer, obj *models.Object, f Filter, opts ItemOptions) {
	buf.Printf(`<container id="%s" parentID="%s" restricted="1"`, obj.ObjectID, obj.ParentID)
	if f&FilterChildCount != 0 && opts.ChildCount >= 0 {
		buf.Printf(` childCount="%d"`, opts.ChildCount)
	}
	if f&FilterSearchable != 0 {
		buf.WriteString(` searchable="1"`)
	}
	buf.WriteString(">")

	// BrowseMetadata on the root advertises the searchable classes unless
	// they were filtered out.
	if opts.RootMetadata && obj.ObjectID == models.RootID && f&FilterUPnPSearchClass != 0 {
		buf.WriteString(`<upnp:searchClass includeDerived="1">object.item.videoItem</upnp:searchClass>`)
	}

	buf.WriteString("<dc:title>")
	buf.Escape(obj.Name)
	buf.WriteString("</dc:title>")
	buf.Printf("<upnp:class>object.%s</upnp:class>", obj.Class)

	if f&FilterUPnPStorageUsed != 0 || strings.HasSuffix(obj.Class, "storageFolder") {
		used := int64(-1)
		if obj.Detail != nil && obj.Detail.Size > 0 {
			used = obj.Detail.Size
		}
		buf.Printf("<upnp:storageUsed>%d</upnp:storageUsed>", used)
	}

	buf.WriteString("</container>")
}

// element writes a simple escaped text element.
func element(buf *Buffer, tag, text string) {
	buf.Printf("<%s>", tag)
	buf.Escape(text)
	buf.Printf("</%s>", tag)
}
