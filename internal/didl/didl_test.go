package didl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/dlnad/internal/models"
)

func TestParseFilter(t *testing.T) {
	assert.Equal(t, FilterStandard, ParseFilter(""))
	assert.Equal(t, FilterStandard, ParseFilter("*"))

	f := ParseFilter("res,@size,dc:date,upnp:genre")
	assert.NotZero(t, f&FilterRes)
	assert.NotZero(t, f&FilterResSize)
	assert.NotZero(t, f&FilterDCDate)
	assert.NotZero(t, f&FilterUPnPGenre)
	assert.Zero(t, f&FilterDCCreator)

	// res sub-attributes imply res itself.
	f = ParseFilter("res@duration")
	assert.NotZero(t, f&FilterRes)
	assert.NotZero(t, f&FilterResDuration)

	// Vendor tokens the server does not know are ignored.
	f = ParseFilter("sec:CaptionInfoEx, av:mediaClass")
	assert.Equal(t, FilterSecCaptionInfoEx, f)

	// The standard mask excludes vendor bits.
	assert.Zero(t, FilterStandard&FilterSecCaptionInfoEx)
}

func TestBuffer_GrowsAndCaps(t *testing.T) {
	buf := NewBuffer(3 * chunkSize)
	chunk := strings.Repeat("x", chunkSize)

	buf.WriteString(chunk)
	buf.WriteString(chunk)
	require.NoError(t, buf.Err())
	assert.Equal(t, 2*chunkSize, buf.Len())

	mark := buf.Mark()
	buf.WriteString(chunk)
	buf.WriteString(chunk)
	assert.ErrorIs(t, buf.Err(), ErrBufferFull)

	// Rewinding to the mark recovers a writable, well-formed buffer.
	buf.Rewind(mark)
	require.NoError(t, buf.Err())
	assert.Equal(t, 2*chunkSize, buf.Len())
	buf.WriteString("</DIDL-Lite>")
	require.NoError(t, buf.Err())
	assert.True(t, strings.HasSuffix(buf.String(), "</DIDL-Lite>"))
}

func TestBuffer_Unbounded(t *testing.T) {
	buf := NewBuffer(0)
	chunk := strings.Repeat("y", chunkSize)
	for i := 0; i < 5; i++ {
		buf.WriteString(chunk)
	}
	require.NoError(t, buf.Err())
	assert.Equal(t, 5*chunkSize, buf.Len())
}

func videoDetail() *models.Detail {
	path := "/media/movie.mpg"
	pn := "MPEG_PS_PAL"
	return &models.Detail{
		ID:          7,
		Path:        &path,
		Size:        1234567,
		Duration:    "1:30:00.000",
		Date:        "2020-05-01T12:00:00",
		Channels:    2,
		Bitrate:     512000,
		SampleRate:  48000,
		Resolution:  "720x576",
		Title:       "Movie",
		Genre:       "Drama",
		Comment:     "A & B",
		DLNAProfile: &pn,
		Mime:        "video/mpeg",
		MediaKind:   models.MediaKindVideo,
	}
}

func TestRenderer_Item(t *testing.T) {
	r := NewRenderer("192.168.1.10", 8200)
	buf := NewBuffer(0)

	refID := "64$0$1"
	obj := &models.Object{
		ObjectID: "2$5",
		ParentID: "2",
		RefID:    &refID,
		Class:    models.ClassVideoItem,
		Name:     "Movie & More",
		Detail:   videoDetail(),
	}

	r.Begin(buf, FilterStandard)
	r.Object(buf, obj, FilterStandard, ItemOptions{})
	r.End(buf)
	require.NoError(t, buf.Err())
	out := buf.String()

	assert.Contains(t, out, `<item id="2$5" parentID="2" restricted="1" refID="64$0$1">`)
	assert.Contains(t, out, "<dc:title>Movie &amp; More</dc:title>")
	assert.Contains(t, out, "<upnp:class>object.item.videoItem</upnp:class>")
	assert.Contains(t, out, "<dc:date>2020-05-01T12:00:00</dc:date>")
	assert.Contains(t, out, "<dc:description>A &amp; B</dc:description>")
	assert.Contains(t, out, "<upnp:genre>Drama</upnp:genre>")
	assert.Contains(t, out, `size="1234567"`)
	assert.Contains(t, out, `duration="1:30:00.000"`)
	assert.Contains(t, out, `bitrate="512000"`)
	assert.Contains(t, out, `resolution="720x576"`)
	assert.Contains(t, out, `nrAudioChannels="2"`)
	assert.Contains(t, out, `sampleFrequency="48000"`)
	assert.Contains(t, out,
		`protocolInfo="http-get:*:video/mpeg:DLNA.ORG_PN=MPEG_PS_PAL;DLNA.ORG_OP=01;DLNA.ORG_CI=0;`)
	assert.Contains(t, out, ">http://192.168.1.10:8200/MediaItems/7.mpg</res>")

	// The standard mask excludes the vendor caption element.
	assert.NotContains(t, out, "sec:CaptionInfoEx")
}

func TestRenderer_ItemFilters(t *testing.T) {
	r := NewRenderer("10.0.0.1", 8200)
	obj := &models.Object{
		ObjectID: "64$0$0",
		ParentID: "64$0",
		Class:    models.ClassVideoItem,
		Name:     "Movie",
		Detail:   videoDetail(),
	}

	t.Run("res only", func(t *testing.T) {
		buf := NewBuffer(0)
		r.Object(buf, obj, ParseFilter("res"), ItemOptions{})
		out := buf.String()
		assert.Contains(t, out, "<res protocolInfo=")
		assert.NotContains(t, out, "size=")
		assert.NotContains(t, out, "dc:date")
	})

	t.Run("no res", func(t *testing.T) {
		buf := NewBuffer(0)
		r.Object(buf, obj, ParseFilter("dc:date"), ItemOptions{})
		out := buf.String()
		assert.NotContains(t, out, "<res")
		assert.Contains(t, out, "<dc:date>")
	})

	t.Run("caption", func(t *testing.T) {
		buf := NewBuffer(0)
		r.Object(buf, obj, ParseFilter("sec:CaptionInfoEx"), ItemOptions{HasCaption: true})
		assert.Contains(t, buf.String(),
			`<sec:CaptionInfoEx sec:type="srt">http://10.0.0.1:8200/Captions/7.srt</sec:CaptionInfoEx>`)
	})

	t.Run("track number", func(t *testing.T) {
		tracked := *obj
		d := *obj.Detail
		d.Disc = 1
		d.Track = 4
		tracked.Detail = &d

		buf := NewBuffer(0)
		r.Object(buf, &tracked, ParseFilter("upnp:originalTrackNumber"), ItemOptions{})
		assert.Contains(t, buf.String(), "<upnp:originalTrackNumber>4</upnp:originalTrackNumber>")

		// Not emitted without the token, nor for untracked items.
		buf = NewBuffer(0)
		r.Object(buf, &tracked, ParseFilter("dc:date"), ItemOptions{})
		assert.NotContains(t, buf.String(), "originalTrackNumber")

		buf = NewBuffer(0)
		r.Object(buf, obj, ParseFilter("upnp:originalTrackNumber"), ItemOptions{})
		assert.NotContains(t, buf.String(), "originalTrackNumber")
	})
}

func TestRenderer_RootContainer(t *testing.T) {
	r := NewRenderer("10.0.0.1", 8200)
	root := &models.Object{
		ObjectID: models.RootID,
		ParentID: models.RootParentID,
		Class:    models.ClassStorageFolder,
		Name:     "root",
	}

	buf := NewBuffer(0)
	r.Begin(buf, FilterStandard)
	r.Object(buf, root, FilterStandard, ItemOptions{RootMetadata: true, ChildCount: 2})
	r.End(buf)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<DIDL-Lite"))
	assert.Contains(t, out, `<container id="0" parentID="-1" restricted="1"`)
	assert.Contains(t, out, `childCount="2"`)
	assert.Contains(t, out,
		`<upnp:searchClass includeDerived="1">object.item.videoItem</upnp:searchClass>`)
	assert.Contains(t, out, "<upnp:storageUsed>-1</upnp:storageUsed>")
	assert.True(t, strings.HasSuffix(out, "</DIDL-Lite>"))

	// Not a root metadata render: no searchClass.
	buf = NewBuffer(0)
	r.Object(buf, root, FilterStandard, ItemOptions{ChildCount: -1})
	assert.NotContains(t, buf.String(), "searchClass")
	assert.NotContains(t, buf.String(), "childCount")
}

func TestRenderer_DLNANamespace(t *testing.T) {
	r := NewRenderer("10.0.0.1", 8200)

	buf := NewBuffer(0)
	r.Begin(buf, FilterStandard)
	assert.NotContains(t, buf.String(), "xmlns:dlna")

	buf = NewBuffer(0)
	r.Begin(buf, ParseFilter("dlna"))
	assert.Contains(t, buf.String(), `xmlns:dlna="urn:schemas-dlna-org:metadata-1-0/"`)
}
