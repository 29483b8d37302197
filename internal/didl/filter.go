// Package didl renders catalog objects as DIDL-Lite fragments into a
// capped growing buffer, honouring the client's Filter selection.
package didl

import "strings"

// Filter is the bitmap of optional DIDL attributes and elements a client
// asked for. Bit values follow the ContentDirectory filter conventions;
// bits above the standard mask are vendor extensions.
type Filter uint32

// Filter bits.
const (
	FilterChildCount        Filter = 0x00000001
	FilterDCCreator         Filter = 0x00000002
	FilterDCDate            Filter = 0x00000004
	FilterDCDescription     Filter = 0x00000008
	FilterDLNANamespace     Filter = 0x00000010
	FilterRefID             Filter = 0x00000020
	FilterRes               Filter = 0x00000040
	FilterResBitrate        Filter = 0x00000080
	FilterResDuration       Filter = 0x00000100
	FilterResAudioChannels  Filter = 0x00000200
	FilterResResolution     Filter = 0x00000400
	FilterResSampleFreq     Filter = 0x00000800
	FilterResSize           Filter = 0x00001000
	FilterSearchable        Filter = 0x00002000
	FilterUPnPActor         Filter = 0x00004000
	FilterUPnPAlbum         Filter = 0x00008000
	FilterUPnPArtist        Filter = 0x00040000
	FilterUPnPGenre         Filter = 0x00080000
	FilterUPnPTrackNumber   Filter = 0x00100000
	FilterUPnPSearchClass   Filter = 0x00200000
	FilterUPnPStorageUsed   Filter = 0x00400000
	FilterSecCaptionInfoEx  Filter = 0x04000000
)

// FilterStandard covers every non-vendor field. A Filter value of "*",
// empty, or missing resolves to this.
const FilterStandard Filter = 0x00FFFFFF

// filterTokens maps Filter string tokens to their bits. res sub-attributes
// imply res itself.
var filterTokens = map[string]Filter{
	"@childCount":              FilterChildCount,
	"@searchable":              FilterSearchable,
	"dc:creator":               FilterDCCreator,
	"dc:date":                  FilterDCDate,
	"dc:description":           FilterDCDescription,
	"dlna":                     FilterDLNANamespace,
	"@refID":                   FilterRefID,
	"res":                      FilterRes,
	"@size":                    FilterRes | FilterResSize,
	"res@size":                 FilterRes | FilterResSize,
	"@duration":                FilterRes | FilterResDuration,
	"res@duration":             FilterRes | FilterResDuration,
	"@bitrate":                 FilterRes | FilterResBitrate,
	"res@bitrate":              FilterRes | FilterResBitrate,
	"@resolution":              FilterRes | FilterResResolution,
	"res@resolution":           FilterRes | FilterResResolution,
	"@nrAudioChannels":         FilterRes | FilterResAudioChannels,
	"res@nrAudioChannels":      FilterRes | FilterResAudioChannels,
	"@sampleFrequency":         FilterRes | FilterResSampleFreq,
	"res@sampleFrequency":      FilterRes | FilterResSampleFreq,
	"upnp:actor":               FilterUPnPActor,
	"upnp:album":               FilterUPnPAlbum,
	"upnp:artist":              FilterUPnPArtist,
	"upnp:genre":               FilterUPnPGenre,
	"upnp:originalTrackNumber": FilterUPnPTrackNumber,
	"upnp:searchClass":         FilterUPnPSearchClass,
	"upnp:storageUsed":         FilterUPnPStorageUsed,
	"sec:CaptionInfoEx":        FilterSecCaptionInfoEx,
}

// ParseFilter converts a comma-separated Filter argument into a bitmap.
// Unknown tokens are ignored; clients routinely send vendor tokens the
// server does not implement.
func ParseFilter(s string) Filter {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return FilterStandard
	}
	var f Filter
	for _, tok := range strings.Split(s, ",") {
		f |= filterTokens[strings.TrimSpace(tok)]
	}
	return f
}
