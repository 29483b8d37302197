// Package models defines the catalog database models for dlnad.
package models

import "strings"

// MediaKind classifies what a Detail row describes.
type MediaKind string

// Media kinds.
const (
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
	MediaKindImage MediaKind = "image"
	MediaKindNFO   MediaKind = "nfo"
	MediaKindNone  MediaKind = "none"
)

// Type mask bits for media roots. The mask is stored in the root folder's
// Detail.Timestamp field, which is otherwise unused for directories.
const (
	TypeVideo = 1 << iota
	TypeAudio
	TypeImage
)

// TypeAll allows every media kind.
const TypeAll = TypeVideo | TypeAudio | TypeImage

// ParseTypeMask converts a media root type string (any combination of
// V, A, P) into a mask. Empty input allows everything.
func ParseTypeMask(s string) int {
	if s == "" {
		return TypeAll
	}
	mask := 0
	for _, r := range strings.ToUpper(s) {
		switch r {
		case 'V':
			mask |= TypeVideo
		case 'A':
			mask |= TypeAudio
		case 'P':
			mask |= TypeImage
		}
	}
	if mask == 0 {
		return TypeAll
	}
	return mask
}

// Detail holds the probed metadata for a single file or directory.
// Rows are immutable once written: a change on disk deletes the row and
// inserts a fresh one.
type Detail struct {
	ID   int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Path *string `gorm:"index" json:"path,omitempty"`
	Size int64   `json:"size"`

	// Timestamp is the file modification time in Unix seconds. For media
	// root directories it instead carries the allowed media type mask.
	Timestamp int64 `json:"timestamp"`

	Duration   string `json:"duration,omitempty"` // "h:mm:ss.mmm"
	Date       string `json:"date,omitempty"`     // "2006-01-02T15:04:05"
	Channels   int    `json:"channels,omitempty"`
	Bitrate    int    `json:"bitrate,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Resolution string `json:"resolution,omitempty"` // "WxH"

	Disc  int `json:"disc,omitempty"`
	Track int `json:"track,omitempty"`

	Title   string `json:"title"`
	Creator string `json:"creator,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Album   string `json:"album,omitempty"`
	Genre   string `json:"genre,omitempty"`
	Comment string `json:"comment,omitempty"`

	// DLNAProfile is the DLNA.ORG_PN media profile name. Nil when the
	// file matches no profile; such items still stream with a generic MIME.
	DLNAProfile *string `gorm:"column:dlna_pn" json:"dlna_profile,omitempty"`

	Mime      string    `json:"mime"`
	MediaKind MediaKind `gorm:"index" json:"media_kind"`
}

// TableName returns the table name for details.
func (Detail) TableName() string {
	return "details"
}

// HasProfile reports whether a DLNA profile was derived for this file.
func (d *Detail) HasProfile() bool {
	return d.DLNAProfile != nil && *d.DLNAProfile != ""
}
