package models

import (
	"strconv"
	"strings"
)

// Well-known object IDs in the ContentDirectory hierarchy.
const (
	// RootID is the ContentDirectory root container.
	RootID = "0"
	// RootParentID is the parent reported by the root container.
	RootParentID = "-1"
	// AllVideoID holds one virtual item per video file in the catalog.
	AllVideoID = "2"
	// BrowseDirID mirrors the on-disk directory hierarchy.
	BrowseDirID = "64"
)

// UPnP classes stored in the catalog. DIDL rendering prefixes "object.".
const (
	ClassStorageFolder = "container.storageFolder"
	ClassVideoItem     = "item.videoItem"
	ClassAudioItem     = "item.audioItem.musicTrack"
	ClassImageItem     = "item.imageItem.photo"
)

// Object is a node in the ContentDirectory tree. Containers and items share
// the table; items carry a Detail and optionally reference another object
// (virtual entries under the All Video container point at the folder entry).
type Object struct {
	ID       int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	ObjectID string  `gorm:"uniqueIndex;not null" json:"object_id"`
	ParentID string  `gorm:"index;not null" json:"parent_id"`
	RefID    *string `json:"ref_id,omitempty"`
	Class    string  `gorm:"not null" json:"class"`
	Name     string  `json:"name"`
	DetailID *int64  `json:"detail_id,omitempty"`

	Detail *Detail `gorm:"foreignKey:DetailID" json:"detail,omitempty"`
}

// TableName returns the table name for objects.
func (Object) TableName() string {
	return "objects"
}

// IsContainer reports whether the object is a DIDL container.
func (o *Object) IsContainer() bool {
	return strings.HasPrefix(o.Class, "container")
}

// ChildID builds the object ID for the child of parent with the given
// ordinal: the parent ID with "$<hex>" appended.
func ChildID(parentID string, ordinal int64) string {
	return parentID + "$" + strconv.FormatInt(ordinal, 16)
}

// ParseOrdinal extracts the final "$<hex>" ordinal of an object ID.
// Returns false when the ID has no ordinal suffix or it does not parse.
func ParseOrdinal(objectID string) (int64, bool) {
	i := strings.LastIndexByte(objectID, '$')
	if i < 0 || i == len(objectID)-1 {
		return 0, false
	}
	n, err := strconv.ParseInt(objectID[i+1:], 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SubtreeGlob returns the GLOB pattern matching every descendant of the
// given container (the container itself excluded).
func SubtreeGlob(objectID string) string {
	return objectID + "$*"
}
