package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildID(t *testing.T) {
	assert.Equal(t, "64$0", ChildID(BrowseDirID, 0))
	assert.Equal(t, "64$a", ChildID(BrowseDirID, 10))
	assert.Equal(t, "64$4$ff", ChildID("64$4", 255))
}

func TestParseOrdinal(t *testing.T) {
	tests := []struct {
		id   string
		want int64
		ok   bool
	}{
		{"64$0", 0, true},
		{"64$a", 10, true},
		{"64$4$ff", 255, true},
		{"64", 0, false},
		{"64$", 0, false},
		{"64$zz", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseOrdinal(tt.id)
		assert.Equal(t, tt.ok, ok, tt.id)
		if ok {
			assert.Equal(t, tt.want, got, tt.id)
		}
	}
}

func TestSubtreeGlob(t *testing.T) {
	assert.Equal(t, "64$4$*", SubtreeGlob("64$4"))
}

func TestIsContainer(t *testing.T) {
	folder := Object{Class: ClassStorageFolder}
	item := Object{Class: ClassVideoItem}
	assert.True(t, folder.IsContainer())
	assert.False(t, item.IsContainer())
}

func TestParseTypeMask(t *testing.T) {
	assert.Equal(t, TypeAll, ParseTypeMask(""))
	assert.Equal(t, TypeVideo, ParseTypeMask("V"))
	assert.Equal(t, TypeVideo|TypeAudio, ParseTypeMask("va"))
	assert.Equal(t, TypeAll, ParseTypeMask("VAP"))
}
