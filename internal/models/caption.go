package models

// Caption associates a subtitle file with a media Detail. At most one
// caption per detail; SRT is preferred over SMI when both exist.
type Caption struct {
	DetailID int64  `gorm:"primaryKey" json:"detail_id"`
	Path     string `gorm:"not null" json:"path"`
}

// TableName returns the table name for captions.
func (Caption) TableName() string {
	return "captions"
}
