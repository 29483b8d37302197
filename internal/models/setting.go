package models

// Setting is a persistent key/value pair. The schema version marker lives
// here; a mismatch at startup forces a catalog rebuild.
type Setting struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value string `json:"value"`
}

// TableName returns the table name for settings.
func (Setting) TableName() string {
	return "settings"
}

// SettingSchemaVersion is the settings key holding the catalog schema version.
const SettingSchemaVersion = "schema_version"

// SchemaVersion is the current catalog schema version. Bump whenever the
// stored layout changes incompatibly; old databases are rebuilt from disk.
const SchemaVersion = "1"
