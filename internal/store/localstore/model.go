package localstore

import "gorm.io/gorm"

// Entry is one key/value pair of the device-local table.
// Each list resource is stored as a single JSON array under its key.
type Entry struct {
	gorm.Model

	Key   string `gorm:"uniqueIndex;not null;type:varchar(255)"`
	Value string `gorm:"type:text"`
}

func (Entry) TableName() string {
	return "local_entries"
}
