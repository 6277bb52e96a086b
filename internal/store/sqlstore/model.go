package sqlstore

import "time"

// Document is one JSON document of a resource collection.
// Version is bumped on every write and checked on update.
type Document struct {
	Resource  string    `gorm:"primaryKey;type:varchar(255)"`
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Data      string    `gorm:"type:text;not null"`
	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (Document) TableName() string {
	return "documents"
}

// VoteRecord is the stored vote of one user on one content item.
type VoteRecord struct {
	Resource  string `gorm:"primaryKey;type:varchar(255)"`
	ContentID string `gorm:"primaryKey;type:varchar(64)"`
	UserID    string `gorm:"primaryKey;type:varchar(255)"`
	VoteType  string `gorm:"type:varchar(8);not null"`
	CreatedAt time.Time
}

func (VoteRecord) TableName() string {
	return "vote_records"
}
