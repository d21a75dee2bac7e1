package domain

import "time"

// Snapshot is one archived version of the feature store. Rows are
// append-only: restore changes the head pointer but never deletes history.
type Snapshot struct {
	VersionID    string    `gorm:"type:text;primaryKey" json:"version_id"`
	CreatedAt    time.Time `gorm:"index:idx_snapshots_created" json:"created_at"`
	StorageKey   string    `gorm:"type:text;not null" json:"storage_key"`
	ProductCount int       `json:"product_count"`
	ByteSize     int64     `json:"byte_size"`
	Checksum     string    `gorm:"type:text" json:"checksum"`
}

// TableName returns the database table name for Snapshot.
func (Snapshot) TableName() string {
	return "snapshots"
}

// StoreHead records which archived version is currently live. Exactly one
// row exists once the first registration has been committed.
type StoreHead struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	VersionID string    `gorm:"type:text;not null" json:"version_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for StoreHead.
func (StoreHead) TableName() string {
	return "store_heads"
}
