package models

import "time"

// KVEntry is one row of the string key-value table backing the Scene
// Document Store.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (KVEntry) TableName() string { return "kv_entries" }
