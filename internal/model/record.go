package model

import "time"

// Record is one key-value slot in the SQL-backed store.
type Record struct {
	Name      string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for Record model.
func (Record) TableName() string {
	return "kv_records"
}
