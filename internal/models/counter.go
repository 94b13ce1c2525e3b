package models

// Counter backs the sequence allocator. One row per named sequence;
// Seq is only ever touched by an atomic upsert-increment, never by
// read-then-write.
type Counter struct {
	Name string `gorm:"primaryKey" json:"name"`
	Seq  int64  `gorm:"not null" json:"seq"`
}
