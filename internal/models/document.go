package models

import "time"

// DocumentChunk is one embedded slice of an indexed document. Embedding
// holds the vector as little-endian float32 bytes.
type DocumentChunk struct {
	ID        uint   `gorm:"primaryKey"`
	Source    string `gorm:"size:512;index"`
	Seq       int
	Content   string `gorm:"type:text"`
	Embedding []byte
	CreatedAt time.Time
}
