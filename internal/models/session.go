package models

import "time"

// ChatSession holds the per-chat mode selection. One row per Telegram chat,
// created lazily on first contact and never deleted.
type ChatSession struct {
	ChatID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Mode      string `gorm:"size:16;not null"`
	UpdatedAt time.Time
}

// PendingImage is one buffered image for a chat, waiting for a text
// instruction to complete a request. Position preserves arrival order.
type PendingImage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ChatID    int64  `gorm:"not null;index"`
	Position  int    `gorm:"not null"`
	Data      []byte `gorm:"not null"`
	CreatedAt time.Time
}
