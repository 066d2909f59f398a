package bot

import (
	"fmt"
	"sync"

	"github.com/akarpov/imagebot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxPendingImages caps the per-chat buffer; when an append would exceed it,
// the most recent images are kept.
const maxPendingImages = 10

// Store is the per-chat session state: active mode and buffered images.
// All mutations of one chat's pending list are read-modify-write under a
// per-chat lock so a direct message and an album flush for the same chat
// cannot lose updates. Different chats never contend.
type Store struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewStore creates a Store backed by the given database.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("bot: store: db is required")
	}
	return &Store{
		db:    db,
		locks: make(map[int64]*sync.Mutex),
	}, nil
}

// chatLock returns the mutex guarding one chat's state, creating it lazily.
func (s *Store) chatLock(chatID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[chatID] = l
	}
	return l
}

// Mode returns the chat's active mode, defaulting to DefaultMode for chats
// that have never set one.
func (s *Store) Mode(chatID int64) Mode {
	var sess models.ChatSession
	err := s.db.First(&sess, "chat_id = ?", chatID).Error
	if err != nil || sess.Mode == "" {
		return DefaultMode
	}
	return Mode(sess.Mode)
}

// SetMode stores the chat's mode and clears any buffered images: a mode
// switch invalidates a half-built request.
func (s *Store) SetMode(chatID int64, mode Mode) error {
	l := s.chatLock(chatID)
	l.Lock()
	defer l.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		sess := models.ChatSession{ChatID: chatID, Mode: string(mode)}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"mode", "updated_at"}),
		}).Create(&sess).Error; err != nil {
			return fmt.Errorf("bot: store: set mode: %w", err)
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&models.PendingImage{}).Error; err != nil {
			return fmt.Errorf("bot: store: clear pending on mode switch: %w", err)
		}
		return nil
	})
}

// Pending returns the chat's buffered images in arrival order.
func (s *Store) Pending(chatID int64) ([][]byte, error) {
	var rows []models.PendingImage
	if err := s.db.Where("chat_id = ?", chatID).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("bot: store: load pending: %w", err)
	}
	images := make([][]byte, 0, len(rows))
	for _, r := range rows {
		images = append(images, r.Data)
	}
	return images, nil
}

// SetPending replaces the chat's buffer with the given images.
func (s *Store) SetPending(chatID int64, images [][]byte) error {
	l := s.chatLock(chatID)
	l.Lock()
	defer l.Unlock()
	return s.writePending(chatID, images)
}

// AppendPending appends images to the chat's buffer, enforcing the
// maxPendingImages cap by keeping the most recent. It returns the resulting
// buffer and whether the cap truncated it.
func (s *Store) AppendPending(chatID int64, images [][]byte) (kept [][]byte, truncated bool, err error) {
	l := s.chatLock(chatID)
	l.Lock()
	defer l.Unlock()

	existing, err := s.Pending(chatID)
	if err != nil {
		return nil, false, err
	}
	merged := append(existing, images...)
	if len(merged) > maxPendingImages {
		merged = merged[len(merged)-maxPendingImages:]
		truncated = true
	}
	if err := s.writePending(chatID, merged); err != nil {
		return nil, false, err
	}
	return merged, truncated, nil
}

// TakePending returns the chat's buffered images and empties the buffer as
// one operation under the chat lock, so an append racing the consume lands
// either fully before it (and is returned) or fully after it (and stays
// buffered). Returns nil when the buffer is empty.
func (s *Store) TakePending(chatID int64) ([][]byte, error) {
	l := s.chatLock(chatID)
	l.Lock()
	defer l.Unlock()

	images, err := s.Pending(chatID)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, nil
	}
	if err := s.writePending(chatID, nil); err != nil {
		return nil, err
	}
	return images, nil
}

// ConsumePending merges the chat's buffer with an incoming batch, empties the
// buffer, and returns the merged batch capped at maxPendingImages (most
// recent kept). The merge and the clear happen under the chat lock, so a
// concurrent append is never silently wiped.
func (s *Store) ConsumePending(chatID int64, images [][]byte) (merged [][]byte, truncated bool, err error) {
	l := s.chatLock(chatID)
	l.Lock()
	defer l.Unlock()

	existing, err := s.Pending(chatID)
	if err != nil {
		return nil, false, err
	}
	merged = append(existing, images...)
	if len(merged) > maxPendingImages {
		merged = merged[len(merged)-maxPendingImages:]
		truncated = true
	}
	if err := s.writePending(chatID, nil); err != nil {
		return nil, false, err
	}
	return merged, truncated, nil
}

// ClearPending drops the chat's buffered images.
func (s *Store) ClearPending(chatID int64) error {
	l := s.chatLock(chatID)
	l.Lock()
	defer l.Unlock()
	return s.writePending(chatID, nil)
}

// writePending replaces all PendingImage rows for a chat. Callers must hold
// the chat lock.
func (s *Store) writePending(chatID int64, images [][]byte) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&models.PendingImage{}).Error; err != nil {
			return fmt.Errorf("bot: store: delete pending: %w", err)
		}
		for i, data := range images {
			row := models.PendingImage{ChatID: chatID, Position: i, Data: data}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("bot: store: write pending: %w", err)
			}
		}
		return nil
	})
}
