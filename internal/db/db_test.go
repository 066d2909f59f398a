package db

import (
	"path/filepath"
	"testing"

	"github.com/akarpov/imagebot/internal/models"
)

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.db")
	gdb, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}

	// Round-trip one row through each table.
	if err := gdb.Create(&models.ChatSession{ChatID: 7, Mode: "text"}).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := gdb.Create(&models.PendingImage{ChatID: 7, Position: 0, Data: []byte{1}}).Error; err != nil {
		t.Fatalf("create pending image: %v", err)
	}
	if err := gdb.Create(&models.DocumentChunk{Source: "a.txt", Seq: 0, Content: "hello"}).Error; err != nil {
		t.Fatalf("create chunk: %v", err)
	}
}

func TestOpenBadPath(t *testing.T) {
	if _, err := Open("/nonexistent-dir/deeper/bot.db"); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}
