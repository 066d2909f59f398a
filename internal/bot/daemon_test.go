package bot

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/akarpov/imagebot/internal/config"
	"github.com/akarpov/imagebot/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.ChatSession{}, &models.PendingImage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestNewDaemonValidation(t *testing.T) {
	gdb := newTestDB(t)
	adapter := NewMockAdapter()
	cfg := &config.Config{}
	b := &mockBackend{}

	cases := []struct {
		name string
		opts DaemonOpts
	}{
		{"missing db", DaemonOpts{Config: cfg, Adapter: adapter, Backend: b}},
		{"missing config", DaemonOpts{DB: gdb, Adapter: adapter, Backend: b}},
		{"missing adapter", DaemonOpts{DB: gdb, Config: cfg, Backend: b}},
		{"missing backend", DaemonOpts{DB: gdb, Config: cfg, Adapter: adapter}},
	}
	for _, tc := range cases {
		if _, err := NewDaemon(tc.opts); err == nil {
			t.Errorf("%s: NewDaemon succeeded, want error", tc.name)
		}
	}
}

func TestDaemonRunHandlesEventsAndShutsDown(t *testing.T) {
	adapter := NewMockAdapter()
	b := &mockBackend{}
	d, err := NewDaemon(DaemonOpts{
		DB:      newTestDB(t),
		Config:  &config.Config{},
		Adapter: adapter,
		Backend: b,
		Out:     &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Commands are handled synchronously by the router, so the reply lands
	// before the next event is pulled.
	adapter.SimulateInbound(InboundEvent{ChatID: 7, Command: "image1"})
	waitFor(t, func() bool { return adapter.SentCount() == 1 })
	last, _ := adapter.LastSent()
	if !strings.Contains(last.Text, "gpt-image-1") {
		t.Errorf("reply = %+v", last)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v after cancel, want nil", err)
	}
}

func TestDaemonRunStopsWhenInboundCloses(t *testing.T) {
	adapter := NewMockAdapter()
	d, err := NewDaemon(DaemonOpts{
		DB:      newTestDB(t),
		Config:  &config.Config{},
		Adapter: adapter,
		Backend: &mockBackend{},
		Out:     &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	waitFor(t, func() bool {
		_, listenErr := adapter.Listen(context.Background())
		return listenErr == nil
	})
	adapter.Close()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v after channel close, want nil", err)
	}
}
