package bot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockAdapter implements Adapter for testing. It records sent messages,
// serves canned downloads, and allows simulating inbound events.
type MockAdapter struct {
	mu          sync.Mutex
	connected   bool
	closed      bool
	inbound     chan InboundEvent
	sent        []OutboundMessage
	edits       map[int]string // messageID -> latest text
	deleted     map[int]bool
	files       map[string][]byte // FileID -> bytes
	downloadErr map[string]error  // FileID -> forced error
	nextMsgID   int
}

// NewMockAdapter creates a MockAdapter with a buffered inbound channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		inbound:     make(chan InboundEvent, 100),
		edits:       make(map[int]string),
		deleted:     make(map[int]bool),
		files:       make(map[string][]byte),
		downloadErr: make(map[string]error),
	}
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound event channel. Must be called after Connect.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan InboundEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock adapter: not connected")
	}
	return m.inbound, nil
}

// Send records the outbound message and assigns it a message ID.
func (m *MockAdapter) Send(ctx context.Context, msg OutboundMessage) (MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return MessageRef{}, fmt.Errorf("mock adapter: not connected")
	}
	m.nextMsgID++
	m.sent = append(m.sent, msg)
	return MessageRef{ChatID: msg.ChatID, MessageID: m.nextMsgID}, nil
}

// Edit records the replacement text for a message.
func (m *MockAdapter) Edit(ctx context.Context, ref MessageRef, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits[ref.MessageID] = text
	return nil
}

// Delete records the deletion of a message.
func (m *MockAdapter) Delete(ctx context.Context, ref MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted[ref.MessageID] = true
	return nil
}

// Download serves pre-registered file bytes, or a forced error.
func (m *MockAdapter) Download(ctx context.Context, ref FileRef) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.downloadErr[ref.FileID]; err != nil {
		return nil, err
	}
	data, ok := m.files[ref.FileID]
	if !ok {
		return nil, fmt.Errorf("mock adapter: unknown file %q", ref.FileID)
	}
	return data, nil
}

// Close shuts down the mock adapter and closes the inbound channel.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.inbound)
	return nil
}

// --- Test helpers ---

// SetFile registers downloadable bytes for a file ID.
func (m *MockAdapter) SetFile(fileID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[fileID] = data
}

// SetDownloadError forces Download to fail for a file ID.
func (m *MockAdapter) SetDownloadError(fileID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErr[fileID] = err
}

// SimulateInbound delivers an event as if it came from the chat platform.
func (m *MockAdapter) SimulateInbound(ev InboundEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	m.inbound <- ev
}

// LastSent returns the most recently sent outbound message.
func (m *MockAdapter) LastSent() (OutboundMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return OutboundMessage{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// SentCount returns the number of outbound messages sent.
func (m *MockAdapter) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// AllSent returns a copy of all sent outbound messages.
func (m *MockAdapter) AllSent() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutboundMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentPhotos returns the photo messages among everything sent.
func (m *MockAdapter) SentPhotos() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var photos []OutboundMessage
	for _, msg := range m.sent {
		if msg.Photo != nil {
			photos = append(photos, msg)
		}
	}
	return photos
}

// EditedText returns the latest edit applied to a message ID.
func (m *MockAdapter) EditedText(messageID int) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.edits[messageID]
	return text, ok
}

// Deleted reports whether a message ID was deleted.
func (m *MockAdapter) Deleted(messageID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleted[messageID]
}
