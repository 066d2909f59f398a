// Package bot assembles image-editing requests out of Telegram's piecemeal
// delivery (album parts, trailing captions, separate text instructions) and
// dispatches them to the generative backend exactly once.
package bot

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must
// satisfy. An adapter handles connection management, event delivery,
// message sending/editing, and attachment downloads for one chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound events from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundEvent, error)

	// Send delivers an outbound message and returns a reference to it
	// so the caller can later edit or delete it.
	Send(ctx context.Context, msg OutboundMessage) (MessageRef, error)

	// Edit replaces the text of a previously sent message.
	Edit(ctx context.Context, ref MessageRef, text string) error

	// Delete removes a previously sent message.
	Delete(ctx context.Context, ref MessageRef) error

	// Download fetches the bytes of an attachment.
	Download(ctx context.Context, ref FileRef) ([]byte, error)

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// FileRef identifies a downloadable attachment on the transport.
type FileRef struct {
	FileID string // platform-specific file identifier
	Mime   string // MIME type if the platform reports one
	Size   int    // size in bytes, 0 if unknown
}

// InboundEvent represents a single update received from the chat platform.
// Exactly one of Command, Photo/Document, or Text is meaningful per event:
// commands carry Command (without the slash) and CommandArgs, attachments
// carry Photo or Document plus an optional Caption, and plain messages
// carry Text.
type InboundEvent struct {
	ChatID       int64
	UserID       int64
	UserName     string
	Command      string // e.g. "image15"; empty for non-command messages
	CommandArgs  string
	Text         string
	Caption      string
	Photo        *FileRef // largest available size, preselected by the adapter
	Document     *FileRef // generic attachment; Mime identifies the type
	MediaGroupID string   // shared by all parts of one album, empty otherwise
	MessageID    int
	Timestamp    time.Time
}

// OutboundMessage represents a message to be sent to the chat platform.
// When Photo is non-nil the message is sent as an image with Text as its
// caption; otherwise it is a plain text message.
type OutboundMessage struct {
	ChatID    int64
	Text      string
	Photo     []byte
	PhotoName string // filename hint for the upload, defaults to "output.png"
}

// MessageRef identifies a sent message for later Edit/Delete calls.
type MessageRef struct {
	ChatID    int64
	MessageID int
}
