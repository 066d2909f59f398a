// Package telegram implements the bot Adapter on the Telegram Bot API
// using long polling.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/akarpov/imagebot/internal/bot"
)

const (
	// pollTimeout is the long-poll wait in seconds.
	pollTimeout = 30
	// maxDownloadBytes caps a single file download.
	maxDownloadBytes = 20 << 20
)

// api abstracts the tgbotapi.BotAPI methods we use, enabling test mocks.
type api interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Adapter implements bot.Adapter for Telegram.
type Adapter struct {
	botToken string
	api      api
	http     *http.Client

	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan bot.InboundEvent
}

// AdapterOpts holds parameters for creating a Telegram Adapter.
type AdapterOpts struct {
	BotToken string
	// For testing: inject a mock API instead of the real Bot API.
	API api
	// Optional HTTP client for file downloads.
	HTTPClient *http.Client
}

// New creates a Telegram Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.API == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	a := &Adapter{
		botToken: opts.BotToken,
		api:      opts.API,
		http:     opts.HTTPClient,
		inbound:  make(chan bot.InboundEvent, 100),
	}
	if a.http == nil {
		a.http = &http.Client{Timeout: 60 * time.Second}
	}
	return a, nil
}

// Connect authenticates against the Bot API.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("telegram: adapter already closed")
	}
	if a.connected {
		return nil
	}
	if a.api == nil {
		b, err := tgbotapi.NewBotAPI(a.botToken)
		if err != nil {
			return fmt.Errorf("telegram: connect: %w", err)
		}
		log.Printf("telegram: connected as @%s", b.Self.UserName)
		a.api = b
	}
	a.connected = true
	return nil
}

// Listen starts long polling and returns the inbound event channel. The
// pump goroutine exits when the update stream closes or ctx is done.
func (a *Adapter) Listen(ctx context.Context) (<-chan bot.InboundEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("telegram: not connected")
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := a.api.GetUpdatesChan(cfg)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := convertUpdate(update)
				if !ok {
					continue
				}
				select {
				case a.inbound <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return a.inbound, nil
}

// convertUpdate maps a Telegram update onto an InboundEvent. Updates
// without a message (edits, callbacks) are dropped.
func convertUpdate(update tgbotapi.Update) (bot.InboundEvent, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return bot.InboundEvent{}, false
	}

	ev := bot.InboundEvent{
		ChatID:       msg.Chat.ID,
		MessageID:    msg.MessageID,
		MediaGroupID: msg.MediaGroupID,
		Caption:      msg.Caption,
		Timestamp:    msg.Time(),
	}
	if msg.From != nil {
		ev.UserID = msg.From.ID
		ev.UserName = msg.From.UserName
	}

	if msg.IsCommand() {
		ev.Command = msg.Command()
		ev.CommandArgs = msg.CommandArguments()
	} else {
		ev.Text = msg.Text
	}

	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize > best.FileSize {
				best = p
			}
		}
		ev.Photo = &bot.FileRef{FileID: best.FileID, Mime: "image/jpeg", Size: best.FileSize}
	} else if msg.Document != nil {
		ev.Document = &bot.FileRef{
			FileID: msg.Document.FileID,
			Mime:   msg.Document.MimeType,
			Size:   msg.Document.FileSize,
		}
	}
	return ev, true
}

// Send delivers a text or photo message.
func (a *Adapter) Send(ctx context.Context, msg bot.OutboundMessage) (bot.MessageRef, error) {
	var c tgbotapi.Chattable
	if len(msg.Photo) > 0 {
		name := msg.PhotoName
		if name == "" {
			name = "image.png"
		}
		photo := tgbotapi.NewPhoto(msg.ChatID, tgbotapi.FileBytes{Name: name, Bytes: msg.Photo})
		photo.Caption = msg.Text
		c = photo
	} else {
		c = tgbotapi.NewMessage(msg.ChatID, msg.Text)
	}

	sent, err := a.api.Send(c)
	if err != nil {
		return bot.MessageRef{}, fmt.Errorf("telegram: send to %d: %w", msg.ChatID, err)
	}
	return bot.MessageRef{ChatID: msg.ChatID, MessageID: sent.MessageID}, nil
}

// Edit replaces the text of a previously sent message.
func (a *Adapter) Edit(ctx context.Context, ref bot.MessageRef, text string) error {
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	if _, err := a.api.Send(edit); err != nil {
		return fmt.Errorf("telegram: edit %d/%d: %w", ref.ChatID, ref.MessageID, err)
	}
	return nil
}

// Delete removes a previously sent message.
func (a *Adapter) Delete(ctx context.Context, ref bot.MessageRef) error {
	del := tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)
	if _, err := a.api.Request(del); err != nil {
		return fmt.Errorf("telegram: delete %d/%d: %w", ref.ChatID, ref.MessageID, err)
	}
	return nil
}

// Download fetches the raw bytes of a received file.
func (a *Adapter) Download(ctx context.Context, ref bot.FileRef) ([]byte, error) {
	url, err := a.api.GetFileDirectURL(ref.FileID)
	if err != nil {
		return nil, fmt.Errorf("telegram: resolve file %s: %w", ref.FileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: download file %s: %w", ref.FileID, err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download file %s: %w", ref.FileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: download file %s: status %d", ref.FileID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("telegram: download file %s: %w", ref.FileID, err)
	}
	return data, nil
}

// Close stops polling and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.connected && a.api != nil {
		a.api.StopReceivingUpdates()
	}
	a.connected = false
	close(a.inbound)
	return nil
}
