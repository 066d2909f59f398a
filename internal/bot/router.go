package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Router classifies inbound events and routes them: mode commands mutate
// session state directly, album parts go to the Aggregator, and direct
// photos or text go through the Processor. Handle itself never blocks on
// the network; download and backend work runs in per-event goroutines so
// one slow conversation cannot stall the event loop.
type Router struct {
	store      *Store
	aggregator *Aggregator
	processor  *Processor
	adapter    Adapter
	out        io.Writer
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Store      *Store
	Aggregator *Aggregator
	Processor  *Processor
	Adapter    Adapter
	Out        io.Writer // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("bot: router: store is required")
	}
	if opts.Aggregator == nil {
		return nil, fmt.Errorf("bot: router: aggregator is required")
	}
	if opts.Processor == nil {
		return nil, fmt.Errorf("bot: router: processor is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: router: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Router{
		store:      opts.Store,
		aggregator: opts.Aggregator,
		processor:  opts.Processor,
		adapter:    opts.Adapter,
		out:        out,
	}, nil
}

// Handle classifies and routes a single inbound event. Routing paths:
//  1. Bot command → mode switch / help
//  2. Album part → aggregator (append is synchronous; ordering per group)
//  3. Direct photo/document → download + assemble (goroutine)
//  4. Text while an album is open → adopt as the album caption, or reject
//  5. Plain text → assemble (goroutine)
func (r *Router) Handle(ctx context.Context, ev InboundEvent) {
	if ev.Command != "" {
		fmt.Fprintf(r.out, "bot: router: recv command /%s [chat=%d user=%s]\n",
			ev.Command, ev.ChatID, ev.UserName)
		r.handleCommand(ctx, ev)
		return
	}

	if ev.Photo != nil || ev.Document != nil {
		r.handleAttachment(ctx, ev)
		return
	}

	if text := strings.TrimSpace(ev.Text); text != "" {
		fmt.Fprintf(r.out, "bot: router: recv text [chat=%d user=%s] %q\n",
			ev.ChatID, ev.UserName, truncate(text, 80))

		// A direct instruction racing an open album: the text is almost
		// always the caption for the album still being uploaded. Attach it
		// if the album has no caption yet; otherwise ask the user to wait.
		if groupID := r.aggregator.OpenGroupFor(ev.ChatID); groupID != "" {
			if r.aggregator.AdoptCaption(groupID, text) {
				fmt.Fprintf(r.out, "bot: router: → caption for open album %s\n", groupID)
				return
			}
			r.reply(ctx, ev.ChatID,
				"An album is still uploading — wait for the image count message, then send the instruction.")
			return
		}

		go r.processor.HandleText(ctx, ev.ChatID, text)
	}
}

// handleCommand applies /start, /help, and the mode commands. Unknown
// commands are ignored, matching how Telegram clients surface them.
func (r *Router) handleCommand(ctx context.Context, ev InboundEvent) {
	switch {
	case ev.Command == "start":
		if err := r.store.SetMode(ev.ChatID, ModeText); err != nil {
			log.Printf("bot: router: set mode on /start [chat=%d]: %v", ev.ChatID, err)
		}
		r.reply(ctx, ev.ChatID, startText)

	case ev.Command == "help":
		r.reply(ctx, ev.ChatID, helpText)

	default:
		mode, ok := modeCommands[ev.Command]
		if !ok {
			fmt.Fprintf(r.out, "bot: router: → ignore unknown command /%s\n", ev.Command)
			return
		}
		if err := r.store.SetMode(ev.ChatID, mode); err != nil {
			log.Printf("bot: router: set mode /%s [chat=%d]: %v", ev.Command, ev.ChatID, err)
			r.reply(ctx, ev.ChatID, genericFailure)
			return
		}
		r.reply(ctx, ev.ChatID, modeSwitchText(mode))
	}
}

// handleAttachment routes a photo or document event.
func (r *Router) handleAttachment(ctx context.Context, ev InboundEvent) {
	ref, ok := r.imageRef(ev)
	if !ok {
		r.reply(ctx, ev.ChatID, "Only images are supported (PNG, JPEG).")
		return
	}

	mode := r.store.Mode(ev.ChatID)
	rule := ruleFor(mode)

	// Text-to-image modes: a lone photo is never downloaded; only its
	// caption can carry the description. Album parts still aggregate so the
	// caption from any part is captured before the flush decides.
	if rule.Kind == opGenerate && ev.MediaGroupID == "" {
		fmt.Fprintf(r.out, "bot: router: recv photo in %s mode [chat=%d]\n", mode, ev.ChatID)
		go r.processor.HandleImages(ctx, ev.ChatID, nil, ev.Caption)
		return
	}

	if ev.MediaGroupID != "" {
		fmt.Fprintf(r.out, "bot: router: → album %s part [chat=%d]\n", ev.MediaGroupID, ev.ChatID)
		r.aggregator.OnAttachment(ev.MediaGroupID, ev.ChatID, ref, ev.Caption)
		return
	}

	fmt.Fprintf(r.out, "bot: router: → single photo [chat=%d caption=%t]\n",
		ev.ChatID, strings.TrimSpace(ev.Caption) != "")
	go r.downloadAndProcess(ctx, ev.ChatID, ref, ev.Caption)
}

// downloadAndProcess fetches a single direct photo and runs the image path.
func (r *Router) downloadAndProcess(ctx context.Context, chatID int64, ref FileRef, caption string) {
	data, err := r.adapter.Download(ctx, ref)
	if err != nil {
		log.Printf("bot: router: download [chat=%d file=%s]: %v", chatID, ref.FileID, err)
		r.reply(ctx, chatID, "Failed to download the image. Please send it again.")
		return
	}
	r.processor.HandleImages(ctx, chatID, [][]byte{data}, caption)
}

// imageRef extracts the downloadable image reference from an event. Photos
// always qualify; documents only when the platform reports an image MIME.
func (r *Router) imageRef(ev InboundEvent) (FileRef, bool) {
	if ev.Photo != nil {
		return *ev.Photo, true
	}
	if ev.Document != nil && strings.HasPrefix(ev.Document.Mime, "image/") {
		return *ev.Document, true
	}
	return FileRef{}, false
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if _, err := r.adapter.Send(ctx, OutboundMessage{ChatID: chatID, Text: text}); err != nil {
		log.Printf("bot: router: send reply [chat=%d]: %v", chatID, err)
	}
}

// truncate returns s truncated to maxLen with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
