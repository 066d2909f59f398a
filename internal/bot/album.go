package bot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultFlushDelay is how long the aggregator waits after the first part
// of an album before considering the album complete. Telegram sends no
// end-of-group marker, so a quiet period is the only completion signal.
const DefaultFlushDelay = 2 * time.Second

// BatchHandler receives a completed, downloaded album batch on behalf of a
// chat. Implemented by the Processor.
type BatchHandler interface {
	HandleImages(ctx context.Context, chatID int64, images [][]byte, caption string)
}

// albumGroup is one in-flight multi-part upload. It exists only between its
// first event and the flush that consumes it.
type albumGroup struct {
	id       string
	chatID   int64
	refs     []FileRef
	caption  string
	openedAt time.Time
	timer    *time.Timer
}

// Aggregator reconciles Telegram's delivery of one logical album as N
// independent messages sharing a media group id. The first part opens a
// group and schedules a flush after the debounce delay; later parts append.
// The flush pops the group atomically, downloads the parts, and hands the
// batch to the handler.
type Aggregator struct {
	adapter Adapter
	store   *Store
	handler BatchHandler
	delay   time.Duration

	mu     sync.Mutex
	groups map[string]*albumGroup
	byChat map[int64]string // chat -> most recently opened group still in flight
}

// AggregatorOpts holds parameters for creating an Aggregator.
type AggregatorOpts struct {
	Adapter Adapter
	Store   *Store
	Handler BatchHandler
	Delay   time.Duration // defaults to DefaultFlushDelay
}

// NewAggregator creates an Aggregator.
func NewAggregator(opts AggregatorOpts) (*Aggregator, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: aggregator: adapter is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("bot: aggregator: store is required")
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("bot: aggregator: handler is required")
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultFlushDelay
	}
	return &Aggregator{
		adapter: opts.Adapter,
		store:   opts.Store,
		handler: opts.Handler,
		delay:   delay,
		groups:  make(map[string]*albumGroup),
		byChat:  make(map[int64]string),
	}, nil
}

// OnAttachment records one album part. The first part for an unseen group
// id opens the group and schedules the flush; subsequent parts append in
// arrival order (duplicates included). The first non-empty caption wins.
// One timer per group: later parts never reschedule.
func (ag *Aggregator) OnAttachment(groupID string, chatID int64, ref FileRef, caption string) {
	ag.mu.Lock()
	defer ag.mu.Unlock()

	if g, ok := ag.groups[groupID]; ok {
		g.refs = append(g.refs, ref)
		if g.caption == "" && caption != "" {
			g.caption = caption
		}
		log.Printf("bot: album %s: part %d added [chat=%d]", groupID, len(g.refs), chatID)
		return
	}

	g := &albumGroup{
		id:       groupID,
		chatID:   chatID,
		refs:     []FileRef{ref},
		caption:  caption,
		openedAt: time.Now(),
	}
	g.timer = time.AfterFunc(ag.delay, func() {
		ag.Flush(context.Background(), groupID)
	})
	ag.groups[groupID] = g
	ag.byChat[chatID] = groupID
	log.Printf("bot: album %s: opened [chat=%d]", groupID, chatID)
}

// OpenGroupFor returns the id of the chat's in-flight album, or "" if none.
func (ag *Aggregator) OpenGroupFor(chatID int64) string {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	return ag.byChat[chatID]
}

// AdoptCaption attaches text as the group's caption if it has none yet.
// Returns false when the group is gone or already captioned.
func (ag *Aggregator) AdoptCaption(groupID, text string) bool {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	g, ok := ag.groups[groupID]
	if !ok || g.caption != "" {
		return false
	}
	g.caption = text
	return true
}

// Cancel stops the scheduled flush and discards the group. Nothing is
// downloaded and the handler is never called. Returns false if the group
// was already flushed or never existed.
func (ag *Aggregator) Cancel(groupID string) bool {
	g := ag.pop(groupID)
	if g == nil {
		return false
	}
	g.timer.Stop()
	return true
}

// Flush completes a group: pops it from the registry (a group already
// flushed is a no-op), downloads the parts unless the chat's mode ignores
// images, and hands the batch to the handler. The scheduled timer calls this
// once per group; tests may call it directly, the registry pop guarantees a
// single winner either way.
func (ag *Aggregator) Flush(ctx context.Context, groupID string) {
	g := ag.pop(groupID)
	if g == nil {
		return
	}

	log.Printf("bot: album %s: flushing %d part(s) [chat=%d]", groupID, len(g.refs), g.chatID)

	// Text-to-image modes never download album photos; only the caption
	// matters. The mode is read at flush time, not open time: a mode switch
	// while the album was uploading applies to it (accepted behavior).
	rule := ruleFor(ag.store.Mode(g.chatID))
	if rule.Kind == opGenerate {
		ag.handler.HandleImages(ctx, g.chatID, nil, g.caption)
		return
	}

	images := make([][]byte, 0, len(g.refs))
	for i, ref := range g.refs {
		data, err := ag.adapter.Download(ctx, ref)
		if err != nil {
			// A partial album would silently under-deliver; abort the
			// whole batch and tell the user.
			log.Printf("bot: album %s: download part %d: %v", groupID, i+1, err)
			ag.send(ctx, g.chatID, "Failed to download the album images. Please send them again.")
			return
		}
		images = append(images, data)
	}

	ag.handler.HandleImages(ctx, g.chatID, images, g.caption)
}

// pop atomically removes and returns the group, or nil if absent. This is
// the double-flush guard: whoever pops the group owns its processing.
func (ag *Aggregator) pop(groupID string) *albumGroup {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	g, ok := ag.groups[groupID]
	if !ok {
		return nil
	}
	delete(ag.groups, groupID)
	if ag.byChat[g.chatID] == groupID {
		delete(ag.byChat, g.chatID)
	}
	return g
}

// send is a best-effort text reply used for flush failures.
func (ag *Aggregator) send(ctx context.Context, chatID int64, text string) {
	if _, err := ag.adapter.Send(ctx, OutboundMessage{ChatID: chatID, Text: text}); err != nil {
		log.Printf("bot: album: send failure notice [chat=%d]: %v", chatID, err)
	}
}
