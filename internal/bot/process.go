package bot

import (
	"context"
	"fmt"
	"log"
)

// Processor drives a Decision to completion: it sends the assembler's
// immediate reply, or posts a progress placeholder, runs the single dispatch,
// and turns the outcome into transport actions. The direct-message path and
// the album-flush path both end here, so dispatch behavior cannot drift
// between them.
type Processor struct {
	adapter    Adapter
	assembler  *Assembler
	dispatcher *Dispatcher
	store      *Store
}

// ProcessorOpts holds parameters for creating a Processor.
type ProcessorOpts struct {
	Adapter    Adapter
	Assembler  *Assembler
	Dispatcher *Dispatcher
	Store      *Store
}

// NewProcessor creates a Processor.
func NewProcessor(opts ProcessorOpts) (*Processor, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: processor: adapter is required")
	}
	if opts.Assembler == nil {
		return nil, fmt.Errorf("bot: processor: assembler is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("bot: processor: dispatcher is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("bot: processor: store is required")
	}
	return &Processor{
		adapter:    opts.Adapter,
		assembler:  opts.Assembler,
		dispatcher: opts.Dispatcher,
		store:      opts.Store,
	}, nil
}

// HandleImages runs the image path for a downloaded batch (direct photo or
// flushed album). Implements BatchHandler for the Aggregator.
func (p *Processor) HandleImages(ctx context.Context, chatID int64, images [][]byte, caption string) {
	decision, err := p.assembler.OnImages(chatID, images, caption)
	if err != nil {
		log.Printf("bot: process images [chat=%d]: %v", chatID, err)
		p.reply(ctx, chatID, genericFailure)
		return
	}
	p.Run(ctx, chatID, decision)
}

// HandleText runs the text path for a plain instruction.
func (p *Processor) HandleText(ctx context.Context, chatID int64, text string) {
	decision, err := p.assembler.OnText(chatID, text)
	if err != nil {
		log.Printf("bot: process text [chat=%d]: %v", chatID, err)
		p.reply(ctx, chatID, genericFailure)
		return
	}
	p.Run(ctx, chatID, decision)
}

// Run executes one Decision. Warnings go out first (truncation notices),
// then either the immediate reply or the placeholder-dispatch-reply cycle.
func (p *Processor) Run(ctx context.Context, chatID int64, d *Decision) {
	for _, w := range d.Warnings {
		p.reply(ctx, chatID, w)
	}

	if d.Request == nil {
		if d.Reply != "" {
			p.reply(ctx, chatID, d.Reply)
		}
		return
	}

	req := d.Request
	rule := ruleFor(req.Mode)

	placeholder, err := p.adapter.Send(ctx, OutboundMessage{
		ChatID: chatID,
		Text:   placeholderText(rule),
	})
	if err != nil {
		log.Printf("bot: send placeholder [chat=%d]: %v", chatID, err)
		placeholder = MessageRef{ChatID: chatID}
	}

	log.Printf("bot: dispatch [chat=%d mode=%s images=%d prompt_len=%d]",
		chatID, req.Mode, len(req.Images), len(req.Prompt))

	outcome := p.dispatcher.Dispatch(ctx, req)

	switch o := outcome.(type) {
	case ImageResult:
		if _, err := p.adapter.Send(ctx, OutboundMessage{
			ChatID: chatID,
			Text:   photoCaption(rule.Label, o.UsageLabel),
			Photo:  o.Bytes,
		}); err != nil {
			log.Printf("bot: send photo [chat=%d]: %v", chatID, err)
			p.edit(ctx, placeholder, genericFailure)
			return
		}
		p.delete(ctx, placeholder)

	case TextResult:
		p.delete(ctx, placeholder)
		chunks := chunkText(o.Text, maxMessageLen)
		if len(chunks) == 0 {
			p.reply(ctx, chatID, "(empty response)")
			return
		}
		for _, chunk := range chunks {
			p.reply(ctx, chatID, chunk)
		}
		if o.UsageLabel != "" {
			p.reply(ctx, chatID, o.UsageLabel)
		}

	case ValidationFailure:
		p.edit(ctx, placeholder, o.Message)

	case BackendFailure:
		p.edit(ctx, placeholder, o.Message)

	case BackendEmpty:
		p.edit(ctx, placeholder, "The backend returned no image. Try again.")
	}
}

// placeholderText returns the progress message posted before a dispatch.
func placeholderText(rule modeRule) string {
	switch rule.Kind {
	case opChat:
		return "Processing…"
	case opGenerate:
		return fmt.Sprintf("Generating image (%s)…", rule.Label)
	default:
		return fmt.Sprintf("Processing images (%s)…", rule.Label)
	}
}

func (p *Processor) reply(ctx context.Context, chatID int64, text string) {
	if _, err := p.adapter.Send(ctx, OutboundMessage{ChatID: chatID, Text: text}); err != nil {
		log.Printf("bot: send reply [chat=%d]: %v", chatID, err)
	}
}

// edit rewrites the placeholder in place; used for failure outcomes so the
// user sees the diagnostic where the progress message was.
func (p *Processor) edit(ctx context.Context, ref MessageRef, text string) {
	if ref.MessageID == 0 {
		p.reply(ctx, ref.ChatID, text)
		return
	}
	if err := p.adapter.Edit(ctx, ref, text); err != nil {
		log.Printf("bot: edit message [chat=%d msg=%d]: %v", ref.ChatID, ref.MessageID, err)
	}
}

func (p *Processor) delete(ctx context.Context, ref MessageRef) {
	if ref.MessageID == 0 {
		return
	}
	if err := p.adapter.Delete(ctx, ref); err != nil {
		log.Printf("bot: delete message [chat=%d msg=%d]: %v", ref.ChatID, ref.MessageID, err)
	}
}
