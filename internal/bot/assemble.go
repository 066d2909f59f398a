package bot

import (
	"fmt"
	"strings"
)

// truncationMarker is appended to instructions cut at the mode's prompt limit.
const truncationMarker = "\n\n[... truncated]"

// Request is a finalized (mode, images, instruction) tuple ready for
// backend dispatch. Produced by the Assembler, consumed exactly once by the
// Dispatcher, then discarded.
type Request struct {
	ChatID int64
	Mode   Mode
	Images [][]byte
	Prompt string
}

// Decision is the Assembler's verdict on an incoming batch or instruction.
// Either Request is non-nil (dispatch now, after sending Warnings) or Reply
// carries an immediate user-facing response (status count, diagnostic,
// usage hint). The same value type serves the direct and the album paths.
type Decision struct {
	Request  *Request
	Warnings []string
	Reply    string
}

// Assembler decides, per the mode table, whether buffered images plus an
// arriving instruction form a dispatchable request, buffer-and-wait, or a
// rejection. Whenever it consumes the pending buffer it does so through the
// store's atomic take operations, so an album flush appending concurrently
// can never be wiped between a read and a clear.
type Assembler struct {
	store *Store
}

// NewAssembler creates an Assembler over the given session store.
func NewAssembler(store *Store) (*Assembler, error) {
	if store == nil {
		return nil, fmt.Errorf("bot: assembler: store is required")
	}
	return &Assembler{store: store}, nil
}

// OnImages handles a batch of downloaded images (a flushed album or a single
// direct photo) with an optional caption. Callers in text-to-image modes may
// pass a nil batch: those modes never use images.
func (a *Assembler) OnImages(chatID int64, images [][]byte, caption string) (*Decision, error) {
	mode := a.store.Mode(chatID)
	rule := ruleFor(mode)
	caption = strings.TrimSpace(caption)

	// Text-to-image modes ignore photos entirely; only the caption matters.
	if rule.Kind == opGenerate {
		if err := a.store.ClearPending(chatID); err != nil {
			return nil, err
		}
		if caption == "" {
			return &Decision{Reply: fmt.Sprintf(
				"In %s mode send only a text description of the image (no photos).", rule.Label)}, nil
		}
		return a.assemble(chatID, mode, rule, nil, caption), nil
	}

	if rule.ReplaceBuffer {
		// Text mode: a new batch replaces whatever was buffered before,
		// capped at what the mode can actually dispatch.
		buffered := capImages(images, rule)
		if caption == "" {
			if err := a.store.SetPending(chatID, buffered); err != nil {
				return nil, err
			}
			return &Decision{Reply: statusCount(len(buffered), rule)}, nil
		}
		if err := a.store.ClearPending(chatID); err != nil {
			return nil, err
		}
		return a.assemble(chatID, mode, rule, buffered, caption), nil
	}

	if caption == "" {
		buffered, truncated, err := a.store.AppendPending(chatID, images)
		if err != nil {
			return nil, err
		}
		return &Decision{
			Warnings: capWarnings(truncated),
			Reply:    statusCount(len(buffered), rule),
		}, nil
	}

	// Caption present: earlier buffer plus this batch form the request.
	// Merge and clear in one step.
	merged, truncated, err := a.store.ConsumePending(chatID, images)
	if err != nil {
		return nil, err
	}
	d := a.assemble(chatID, mode, rule, merged, caption)
	d.Warnings = append(capWarnings(truncated), d.Warnings...)
	return d, nil
}

// OnText handles a plain text instruction for a chat.
func (a *Assembler) OnText(chatID int64, text string) (*Decision, error) {
	mode := a.store.Mode(chatID)
	rule := ruleFor(mode)
	text = strings.TrimSpace(text)

	switch rule.Kind {
	case opGenerate:
		if text == "" {
			return &Decision{Reply: "Enter a text description of the image."}, nil
		}
		return a.assemble(chatID, mode, rule, nil, text), nil

	case opChat:
		if text == "" {
			return &Decision{Reply: "Enter a message or send a photo with a caption."}, nil
		}
		buffered, err := a.store.TakePending(chatID)
		if err != nil {
			return nil, err
		}
		return a.assemble(chatID, mode, rule, buffered, text), nil

	default: // opEdit
		if text == "" {
			return &Decision{Reply: "Enter a text instruction for the images."}, nil
		}
		buffered, err := a.store.TakePending(chatID)
		if err != nil {
			return nil, err
		}
		if len(buffered) == 0 {
			return &Decision{Reply: "Send an image first, then the text instruction."}, nil
		}
		return a.assemble(chatID, mode, rule, buffered, text), nil
	}
}

// assemble builds the final Request: truncates the instruction at the mode's
// limit (counted in characters, not bytes) and applies the mode's image cap.
// Callers have already consumed the pending buffer atomically.
func (a *Assembler) assemble(chatID int64, mode Mode, rule modeRule, images [][]byte, prompt string) *Decision {
	var warnings []string

	if rule.PromptLimit > 0 {
		if runes := []rune(prompt); len(runes) > rule.PromptLimit {
			prompt = string(runes[:rule.PromptLimit]) + truncationMarker
			warnings = append(warnings, fmt.Sprintf(
				"%s: prompt truncated to %d characters.", rule.Label, rule.PromptLimit))
		}
	}

	images = capImages(images, rule)

	return &Decision{
		Request: &Request{
			ChatID: chatID,
			Mode:   mode,
			Images: images,
			Prompt: prompt,
		},
		Warnings: warnings,
	}
}

// capImages truncates a batch to the mode's image limit.
func capImages(images [][]byte, rule modeRule) [][]byte {
	if len(images) <= rule.MaxImages {
		return images
	}
	if rule.KeepFirst {
		return images[:rule.MaxImages]
	}
	return images[len(images)-rule.MaxImages:]
}

func capWarnings(truncated bool) []string {
	if !truncated {
		return nil
	}
	return []string{fmt.Sprintf(
		"Maximum %d images. Using the most recent %d.", maxPendingImages, maxPendingImages)}
}

func statusCount(n int, rule modeRule) string {
	return fmt.Sprintf("Received %d image(s). Model: %s\nSend a text instruction or add a caption.",
		n, rule.Label)
}
