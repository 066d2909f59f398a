package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/akarpov/imagebot/internal/backend"
)

// Backend is the generative service the dispatcher submits requests to.
// Implemented by backend.Client; mocked in tests.
type Backend interface {
	// Edit transforms 1-10 input images per the instruction and returns
	// the resulting image bytes plus an optional usage label.
	Edit(ctx context.Context, images [][]byte, prompt, model string) ([]byte, string, error)
	// Generate produces an image from a text description.
	Generate(ctx context.Context, prompt, model string) ([]byte, string, error)
	// Chat answers an instruction in text, optionally grounded on one image.
	Chat(ctx context.Context, prompt, model string, image []byte) (string, string, error)
}

// Outcome is the dispatcher's translation of a backend call result.
type Outcome interface{ outcome() }

// ImageResult carries a generated or edited image.
type ImageResult struct {
	Bytes      []byte
	UsageLabel string
}

// TextResult carries a generated text reply.
type TextResult struct {
	Text       string
	UsageLabel string
}

// ValidationFailure means the caller's input was invalid (e.g. an empty
// instruction). The message is shown to the user as-is.
type ValidationFailure struct{ Message string }

// BackendFailure means the backend rejected or errored on the request. The
// message is already rendered in a user-safe form.
type BackendFailure struct{ Message string }

// BackendEmpty means the backend returned no payload. Fatal for this
// request; not retried.
type BackendEmpty struct{}

func (ImageResult) outcome()       {}
func (TextResult) outcome()        {}
func (ValidationFailure) outcome() {}
func (BackendFailure) outcome()    {}
func (BackendEmpty) outcome()      {}

// genericFailure is shown when a backend error has no user-safe rendering.
const genericFailure = "Something went wrong while processing the request. Try again later."

// Dispatcher submits an assembled request to the backend exactly once and
// translates the result into an Outcome. Errors never propagate past it:
// whatever the backend does, the conversation handler gets an Outcome.
type Dispatcher struct {
	backend Backend
}

// NewDispatcher creates a Dispatcher over the given backend.
func NewDispatcher(b Backend) (*Dispatcher, error) {
	if b == nil {
		return nil, fmt.Errorf("bot: dispatcher: backend is required")
	}
	return &Dispatcher{backend: b}, nil
}

// Dispatch runs the single backend call for req. It must be called at most
// once per Request; the assembler has already cleared the pending buffer,
// so re-entering it for the same trigger is a caller bug.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) Outcome {
	rule := ruleFor(req.Mode)

	switch rule.Kind {
	case opChat:
		var image []byte
		if len(req.Images) > 0 {
			image = req.Images[0]
		}
		text, usage, err := d.backend.Chat(ctx, req.Prompt, rule.Model, image)
		if err != nil {
			return d.failure(req, err)
		}
		return TextResult{Text: text, UsageLabel: usage}

	case opGenerate:
		data, usage, err := d.backend.Generate(ctx, req.Prompt, rule.Model)
		if err != nil {
			return d.failure(req, err)
		}
		return ImageResult{Bytes: data, UsageLabel: usage}

	default: // opEdit
		data, usage, err := d.backend.Edit(ctx, req.Images, req.Prompt, rule.Model)
		if err != nil {
			return d.failure(req, err)
		}
		return ImageResult{Bytes: data, UsageLabel: usage}
	}
}

// failure maps a backend error to the matching Outcome. Moderation blocks
// are expected traffic and logged at info level; everything else is logged
// with full detail and degraded to a generic user message.
func (d *Dispatcher) failure(req *Request, err error) Outcome {
	var valErr *backend.ValidationError
	if errors.As(err, &valErr) {
		log.Printf("bot: dispatch chat=%d mode=%s: validation: %v", req.ChatID, req.Mode, valErr)
		return ValidationFailure{Message: valErr.Message}
	}

	var modErr *backend.ModerationError
	if errors.As(err, &modErr) {
		log.Printf("bot: dispatch chat=%d mode=%s: moderation blocked", req.ChatID, req.Mode)
		return BackendFailure{Message: modErr.UserMessage()}
	}

	if errors.Is(err, backend.ErrEmptyResult) {
		log.Printf("bot: dispatch chat=%d mode=%s: backend returned no payload", req.ChatID, req.Mode)
		return BackendEmpty{}
	}

	log.Printf("bot: dispatch chat=%d mode=%s: backend error: %v", req.ChatID, req.Mode, err)
	return BackendFailure{Message: genericFailure}
}
