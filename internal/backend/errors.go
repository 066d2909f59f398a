// Package backend wraps the OpenAI API: image editing, text-to-image
// generation, chat, and embeddings, with a small error taxonomy the bot
// core can act on.
package backend

import (
	"errors"
	"fmt"
)

// ErrEmptyResult means the API answered successfully but carried no
// payload. Fatal for the request; never retried automatically.
var ErrEmptyResult = errors.New("backend: empty result")

// ValidationError means the caller's input was invalid before any API call
// was made. The message is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "backend: validation: " + e.Message
}

// ModerationError means the API rejected the request on safety grounds.
// The raw detail is kept for logs; UserMessage renders a non-leaking form.
type ModerationError struct {
	Detail string
}

func (e *ModerationError) Error() string {
	return fmt.Sprintf("backend: moderation blocked: %s", e.Detail)
}

// UserMessage returns the sanitized text shown to the user.
func (e *ModerationError) UserMessage() string {
	return "The request was rejected by the OpenAI safety system.\n\n" +
		"Try rephrasing the description. If you believe this is an error, contact support: help.openai.com"
}
