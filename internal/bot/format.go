package bot

import "fmt"

// maxMessageLen is the chunk size for long text replies. Telegram's hard
// limit is 4096; 4000 leaves headroom for entity expansion.
const maxMessageLen = 4000

// chunkText splits text into chunks of at most maxLen characters. It
// prefers breaking at a newline in the second half of the window so
// paragraphs are not cut mid-line. Limits and cuts are counted in runes, so
// multi-byte text never splits inside a character. Empty input yields no
// chunks; re-chunking an already-short text returns it unchanged.
func chunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = maxMessageLen
	}
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}

		breakAt := -1
		half := maxLen / 2
		for i := maxLen - 1; i >= half; i-- {
			if runes[i] == '\n' {
				breakAt = i
				break
			}
		}

		if breakAt >= 0 {
			chunks = append(chunks, string(runes[:breakAt]))
			runes = runes[breakAt+1:] // skip the newline
		} else {
			chunks = append(chunks, string(runes[:maxLen]))
			runes = runes[maxLen:]
		}
	}
	return chunks
}

// photoCaption builds the caption for a generated image reply.
func photoCaption(label, usage string) string {
	caption := "Model: " + label
	if usage != "" {
		caption += "\n" + usage
	}
	return caption
}

// startText is the /start greeting. /start also resets the chat to text mode.
const startText = `ImageBot

Model: gpt-5.2 (default for a new chat)

Modes: text chat (/text), photo editing (/image1, /image15, /dalle), text-to-image (/create).

Commands:
/help — full command reference
/text — text mode (gpt-5.2), 1 photo for analysis
/image1 — gpt-image-1
/image15 — gpt-image-1.5
/dalle — DALL-E 2 (single-photo editing)
/create — text-to-image (gpt-image-1.5)
/dalle_gen — text-to-image (DALL-E 2)`

// helpText is the /help command reference.
const helpText = `ImageBot — command reference

/start — Reset to the default text mode (gpt-5.2).

/text — Text mode (gpt-5.2). Plain chat, or analysis of 1 photo with a text instruction. Long replies are split into multiple messages.

/image1 — Model gpt-image-1. Edit 1-10 photos with a text instruction.

/image15 — Model gpt-image-1.5. Edit 1-10 photos with a text instruction.

/dalle — DALL-E 2. Edit a single photo with a text instruction.

/create — Text-to-image without photos (gpt-image-1.5).

/dalle_gen — Text-to-image without photos (DALL-E 2, up to 1000 characters).`

// modeSwitchText returns the confirmation sent after a mode command.
func modeSwitchText(mode Mode) string {
	switch mode {
	case ModeText:
		return "Switched to text mode (gpt-5.2)\n\n" +
			"Chat with the model in plain text (no photos) or analyze 1 photo with a text instruction.\n" +
			"Replies longer than 4000 characters are split into multiple messages."
	case ModeImage1, ModeImage15:
		return fmt.Sprintf("Model: %s (mode saved)\n\n"+
			"Upload 1-10 photos (as an album or one by one). Photos are merged for processing.",
			ruleFor(mode).Label)
	case ModeDalle:
		return "Model: DALL-E 2 (mode saved)\n\nDALL-E 2 supports only 1 image"
	case ModeCreate:
		return "Create mode enabled (mode saved)\n\n" +
			"Text-to-image, no photos. Send a text description to get an image.\n" +
			"Model: gpt-image-1.5"
	case ModeDalleGen:
		return "DALL-E 2 Gen mode enabled (mode saved)\n\n" +
			"Text-to-image, no photos. Send a text description to get an image.\n" +
			"Model: DALL-E 2 (up to 1000 characters)"
	}
	return ""
}
