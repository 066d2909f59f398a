package bot

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkTextEmpty(t *testing.T) {
	if got := chunkText("", maxMessageLen); got != nil {
		t.Errorf("chunkText(\"\") = %v, want nil", got)
	}
}

func TestChunkTextShortSingleChunk(t *testing.T) {
	got := chunkText("hello", maxMessageLen)
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("got %v, want [hello]", got)
	}
}

func TestChunkTextExactLimit(t *testing.T) {
	text := strings.Repeat("a", maxMessageLen)
	got := chunkText(text, maxMessageLen)
	if len(got) != 1 {
		t.Errorf("len = %d, want 1 for text at exactly the limit", len(got))
	}
}

func TestChunkTextBreaksAtNewline(t *testing.T) {
	// Newline at position 80 of a 100-char window: in the second half, so
	// the first chunk ends there and the newline itself is dropped.
	text := strings.Repeat("a", 80) + "\n" + strings.Repeat("b", 60)
	got := chunkText(text, 100)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0] != strings.Repeat("a", 80) {
		t.Errorf("chunk 0 = %q", got[0])
	}
	if got[1] != strings.Repeat("b", 60) {
		t.Errorf("chunk 1 = %q", got[1])
	}
}

func TestChunkTextIgnoresNewlineInFirstHalf(t *testing.T) {
	// Only newline is at position 10, before the midpoint: hard cut at 100.
	text := strings.Repeat("a", 10) + "\n" + strings.Repeat("b", 120)
	got := chunkText(text, 100)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if len(got[0]) != 100 {
		t.Errorf("len(chunk 0) = %d, want a hard cut at 100", len(got[0]))
	}
}

func TestChunkTextNoNewlinesHardCuts(t *testing.T) {
	text := strings.Repeat("x", 250)
	got := chunkText(text, 100)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if len(got[0]) != 100 || len(got[1]) != 100 || len(got[2]) != 50 {
		t.Errorf("chunk lengths = %d/%d/%d, want 100/100/50",
			len(got[0]), len(got[1]), len(got[2]))
	}
}

func TestChunkTextChunksStayWithinLimit(t *testing.T) {
	text := strings.Repeat("para one\npara two\n", 800)
	for _, c := range chunkText(text, maxMessageLen) {
		if len(c) > maxMessageLen {
			t.Fatalf("chunk of %d chars exceeds the limit", len(c))
		}
	}
}

func TestChunkTextRechunkingIsStable(t *testing.T) {
	text := strings.Repeat("line of text\n", 1000)
	first := chunkText(text, maxMessageLen)
	for i, c := range first {
		again := chunkText(c, maxMessageLen)
		if len(again) != 1 || again[0] != c {
			t.Errorf("chunk %d changed when re-chunked", i)
		}
	}
}

func TestChunkTextCountsCharactersNotBytes(t *testing.T) {
	// 2000 characters but 6000 bytes: a single chunk under a 4000-character limit.
	text := strings.Repeat("€", 2000)
	got := chunkText(text, 4000)
	if len(got) != 1 || got[0] != text {
		t.Fatalf("chunkText = %d chunks, want the text unsplit", len(got))
	}
}

func TestChunkTextMultibyteCutsOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("€", 5000)
	got := chunkText(text, 4000)
	if len(got) != 2 {
		t.Fatalf("chunkText = %d chunks, want 2", len(got))
	}
	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
		if n := utf8.RuneCountInString(c); n > 4000 {
			t.Errorf("chunk %d = %d characters, want <= 4000", i, n)
		}
	}
	if got[0]+got[1] != text {
		t.Error("chunks do not reassemble into the original text")
	}
}

func TestPhotoCaption(t *testing.T) {
	if got := photoCaption("gpt-image-1", ""); got != "Model: gpt-image-1" {
		t.Errorf("caption without usage = %q", got)
	}
	got := photoCaption("gpt-image-1", "Tokens: 15 (input: 10, output: 5)")
	if got != "Model: gpt-image-1\nTokens: 15 (input: 10, output: 5)" {
		t.Errorf("caption with usage = %q", got)
	}
}

func TestModeSwitchTextCoversEveryMode(t *testing.T) {
	for mode := range modeRules {
		if modeSwitchText(mode) == "" {
			t.Errorf("no confirmation text for mode %q", mode)
		}
	}
}
