package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultImageSize = "1536x1024"
	dalleImageSize   = "1024x1024"
	defaultQuality   = "high"

	legacyEditModel     = "dall-e-2"
	legacyGenerateModel = "dall-e-2"

	// Prepended to every edit prompt. The image models tend to invent
	// extra subjects unless told not to.
	editPreamble = "Critically important: use ONLY the attached images. " +
		"Do not add new people, faces, or objects that are not in them. " +
		"Follow the instruction exactly, without deviation.\n\n"
)

// api is the slice of the OpenAI client the backend uses. Narrow so tests
// can substitute a scripted fake.
type api interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
	CreateEditImage(ctx context.Context, req openai.ImageEditRequest) (openai.ImageResponse, error)
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Client talks to the OpenAI API on behalf of the bot.
type Client struct {
	api api
}

// New returns a Client authenticated with the given API key.
func New(apiKey string) *Client {
	return &Client{api: openai.NewClient(apiKey)}
}

// NewWithAPI wires a custom api implementation. Used by tests.
func NewWithAPI(a api) *Client {
	return &Client{api: a}
}

// Edit sends the images and instruction to the image edit endpoint and
// returns the resulting PNG bytes plus an optional usage label. A batch of
// several images is merged onto one canvas first; dall-e-2 only ever sees
// the first image and a 1024x1024 output size.
func (c *Client) Edit(ctx context.Context, images [][]byte, prompt, model string) ([]byte, string, error) {
	if len(images) == 0 {
		return nil, "", &ValidationError{Message: "Send an image first, then the text instruction."}
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, "", &ValidationError{Message: "The instruction text cannot be empty."}
	}

	size := defaultImageSize
	if model == legacyEditModel {
		images = images[:1]
		size = dalleImageSize
	}

	payload, err := preparePayload(images)
	if err != nil {
		log.Printf("backend: prepare edit payload: %v", err)
		return nil, "", &ValidationError{Message: "Unsupported or corrupted image file. Send a PNG, JPEG, or WEBP."}
	}

	req := openai.ImageEditRequest{
		Image:  openai.WrapReader(bytes.NewReader(payload), "image.png", "image/png"),
		Prompt: editPreamble + prompt,
		Model:  model,
		N:      1,
		Size:   size,
	}
	// dall-e-2 returns URLs unless asked for base64; the newer image
	// models reject the parameter and always return base64.
	if model == legacyEditModel {
		req.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	}

	resp, err := c.api.CreateEditImage(ctx, req)
	if err != nil {
		return nil, "", wrapAPIError("edit image", err)
	}
	data, err := firstImage(resp)
	if err != nil {
		return nil, "", err
	}
	return data, "", nil
}

// Generate creates an image from text alone.
func (c *Client) Generate(ctx context.Context, prompt, model string) ([]byte, string, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, "", &ValidationError{Message: "Describe the image you want to generate."}
	}

	req := openai.ImageRequest{
		Prompt: prompt,
		Model:  model,
		N:      1,
	}
	if model == legacyGenerateModel {
		req.Size = dalleImageSize
		req.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	} else {
		req.Size = defaultImageSize
		req.Quality = defaultQuality
	}

	resp, err := c.api.CreateImage(ctx, req)
	if err != nil {
		return nil, "", wrapAPIError("generate image", err)
	}
	data, err := firstImage(resp)
	if err != nil {
		return nil, "", err
	}
	return data, "", nil
}

// Chat sends the prompt, with an optional attached image, to the chat
// completion endpoint. Returns the reply text and a token usage label.
func (c *Client) Chat(ctx context.Context, prompt, model string, image []byte) (string, string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", "", &ValidationError{Message: "The message text cannot be empty."}
	}

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(image) > 0 {
		mime := sniffMime(image)
		if mime == "" {
			return "", "", &ValidationError{Message: "Unsupported or corrupted image file. Send a PNG, JPEG, or WEBP."}
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image))
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
		}
	} else {
		msg.Content = prompt
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: []openai.ChatCompletionMessage{msg},
	})
	if err != nil {
		return "", "", wrapAPIError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", "", ErrEmptyResult
	}
	return resp.Choices[0].Message.Content, chatUsageLabel(resp.Usage), nil
}

// Embed returns one embedding vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.SmallEmbedding3,
	})
	if err != nil {
		return nil, wrapAPIError("create embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("backend: create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// firstImage extracts the base64 payload of the first image in a response.
func firstImage(resp openai.ImageResponse) ([]byte, error) {
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ErrEmptyResult
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("backend: decode image response: %w", err)
	}
	return data, nil
}

func chatUsageLabel(u openai.Usage) string {
	if u.TotalTokens == 0 {
		return ""
	}
	return fmt.Sprintf("Tokens: %d (input: %d, output: %d)", u.TotalTokens, u.PromptTokens, u.CompletionTokens)
}

// wrapAPIError maps OpenAI errors onto the backend taxonomy. Moderation
// rejections become ModerationError; anything else is wrapped as-is.
func wrapAPIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == "moderation_blocked" {
			return &ModerationError{Detail: apiErr.Message}
		}
	}
	if strings.Contains(err.Error(), "moderation_blocked") {
		return &ModerationError{Detail: err.Error()}
	}
	return fmt.Errorf("backend: %s: %w", op, err)
}
