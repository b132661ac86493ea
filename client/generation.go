package client

import (
	"context"
	"strings"
	"unicode/utf8"

	adventure "github.com/yearone-io/story-adventure"
)

// fallbackOptions is served whenever the generation service misbehaves. The
// adapter never surfaces generation failures to callers.
var fallbackOptions = []string{
	"You encounter a mysterious stranger offering help.",
	"A sudden storm forces you to seek shelter in an abandoned structure.",
	"You discover an unusual artifact that seems to react to your touch.",
}

// placeholderPNG is a 1x1 transparent PNG substituted when image generation
// fails or returns an empty body.
var placeholderPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// FallbackOptions returns a copy of the canned continuation list.
func FallbackOptions() []string {
	out := make([]string, len(fallbackOptions))
	copy(out, fallbackOptions)
	return out
}

// PlaceholderImage returns a copy of the bundled placeholder.
func PlaceholderImage() []byte {
	out := make([]byte, len(placeholderPNG))
	copy(out, placeholderPNG)
	return out
}

type optionsRequest struct {
	History []string `json:"history"`
}

type optionsResponse struct {
	Options []string `json:"options"`
}

// GenerateOptions asks the generation service for the next continuations.
// Any transport error, non-2xx response, or malformed payload is replaced by
// the canned fallback; callers never see an error.
func (c *Client) GenerateOptions(ctx context.Context, history []string) []string {
	var resp optionsResponse
	err := c.postJSON(ctx, c.endpoints.Generation+"/generate-options", optionsRequest{History: history}, &resp)
	if err != nil {
		c.logger.Warn().Err(err).Msg("option generation failed, using fallback")
		return FallbackOptions()
	}

	if len(resp.Options) < adventure.OptionCount {
		c.logger.Warn().Int("count", len(resp.Options)).Msg("malformed option payload, using fallback")
		return FallbackOptions()
	}

	options := resp.Options[:adventure.OptionCount]
	for _, opt := range options {
		if strings.TrimSpace(opt) == "" || utf8.RuneCountInString(opt) > adventure.MaxOptionLength {
			c.logger.Warn().Str("option", opt).Msg("malformed option payload, using fallback")
			return FallbackOptions()
		}
	}

	out := make([]string, adventure.OptionCount)
	copy(out, options)
	return out
}

// GenerateImage asks the generation service for an illustration of the story
// so far. Failures and empty bodies yield the bundled placeholder.
func (c *Client) GenerateImage(ctx context.Context, history []string) []byte {
	data, contentType, err := c.postRaw(ctx, c.endpoints.Generation+"/generate-image", optionsRequest{History: history})
	if err != nil {
		c.logger.Warn().Err(err).Msg("image generation failed, using placeholder")
		return PlaceholderImage()
	}

	if len(data) == 0 || !strings.HasPrefix(contentType, "image/") {
		c.logger.Warn().Str("contentType", contentType).Int("bytes", len(data)).
			Msg("malformed image payload, using placeholder")
		return PlaceholderImage()
	}

	return data
}
