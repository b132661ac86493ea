// Package generator produces story continuations and illustrations with a
// hosted model. It mirrors the degradation contract of the remote generation
// client: callers always receive three usable options and an image, never an
// error.
package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"

	adventure "github.com/yearone-io/story-adventure"
	"github.com/yearone-io/story-adventure/client"
)

var tracer = otel.Tracer("generator")

const optionsSystemPrompt = `You are a collaborative storyteller. Given the story so far, ` +
	`propose exactly 3 short continuations, each a single sentence of at most 100 characters. ` +
	`Respond with a JSON object: {"options": ["...", "...", "..."]}. No other text.`

const imagePromptPrefix = "An evocative storybook illustration of the following scene, " +
	"painterly, soft light, no text: "

// mysteriousOpenings seeds brand-new stories when there is no history to
// continue from.
var mysteriousOpenings = []string{
	"The old lighthouse keeper swore the light had been off for years, yet there it was, burning.",
	"Every door in the house was locked from the inside, and the family was gone.",
	"The message in the bottle was dated three days from now.",
	"Nobody in the village could remember the name of the mountain, though they saw it every day.",
	"The cartographer's final map showed an island that appeared only in winter.",
}

// Openings returns a copy of the canned story starters.
func Openings() []string {
	out := make([]string, len(mysteriousOpenings))
	copy(out, mysteriousOpenings)
	return out
}

// OpenAI generates continuations and illustrations through the OpenAI API.
type OpenAI struct {
	client     *openai.Client
	textModel  string
	imageModel string
	logger     zerolog.Logger
}

func NewOpenAI(apiKey, textModel, imageModel string, logger zerolog.Logger) *OpenAI {
	if textModel == "" {
		textModel = openai.GPT4oMini
	}
	if imageModel == "" {
		imageModel = openai.CreateImageModelDallE3
	}
	return &OpenAI{
		client:     openai.NewClient(apiKey),
		textModel:  textModel,
		imageModel: imageModel,
		logger:     logger.With().Str("module", "generator").Logger(),
	}
}

type optionsPayload struct {
	Options []string `json:"options"`
}

// GenerateOptions returns exactly three continuations for the story so far.
// Model failures and malformed completions fall back to the canned list.
func (g *OpenAI) GenerateOptions(ctx context.Context, history []string) []string {
	ctx, span := tracer.Start(ctx, "Generator.OpenAI.GenerateOptions")
	defer span.End()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.textModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: optionsSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: historyPrompt(history)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		span.RecordError(err)
		g.logger.Warn().Err(err).Msg("option completion failed, using fallback")
		return client.FallbackOptions()
	}
	if len(resp.Choices) == 0 {
		g.logger.Warn().Msg("empty completion, using fallback")
		return client.FallbackOptions()
	}

	var payload optionsPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		g.logger.Warn().Err(err).Msg("undecodable completion, using fallback")
		return client.FallbackOptions()
	}
	if len(payload.Options) < adventure.OptionCount {
		g.logger.Warn().Int("count", len(payload.Options)).Msg("short completion, using fallback")
		return client.FallbackOptions()
	}

	options := make([]string, adventure.OptionCount)
	for i := 0; i < adventure.OptionCount; i++ {
		opt := strings.TrimSpace(payload.Options[i])
		if opt == "" || utf8.RuneCountInString(opt) > adventure.MaxOptionLength {
			g.logger.Warn().Str("option", opt).Msg("unusable option, using fallback")
			return client.FallbackOptions()
		}
		options[i] = opt
	}
	return options
}

// GenerateImage illustrates the latest scene. Failures yield the bundled
// placeholder.
func (g *OpenAI) GenerateImage(ctx context.Context, history []string) []byte {
	ctx, span := tracer.Start(ctx, "Generator.OpenAI.GenerateImage")
	defer span.End()

	scene := "an unwritten story waiting to begin"
	if len(history) > 0 {
		scene = history[len(history)-1]
	}

	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Model:          g.imageModel,
		Prompt:         imagePromptPrefix + scene,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		span.RecordError(err)
		g.logger.Warn().Err(err).Msg("image generation failed, using placeholder")
		return client.PlaceholderImage()
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		g.logger.Warn().Msg("empty image response, using placeholder")
		return client.PlaceholderImage()
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil || len(data) == 0 {
		g.logger.Warn().Err(err).Msg("undecodable image payload, using placeholder")
		return client.PlaceholderImage()
	}
	return data
}

func historyPrompt(history []string) string {
	if len(history) == 0 {
		return "The story has not started. Propose three opening scenes."
	}
	var b strings.Builder
	b.WriteString("The story so far:\n")
	for _, line := range history {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("Propose the next three continuations.")
	return b.String()
}
