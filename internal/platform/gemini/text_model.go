package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/bespoke/internal/generation"
	"github.com/phrazzld/bespoke/internal/language"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"google.golang.org/genai"
)

// tagsResponse is the JSON structure requested from the model for tagging.
type tagsResponse struct {
	Tags []generation.Tag `json:"tags"`
}

// tagsSchema constrains the tagging response to tagsResponse.
var tagsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"tags": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"occurrence":       {Type: genai.TypeString},
					"dictionary_entry": {Type: genai.TypeString},
				},
				Required: []string{"occurrence", "dictionary_entry"},
			},
		},
	},
	Required: []string{"tags"},
}

func (c *Client) textConfig(temperature float32) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{Temperature: &temperature}
}

// CreateSentences implements generation.TextModel.
func (c *Client) CreateSentences(ctx context.Context, req generation.SentenceRequest) ([]string, error) {
	if len(req.Units) == 0 {
		return nil, fmt.Errorf("%w: no units to cover", generation.ErrInvalidRequest)
	}
	prompt, err := render(c.prompts.sentences, promptData{
		Language:    req.Language,
		Units:       req.Units,
		Grammar:     req.Grammar,
		Difficulty:  req.Difficulty,
		Explanation: difficultyExplanations[req.Difficulty],
		SpacedMarks: languagesWithoutSpaces[req.Language.Name],
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.generate(ctx, "create_sentences", c.config.TextModel, prompt, c.textConfig(c.config.Temperature))
	if err != nil {
		return nil, err
	}

	var sentences []string
	for _, line := range strings.Split(responseText(resp), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			sentences = append(sentences, line)
		}
	}
	if len(sentences) == 0 {
		return nil, fmt.Errorf("%w: no sentences in response", generation.ErrInvalidResponse)
	}

	logger.FromContextOrDefault(ctx, c.logger).DebugContext(ctx, "sentences created",
		slog.Int("requested", len(req.Units)),
		slog.Int("received", len(sentences)))
	return sentences, nil
}

// TagSentence implements generation.TextModel.
func (c *Client) TagSentence(
	ctx context.Context,
	sentence string,
	lang language.Language,
	hint []string,
) ([]generation.Tag, error) {
	prompt, err := render(c.prompts.tag, promptData{Language: lang, Sentence: sentence, Hint: hint})
	if err != nil {
		return nil, err
	}

	gcfg := c.textConfig(c.config.Temperature)
	gcfg.ResponseMIMEType = "application/json"
	gcfg.ResponseSchema = tagsSchema

	resp, err := c.generate(ctx, "tag_sentence", c.config.TextModel, prompt, gcfg)
	if err != nil {
		return nil, err
	}

	var parsed tagsResponse
	if err := json.Unmarshal([]byte(responseText(resp)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	return parsed.Tags, nil
}

// Translate implements generation.TextModel.
func (c *Client) Translate(ctx context.Context, sentence string, to language.Language) (string, error) {
	prompt, err := render(c.prompts.translate, promptData{Language: to, Sentence: sentence})
	if err != nil {
		return "", err
	}
	resp, err := c.generate(ctx, "translate", c.config.TextModel, prompt, nil)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

// ToPhonetic implements generation.TextModel.
func (c *Client) ToPhonetic(ctx context.Context, sentence string, lang language.Language) (string, error) {
	if lang.PhoneticSystem == "" {
		return "", nil
	}
	prompt, err := render(c.prompts.phonetic, promptData{Language: lang, Sentence: sentence})
	if err != nil {
		return "", err
	}
	resp, err := c.generate(ctx, "to_phonetic", c.config.TextModel, prompt, nil)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}
