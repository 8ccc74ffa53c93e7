package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/bespoke/internal/config"
	"github.com/phrazzld/bespoke/internal/generation"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/redact"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

// voices are the prebuilt voices picked from when no voice is configured.
var voices = []string{"Aoede", "Puck", "Charon", "Kore", "Fenrir", "Leda", "Orus", "Zephyr"}

// contentGenerator is the part of genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Client talks to the Gemini API. It implements generation.TextModel and
// generation.Speaker.
type Client struct {
	models  contentGenerator
	config  config.LLMConfig
	prompts *prompts
	logger  *slog.Logger
}

var (
	_ generation.TextModel = (*Client)(nil)
	_ generation.Speaker   = (*Client)(nil)
)

// NewClient creates a Client for the Gemini API.
//
// Returns an error wrapping generation.ErrInvalidConfig if the API key or a
// model name is missing, or if the genai client cannot be created.
func NewClient(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (*Client, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, redact.Error(err))
	}

	return newClient(client.Models, cfg, log)
}

func newClient(models contentGenerator, cfg config.LLMConfig, log *slog.Logger) (*Client, error) {
	if models == nil {
		return nil, errors.New("models cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	p, err := loadPrompts()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrInvalidConfig, err)
	}
	return &Client{
		models:  models,
		config:  cfg,
		prompts: p,
		logger: log.With(
			slog.String("component", "gemini"),
			slog.String("text_model", cfg.TextModel)),
	}, nil
}

func validateConfig(cfg config.LLMConfig) error {
	switch {
	case cfg.GeminiAPIKey == "":
		return fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	case cfg.TextModel == "":
		return fmt.Errorf("%w: text model cannot be empty", generation.ErrInvalidConfig)
	case cfg.SpeechModel == "":
		return fmt.Errorf("%w: speech model cannot be empty", generation.ErrInvalidConfig)
	case cfg.MaxRetries < 0:
		return fmt.Errorf("%w: max retries cannot be negative", generation.ErrInvalidConfig)
	}
	return nil
}

// backoff returns the retry policy: exponential from the configured base
// delay, with 50% jitter, for at most MaxRetries retries.
func (c *Client) backoff() retry.Backoff {
	base := c.config.RetryBaseDelay
	if base <= 0 {
		base = 2 * time.Second
	}
	return retry.WithMaxRetries(uint64(c.config.MaxRetries),
		retry.WithJitterPercent(50, retry.NewExponential(base)))
}

// generate calls the model and validates the response, retrying transient
// failures. Content blocks and malformed responses are not retried.
func (c *Client) generate(
	ctx context.Context,
	op string,
	model string,
	prompt string,
	gcfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	log := logger.FromContextOrDefault(ctx, c.logger).With(
		slog.String("operation", op),
		slog.String("model", model))

	var (
		resp    *genai.GenerateContentResponse
		attempt int
	)
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		log.DebugContext(ctx, "calling Gemini API", slog.Int("attempt", attempt))

		r, err := c.models.GenerateContent(ctx, model, genai.Text(prompt), gcfg)
		if err == nil {
			err = checkResponse(r)
		}
		if err == nil {
			resp = r
			return nil
		}
		if isTransient(err) {
			log.WarnContext(ctx, "Gemini API call failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", redact.Error(err)))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		log.ErrorContext(ctx, "Gemini API call failed",
			slog.Int("attempts", attempt),
			slog.String("error", redact.Error(err)))
		if isTransient(err) {
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", generation.ErrTransientFailure, op, attempt, err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

// checkResponse rejects responses without usable content.
func checkResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("%w: prompt blocked: %s", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return fmt.Errorf("%w: finish reason %s", generation.ErrContentBlocked, candidate.FinishReason)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}
	return nil
}

// isTransient reports whether a failed call may succeed when retried.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, generation.ErrContentBlocked),
		errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// responseAudio concatenates the inline audio parts of the first candidate.
func responseAudio(resp *genai.GenerateContentResponse) []byte {
	var pcm []byte
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil {
			pcm = append(pcm, part.InlineData.Data...)
		}
	}
	return pcm
}

// voice returns the configured voice or a random prebuilt one.
func (c *Client) voice() string {
	if c.config.Voice != "" {
		return c.config.Voice
	}
	return voices[rand.IntN(len(voices))]
}
