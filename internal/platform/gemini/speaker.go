package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrazzld/bespoke/internal/generation"
	"google.golang.org/genai"
)

// Speak implements generation.Speaker. The model returns 24kHz 16-bit mono PCM.
func (c *Client) Speak(ctx context.Context, text string, slowly bool) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPrompt
	}
	instruction := "Speak like a voice actor: "
	if slowly {
		instruction = "Speak slowly: "
	}

	gcfg := &genai.GenerateContentConfig{
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.voice()},
			},
		},
	}
	gcfg.ResponseModalities = append(gcfg.ResponseModalities, "AUDIO")

	resp, err := c.generate(ctx, "speak", c.config.SpeechModel, instruction+text, gcfg)
	if err != nil {
		return nil, err
	}

	pcm := responseAudio(resp)
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: no audio in response", generation.ErrInvalidResponse)
	}
	return pcm, nil
}
