package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/redact"
	"golang.org/x/sync/errgroup"
)

// Audio clip kinds, used as file name suffixes.
const (
	AudioTarget = ""
	AudioSlow   = "slow"
	AudioNative = "native"
)

// AudioName returns the file name of a card's audio clip of the given kind.
func AudioName(cardID, kind string) string {
	if kind == AudioTarget {
		return cardID + ".wav"
	}
	return cardID + "_" + kind + ".wav"
}

// CardGenerator implements Generator on top of a text model, a speaker and
// an audio store.
type CardGenerator struct {
	text   TextModel
	speech Speaker
	audio  AudioStore
	logger *slog.Logger
}

var _ Generator = (*CardGenerator)(nil)

// NewCardGenerator creates a CardGenerator.
// It panics if any of the required dependencies are nil.
func NewCardGenerator(text TextModel, speech Speaker, audio AudioStore, log *slog.Logger) *CardGenerator {
	if text == nil {
		panic("text model cannot be nil")
	}
	if speech == nil {
		panic("speaker cannot be nil")
	}
	if audio == nil {
		panic("audio store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &CardGenerator{
		text:   text,
		speech: speech,
		audio:  audio,
		logger: log.With(slog.String("component", "card_generator")),
	}
}

// Generate implements Generator.
//
// Translation, phonetics and the three audio clips are produced
// concurrently. A failed translation fails the card. A failed target clip
// drops listen and speak; a failed slow or native clip and a failed
// transcription only drop that field.
func (g *CardGenerator) Generate(ctx context.Context, req Request) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	sentence := strings.TrimSpace(req.Sentence)
	if sentence == "" {
		return nil, fmt.Errorf("%w: sentence is empty", ErrInvalidRequest)
	}
	if req.TargetLanguage.Code == "" || req.NativeLanguage.Code == "" {
		return nil, fmt.Errorf("%w: languages are required", ErrInvalidRequest)
	}
	if !req.Difficulty.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, domain.ErrInvalidDifficulty)
	}

	id := domain.CardID(req.TargetLanguage.Code, sentence)
	log = log.With(slog.String("card_id", id))

	var (
		translation string
		phonetic    string
		audioRef    string
		slowRef     string
		nativeRef   string
	)

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		var err error
		translation, err = g.text.Translate(gctx, sentence, req.NativeLanguage)
		if err != nil {
			return fmt.Errorf("%w: translate: %w", ErrGenerationFailed, err)
		}
		translation = strings.TrimSpace(translation)
		if translation == "" {
			return fmt.Errorf("%w: empty translation", ErrGenerationFailed)
		}
		nativeRef = g.speak(gctx, log, translation, false, AudioName(id, AudioNative))
		return nil
	})
	grp.Go(func() error {
		audioRef = g.speak(gctx, log, sentence, false, AudioName(id, AudioTarget))
		return nil
	})
	grp.Go(func() error {
		slowRef = g.speak(gctx, log, sentence, true, AudioName(id, AudioSlow))
		return nil
	})
	grp.Go(func() error {
		if req.TargetLanguage.PhoneticSystem == "" {
			return nil
		}
		p, err := g.text.ToPhonetic(gctx, sentence, req.TargetLanguage)
		if err != nil {
			log.WarnContext(gctx, "phonetic transcription failed, dropping phonetic",
				slog.String("error", redact.Error(err)))
			return nil
		}
		phonetic = strings.TrimSpace(p)
		return nil
	})

	if err := grp.Wait(); err != nil {
		log.ErrorContext(ctx, "card generation failed", slog.String("error", redact.Error(err)))
		return nil, err
	}

	if audioRef == "" {
		// a slow clip alone cannot back listen or speak
		slowRef = ""
	}

	content := domain.CardContent{
		Sentence:       sentence,
		NativeSentence: translation,
		Phonetic:       phonetic,
		AudioRef:       audioRef,
		SlowAudioRef:   slowRef,
		NativeAudioRef: nativeRef,
		UnitTags:       req.UnitTags,
		Notes:          req.Notes,
	}

	card, err := domain.NewCard(req.TargetLanguage.Code, req.NativeLanguage.Code, req.Difficulty, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	log.DebugContext(ctx, "card generated",
		slog.String("modes", card.Modes.String()),
		slog.Int("items", len(card.VocabularyItems)))
	return card, nil
}

// speak synthesizes text and saves it under name. It returns the name, or
// an empty string if either step failed.
func (g *CardGenerator) speak(ctx context.Context, log *slog.Logger, text string, slowly bool, name string) string {
	pcm, err := g.speech.Speak(ctx, text, slowly)
	if err == nil && len(pcm) == 0 {
		err = fmt.Errorf("%w: empty audio", ErrInvalidResponse)
	}
	if err == nil {
		err = g.audio.Save(ctx, name, pcm)
	}
	if err != nil {
		log.WarnContext(ctx, "speech synthesis failed, dropping audio",
			slog.String("audio", name),
			slog.String("error", redact.Error(err)))
		return ""
	}
	return name
}
