// Package main builds a card deck for one language pair with Gemini and
// checks the audio clips the deck references.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phrazzld/bespoke/internal/config"
	"github.com/phrazzld/bespoke/internal/generation"
	"github.com/phrazzld/bespoke/internal/language"
	"github.com/phrazzld/bespoke/internal/platform/audiofs"
	"github.com/phrazzld/bespoke/internal/platform/cardstore"
	"github.com/phrazzld/bespoke/internal/platform/gemini"
	"github.com/phrazzld/bespoke/internal/platform/logger"
	"github.com/phrazzld/bespoke/internal/redact"
	"github.com/spf13/afero"
)

// errCheckFailed is returned when the deck references missing audio.
var errCheckFailed = errors.New("deck check found missing audio")

type options struct {
	configPath string
	target     string
	native     string
	maxCalls   int
	checkOnly  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to a config file (default: ./config.yaml if present)")
	flag.StringVar(&opts.target, "target", "", "code of the language to learn (required)")
	flag.StringVar(&opts.native, "native", "en", "code of the learner's native language")
	flag.IntVar(&opts.maxCalls, "max-calls", 0, "stop after this many sentence requests (0: no limit)")
	flag.BoolVar(&opts.checkOnly, "check", false, "only check the deck's audio references")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		slog.Error("generate failed", slog.String("error", redact.Error(err)))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	cards, err := cardstore.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := cards.Close(); err != nil {
			log.Error("failed to close card store", slog.String("error", redact.Error(err)))
		}
	}()
	if err := cards.Migrate(ctx, cardstore.MigrateUp); err != nil {
		return err
	}

	fs := afero.NewOsFs()
	audio, err := audiofs.New(fs, cfg.Audio.Dir, log)
	if err != nil {
		return err
	}

	if !opts.checkOnly {
		if opts.target == "" {
			return errors.New("-target is required")
		}
		if err := cfg.RequireGeminiKey(); err != nil {
			return err
		}
		registry, err := language.LoadRegistry(fs, cfg.Language.DataDir, log)
		if err != nil {
			return err
		}
		client, err := gemini.NewClient(ctx, cfg.LLM, log)
		if err != nil {
			return err
		}
		if _, err := buildDeck(ctx, deckDeps{
			config:   *cfg,
			registry: registry,
			text:     client,
			speech:   client,
			cards:    cards.Cards,
			audio:    audio,
			logger:   log,
		}, opts, out); err != nil {
			return err
		}
	}

	report, err := checkDeck(ctx, cards.Cards, audio, out)
	if err != nil {
		return err
	}
	if len(report.Missing) > 0 {
		return errCheckFailed
	}
	return nil
}

// deckDeps are the collaborators of a deck build.
type deckDeps struct {
	config   config.Config
	registry *language.Registry
	text     generation.TextModel
	speech   generation.Speaker
	cards    cardstore.Store
	audio    generation.AudioStore
	logger   *slog.Logger
}

func buildDeck(ctx context.Context, d deckDeps, opts options, out io.Writer) (generation.BuildReport, error) {
	target, err := d.registry.Get(opts.target)
	if err != nil {
		return generation.BuildReport{}, err
	}
	native, err := d.registry.Get(opts.native)
	if err != nil {
		return generation.BuildReport{}, err
	}
	if target.Code == native.Code {
		return generation.BuildReport{}, fmt.Errorf("target and native language are both %q", target.Code)
	}

	gen := d.config.Generation
	generator := generation.NewCardGenerator(d.text, d.speech, d.audio, d.logger)
	builder := generation.NewDeckBuilder(target, native, d.registry, d.text, generator, d.cards,
		generation.DeckConfig{
			CardsPerUnit: gen.CardsPerUnit,
			CardsPerCall: gen.CardsPerCall,
			Workers:      gen.Workers,
			QueueSize:    gen.QueueSize,
			MaxCalls:     opts.maxCalls,
		}, d.logger)

	report, err := builder.Build(ctx)
	fmt.Fprintf(out, "%s → %s: %d existing, %d created, %d failed, %d duplicate sentences, %d units pending (%d calls in %s)\n",
		target.Code, native.Code, report.Existing, report.Created, report.Failed,
		report.Duplicates, report.Pending, report.Calls, report.Duration.Round(time.Millisecond))
	return report, err
}

func checkDeck(ctx context.Context, cards cardstore.Store, audio generation.AudioStore, out io.Writer) (generation.CheckReport, error) {
	report, err := generation.Check(ctx, cards, audio)
	if err != nil {
		return report, err
	}
	for _, m := range report.Missing {
		fmt.Fprintf(out, "missing %s audio for card %s: %s\n", m.Kind, m.CardID, m.Name)
	}
	fmt.Fprintf(out, "checked %d cards: %d missing clips, %d unused clips\n",
		report.Cards, len(report.Missing), len(report.Unused))
	return report, nil
}
