// Package language holds the registry of supported languages and their
// per-tier vocabulary and grammar lists.
//
// A data directory contains one <code>.json definition per language and, for
// languages that can be learned, a <code>/ subdirectory with
// vocabulary_<tier>.txt and grammar_<tier>.txt files holding one entry per
// line. At least the A1 files are required for a language to have data.
package language

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/spf13/afero"
)

// Common errors
var (
	ErrUnknownLanguage = errors.New("unknown language")
	ErrNoLanguageData  = errors.New("language has no vocabulary data")
	ErrInvalidLanguage = errors.New("invalid language definition")
)

// Language describes a spoken and written language.
type Language struct {
	// Name is the English name of the spoken language.
	Name string `json:"name"`
	// WritingSystem is the English name of the written language.
	WritingSystem string `json:"writing_system"`
	// PhoneticSystem is a transcription that makes pronunciation readable,
	// e.g. "Hiragana" for Japanese. Empty when the script is phonetic enough.
	PhoneticSystem string `json:"phonetic_system,omitempty"`
	// Code is unique and used for ids and file names.
	Code string `json:"code_name"`
	// LiveCode is the BCP-47 code used by speech models.
	LiveCode string `json:"live_code"`
}

// Validate checks the required fields.
func (l Language) Validate() error {
	switch {
	case strings.TrimSpace(l.Code) == "":
		return fmt.Errorf("%w: code_name is empty", ErrInvalidLanguage)
	case strings.ContainsAny(l.Code, `/\.`):
		return fmt.Errorf("%w: code_name %q", ErrInvalidLanguage, l.Code)
	case l.Name == "":
		return fmt.Errorf("%w: %s: name is empty", ErrInvalidLanguage, l.Code)
	}
	return nil
}

// Script returns the writing system, falling back to the name.
func (l Language) Script() string {
	if l.WritingSystem != "" {
		return l.WritingSystem
	}
	return l.Name
}

// lists holds the deduplicated per-tier entries of one language.
type lists struct {
	vocabulary map[domain.Difficulty][]string
	grammar    map[domain.Difficulty][]string
}

// Registry resolves language codes and lazily loads their word lists.
type Registry struct {
	fs        afero.Fs
	dir       string
	languages map[string]Language
	logger    *slog.Logger

	mu   sync.Mutex
	data map[string]*lists
}

// LoadRegistry reads every <code>.json definition in dir.
func LoadRegistry(fs afero.Fs, dir string, logger *slog.Logger) (*Registry, error) {
	if fs == nil {
		panic("fs cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		fs:        fs,
		dir:       dir,
		languages: make(map[string]Language),
		logger:    logger.With(slog.String("component", "language_registry")),
		data:      make(map[string]*lists),
	}

	files, err := afero.Glob(fs, path.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list language definitions: %w", err)
	}
	for _, file := range files {
		raw, err := afero.ReadFile(fs, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		var l Language
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidLanguage, file, err)
		}
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		if _, dup := r.languages[l.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate code_name %q", ErrInvalidLanguage, l.Code)
		}
		r.languages[l.Code] = l
	}

	r.logger.Debug("loaded languages", slog.Int("count", len(r.languages)), slog.String("dir", dir))
	return r, nil
}

// Known reports whether code names a registered language.
func (r *Registry) Known(code string) bool {
	_, ok := r.languages[code]
	return ok
}

// Get returns the language registered under code.
func (r *Registry) Get(code string) (Language, error) {
	l, ok := r.languages[code]
	if !ok {
		return Language{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	return l, nil
}

// Codes returns the registered codes in sorted order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.languages))
	for code := range r.languages {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// HasData reports whether the A1 vocabulary and grammar files exist.
func (r *Registry) HasData(code string) bool {
	if !r.Known(code) {
		return false
	}
	for _, prefix := range []string{"vocabulary", "grammar"} {
		ok, err := afero.Exists(r.fs, r.listPath(code, prefix, domain.DifficultyA1))
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// Vocabulary returns the vocabulary introduced at a tier. Entries that
// already appear at a lower tier are omitted.
func (r *Registry) Vocabulary(code string, tier domain.Difficulty) ([]string, error) {
	l, err := r.lists(code)
	if err != nil {
		return nil, err
	}
	return slices.Clone(l.vocabulary[tier]), nil
}

// FullVocabulary returns the vocabulary of every tier, lowest tier first.
func (r *Registry) FullVocabulary(code string) ([]string, error) {
	l, err := r.lists(code)
	if err != nil {
		return nil, err
	}
	var all []string
	for _, tier := range domain.AllDifficulties {
		all = append(all, l.vocabulary[tier]...)
	}
	return all, nil
}

// Grammar returns the grammar concepts introduced at a tier.
func (r *Registry) Grammar(code string, tier domain.Difficulty) ([]string, error) {
	l, err := r.lists(code)
	if err != nil {
		return nil, err
	}
	return slices.Clone(l.grammar[tier]), nil
}

func (r *Registry) lists(code string) (*lists, error) {
	if !r.Known(code) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.data[code]; ok {
		return l, nil
	}
	if !r.HasData(code) {
		return nil, fmt.Errorf("%w: %q", ErrNoLanguageData, code)
	}

	vocabulary, err := r.readAllTiers(code, "vocabulary")
	if err != nil {
		return nil, err
	}
	grammar, err := r.readAllTiers(code, "grammar")
	if err != nil {
		return nil, err
	}
	l := &lists{vocabulary: vocabulary, grammar: grammar}
	r.data[code] = l
	return l, nil
}

// readAllTiers reads one list per tier and drops entries seen at a lower
// tier. Missing tier files yield empty lists.
func (r *Registry) readAllTiers(code, prefix string) (map[domain.Difficulty][]string, error) {
	seen := make(map[string]struct{})
	result := make(map[domain.Difficulty][]string, len(domain.AllDifficulties))
	for _, tier := range domain.AllDifficulties {
		file := r.listPath(code, prefix, tier)
		entries, err := readLines(r.fs, file)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			r.logger.Debug("missing word list", slog.String("file", file))
		}
		var filtered []string
		for _, e := range entries {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			filtered = append(filtered, e)
		}
		result[tier] = filtered
	}
	return result, nil
}

func (r *Registry) listPath(code, prefix string, tier domain.Difficulty) string {
	return path.Join(r.dir, code, fmt.Sprintf("%s_%s.txt", prefix, tier))
}

// readLines returns the trimmed non-empty lines of a file, or nil if the
// file does not exist.
func readLines(fs afero.Fs, file string) ([]string, error) {
	ok, err := afero.Exists(fs, file)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", file, err)
	}
	if !ok {
		return nil, nil
	}
	raw, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
