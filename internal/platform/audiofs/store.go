// Package audiofs stores synthesized speech as WAV files on an afero
// filesystem.
package audiofs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// DefaultSampleRate is the rate of the PCM produced by the speech models.
const DefaultSampleRate = 24000

// Common errors
var (
	ErrInvalidName = errors.New("invalid audio name")
	ErrNotFound    = errors.New("audio not found")
)

// Store keeps one WAV file per clip in a directory.
type Store struct {
	fs         afero.Fs
	dir        string
	sampleRate int
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithSampleRate sets the sample rate written to WAV headers.
func WithSampleRate(rate int) Option {
	return func(s *Store) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(fsys afero.Fs, dir string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if fsys == nil {
		return nil, errors.New("filesystem cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory %s: %w", dir, err)
	}
	s := &Store{
		fs:         fsys,
		dir:        dir,
		sampleRate: DefaultSampleRate,
		logger:     logger.With(slog.String("component", "audio_store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save writes 16-bit mono PCM as a WAV file. The file is written under a
// temporary name and renamed so readers never see a partial clip.
func (s *Store) Save(ctx context.Context, name string, pcm []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := writeWAV(&buf, pcm, s.sampleRate); err != nil {
		return err
	}

	final := path.Join(s.dir, name)
	tmp := final + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, final); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to store %s: %w", name, err)
	}

	s.logger.DebugContext(ctx, "audio saved",
		slog.String("name", name),
		slog.Int("bytes", buf.Len()))
	return nil
}

// Exists reports whether a clip is stored.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, path.Join(s.dir, name))
}

// List returns the names of all stored clips, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list audio directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wav") {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// Read returns the WAV file of a clip.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func validateName(name string) error {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) ||
		!strings.HasSuffix(name, ".wav") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
