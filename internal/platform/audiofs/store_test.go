package audiofs_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/phrazzld/bespoke/internal/platform/audiofs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*audiofs.Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	s, err := audiofs.New(fsys, "audio", nil)
	require.NoError(t, err)
	return s, fsys
}

func TestStore_SaveWritesWAV(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, fsys := newStore(t)

	pcm := []byte{0x01, 0x00, 0xff, 0x7f}
	require.NoError(t, s.Save(ctx, "card.wav", pcm))

	data, err := afero.ReadFile(fsys, "audio/card.wav")
	require.NoError(t, err)
	require.Len(t, data, 44+len(pcm))

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]), "mono")
	assert.Equal(t, uint32(audiofs.DefaultSampleRate), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(data[40:44]))
	assert.Equal(t, pcm, data[44:])

	exists, err := afero.Exists(fsys, "audio/card.wav.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temporary file should be renamed")
}

func TestStore_SampleRateOption(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	s, err := audiofs.New(fsys, "audio", nil, audiofs.WithSampleRate(16000))
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), "a.wav", []byte{0, 0}))
	data, err := afero.ReadFile(fsys, "audio/a.wav")
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(data[28:32]))
}

func TestStore_ExistsListRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, fsys := newStore(t)

	require.NoError(t, s.Save(ctx, "b.wav", []byte{0, 0}))
	require.NoError(t, s.Save(ctx, "a_slow.wav", []byte{0, 0}))
	require.NoError(t, afero.WriteFile(fsys, "audio/notes.txt", []byte("x"), 0o644))

	ok, err := s.Exists(ctx, "b.wav")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "missing.wav")
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_slow.wav", "b.wav"}, names)

	data, err := s.Read(ctx, "b.wav")
	require.NoError(t, err)
	assert.Len(t, data, 46)

	_, err = s.Read(ctx, "missing.wav")
	assert.ErrorIs(t, err, audiofs.ErrNotFound)
}

func TestStore_RejectsInvalidInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newStore(t)

	for _, name := range []string{"", "../escape.wav", "dir/a.wav", "a.mp3", ".hidden.wav"} {
		err := s.Save(ctx, name, []byte{0, 0})
		assert.ErrorIs(t, err, audiofs.ErrInvalidName, "name %q", name)
	}

	err := s.Save(ctx, "odd.wav", []byte{0})
	assert.ErrorIs(t, err, audiofs.ErrOddPCM)
}
