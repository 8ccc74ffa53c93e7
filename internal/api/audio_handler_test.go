package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/phrazzld/bespoke/internal/api"
	"github.com/phrazzld/bespoke/internal/platform/audiofs"
	"github.com/phrazzld/bespoke/internal/service/session"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockAudioReader mocks the AudioReader interface
type mockAudioReader struct {
	mock.Mock
}

func (m *mockAudioReader) Read(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func TestAudioHandler(t *testing.T) {
	t.Parallel()

	audio, err := audiofs.New(afero.NewMemMapFs(), "audio", nil)
	require.NoError(t, err)
	require.NoError(t, audio.Save(context.Background(), "abc.wav", []byte{1, 0, 2, 0}))

	sessions := api.NewSessionHandler(func() *session.Controller { return nil }, api.SessionDefaults{}, nil)
	h := api.NewRouter(api.RouterConfig{Sessions: sessions, Audio: api.NewAudioHandler(audio, nil)})

	w := do(t, h, http.MethodGet, "/api/audio/abc.wav", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", w.Body.String()[:4])
	assert.Equal(t, 44+4, w.Body.Len())

	w = do(t, h, http.MethodGet, "/api/audio/missing.wav", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/api/audio/notes.txt", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewAudioHandlerPanicsWithoutReader(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { api.NewAudioHandler(nil, nil) })
}

func TestAudioHandler_ReadFailure(t *testing.T) {
	t.Parallel()

	reader := new(mockAudioReader)
	reader.On("Read", mock.Anything, "abc.wav").Return(nil, errors.New("disk on fire"))

	sessions := api.NewSessionHandler(func() *session.Controller { return nil }, api.SessionDefaults{}, nil)
	h := api.NewRouter(api.RouterConfig{Sessions: sessions, Audio: api.NewAudioHandler(reader, nil)})

	w := do(t, h, http.MethodGet, "/api/audio/abc.wav", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
	reader.AssertExpectations(t)
}
