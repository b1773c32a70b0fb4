package chat

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRecorder struct {
	startErr error
	stopErr  error
	blob     []byte
	started  bool
	released bool
}

func (r *mockRecorder) Start() error {
	if r.startErr != nil {
		return r.startErr
	}
	r.started = true
	return nil
}

func (r *mockRecorder) Stop() ([]byte, error) {
	r.released = true
	return r.blob, r.stopErr
}

func TestComposerText(t *testing.T) {
	c := NewComposer(&mockRecorder{})

	t.Run("empty draft is rejected locally", func(t *testing.T) {
		c.SetText("   ")
		_, err := c.Prepare()
		assert.ErrorIs(t, err, ErrEmptyMessage)
	})

	t.Run("trims free text", func(t *testing.T) {
		c.SetText("  hello \n")
		out, err := c.Prepare()
		require.NoError(t, err)
		assert.Equal(t, Outbound{Content: "hello"}, out)
	})
}

func TestComposerFile(t *testing.T) {
	c := NewComposer(&mockRecorder{})
	c.AttachFile(Attachment{Name: "report.pdf", MIME: "application/pdf", Data: []byte("pdf-bytes")})

	out, err := c.Prepare()
	require.NoError(t, err)
	assert.Equal(t, "[File] report.pdf", out.Content)
	assert.True(t, strings.HasPrefix(out.FileURL, "data:application/pdf;base64,"))
	assert.Empty(t, out.AudioURL)

	encoded := strings.TrimPrefix(out.FileURL, "data:application/pdf;base64,")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf-bytes"), decoded)

	t.Run("pending state survives a failed send", func(t *testing.T) {
		// Caller does not Reset on failure.
		again, err := c.Prepare()
		require.NoError(t, err)
		assert.Equal(t, out, again)
	})

	t.Run("reset clears pending state", func(t *testing.T) {
		c.Reset()
		_, err := c.Prepare()
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.Empty(t, c.Text())
	})
}

func TestComposerAudio(t *testing.T) {
	t.Run("stop makes the blob pending and clears the file", func(t *testing.T) {
		rec := &mockRecorder{blob: []byte("audio-bytes")}
		c := NewComposer(rec)
		c.AttachFile(Attachment{Name: "f.txt", Data: []byte("x")})

		require.NoError(t, c.StartRecording())
		assert.True(t, c.Recording())
		require.NoError(t, c.StopRecording())
		assert.False(t, c.Recording())

		out, err := c.Prepare()
		require.NoError(t, err)
		assert.Equal(t, VoiceContent, out.Content)
		assert.True(t, strings.HasPrefix(out.AudioURL, "data:audio/webm;base64,"))
		assert.Empty(t, out.FileURL)
	})

	t.Run("prepare stops an active recording", func(t *testing.T) {
		rec := &mockRecorder{blob: []byte("audio-bytes")}
		c := NewComposer(rec)
		require.NoError(t, c.StartRecording())

		out, err := c.Prepare()
		require.NoError(t, err)
		assert.Equal(t, VoiceContent, out.Content)
		assert.True(t, rec.released)
	})

	t.Run("denied permission returns to idle", func(t *testing.T) {
		rec := &mockRecorder{startErr: errors.New("permission denied")}
		c := NewComposer(rec)
		assert.Error(t, c.StartRecording())
		assert.False(t, c.Recording())
	})

	t.Run("device released even when stop fails", func(t *testing.T) {
		rec := &mockRecorder{stopErr: errors.New("device error")}
		c := NewComposer(rec)
		require.NoError(t, c.StartRecording())
		assert.Error(t, c.StopRecording())
		assert.True(t, rec.released)
		assert.False(t, c.Recording())
	})

	t.Run("double start and double stop", func(t *testing.T) {
		c := NewComposer(&mockRecorder{})
		require.NoError(t, c.StartRecording())
		assert.ErrorIs(t, c.StartRecording(), ErrAlreadyRecording)
		require.NoError(t, c.StopRecording())
		assert.ErrorIs(t, c.StopRecording(), ErrNotRecording)
	})
}

func TestComposerExclusivity(t *testing.T) {
	rec := &mockRecorder{blob: []byte("a")}
	c := NewComposer(rec)

	require.NoError(t, c.StartRecording())
	require.NoError(t, c.StopRecording())

	// Selecting a file clears the pending audio.
	c.AttachFile(Attachment{Name: "f.txt", Data: []byte("x")})
	out, err := c.Prepare()
	require.NoError(t, err)
	assert.NotEmpty(t, out.FileURL)
	assert.Empty(t, out.AudioURL)
}
