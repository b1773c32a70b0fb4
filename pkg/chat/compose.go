package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrEmptyMessage is returned when a send is attempted with no text,
	// file or audio pending. The guard rejects locally; no network call.
	ErrEmptyMessage = errors.New("nothing to send")
	// ErrAlreadyRecording is returned when a recording is started while
	// one is in progress.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned when a recording is stopped while none
	// is in progress.
	ErrNotRecording = errors.New("not recording")
)

// Recorder is an opaque audio capture device. Stop must release the device
// regardless of success and return the bytes of the completed recording.
type Recorder interface {
	Start() error
	Stop() ([]byte, error)
}

// Attachment is a file pending on the composer.
type Attachment struct {
	Name string
	MIME string
	Data []byte
}

// Outbound is a prepared send payload. Binary payloads are already encoded
// into their transportable string representation.
type Outbound struct {
	Content  string
	FileURL  string
	AudioURL string
}

// Composer turns user input into outbound payloads. At most one attachment
// kind is pending at a time: free text, one file, or one recorded audio
// blob; selecting one clears the others.
type Composer struct {
	recorder Recorder

	mu        sync.Mutex
	text      string
	file      *Attachment
	audio     []byte
	recording bool
}

func NewComposer(recorder Recorder) *Composer {
	return &Composer{recorder: recorder}
}

// SetText replaces the free-text draft. Attachments are left alone so a
// caption-style marker can coexist in the input affordance, matching the
// file-selection flow.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

// Text returns the current draft text.
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// AttachFile makes file the pending payload, clearing any pending audio and
// setting the draft to the file marker.
func (c *Composer) AttachFile(file Attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = &file
	c.audio = nil
	c.text = fmt.Sprintf("%s %s", FileMarker, file.Name)
}

// StartRecording begins an audio capture.
func (c *Composer) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording {
		return ErrAlreadyRecording
	}
	if err := c.recorder.Start(); err != nil {
		// Denied capture permission leaves the composer idle.
		return fmt.Errorf("start recording: %w", err)
	}
	c.recording = true
	return nil
}

// StopRecording ends the capture and makes the recorded blob the pending
// payload, clearing any pending file. The capture device is released even
// when it reports an error.
func (c *Composer) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recording {
		return ErrNotRecording
	}
	c.recording = false
	blob, err := c.recorder.Stop()
	if err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}
	c.audio = blob
	c.file = nil
	c.text = VoiceContent
	return nil
}

// Recording reports whether a capture is in progress.
func (c *Composer) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Prepare assembles the outbound payload: a pending file becomes an encoded
// file reference with marker content, pending audio becomes an encoded audio
// reference (stopping any active recording first), otherwise the trimmed
// draft text is the payload. An empty result is rejected with
// ErrEmptyMessage.
func (c *Composer) Prepare() (Outbound, error) {
	c.mu.Lock()
	recording := c.recording
	c.mu.Unlock()
	if recording {
		if err := c.StopRecording(); err != nil {
			return Outbound{}, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file != nil {
		return Outbound{
			Content: fmt.Sprintf("%s %s", FileMarker, c.file.Name),
			FileURL: dataURL(c.file.MIME, c.file.Data),
		}, nil
	}
	if len(c.audio) > 0 {
		return Outbound{
			Content:  VoiceContent,
			AudioURL: dataURL("audio/webm", c.audio),
		}, nil
	}
	if text := strings.TrimSpace(c.text); text != "" {
		return Outbound{Content: text}, nil
	}
	return Outbound{}, ErrEmptyMessage
}

// Reset clears all pending state after a successful send. On failure the
// caller leaves the composer untouched so the user can retry without
// re-selecting the attachment.
func (c *Composer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = ""
	c.file = nil
	c.audio = nil
}

// dataURL encodes bytes into the transportable representation the backend
// stores verbatim, mirroring a browser FileReader data URL.
func dataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
