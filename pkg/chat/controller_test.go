package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/designpro/chatkit/pkg/identity"
	"github.com/designpro/chatkit/pkg/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend implements the directory, history and send API slices.
type fakeBackend struct {
	mu          sync.Mutex
	rooms       []rest.Room
	users       []identity.Profile
	history     map[int][]rest.Message
	sendErr     error
	sendCalls   int
	createCalls int
	nextRoomID  int
	nextMsgID   int
}

func (f *fakeBackend) ListRooms(ctx context.Context) ([]rest.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms, nil
}

func (f *fakeBackend) CreateRoom(ctx context.Context, input rest.CreateRoomInput) (*rest.CreateRoomResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.nextRoomID++
	return &rest.CreateRoomResponse{Detail: "created", RoomID: f.nextRoomID}, nil
}

func (f *fakeBackend) ListUsers(ctx context.Context) ([]identity.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users, nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, roomID int) ([]rest.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[roomID], nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, roomID int, input rest.SendMessageInput) (*rest.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextMsgID++
	return &rest.Message{ID: f.nextMsgID, Room: roomID, Sender: 3, Content: input.Content,
		FileURL: input.FileURL, AudioURL: input.AudioURL,
		Timestamp: time.Now().Format(time.RFC3339)}, nil
}

func (f *fakeBackend) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls
}

func newTestController(t *testing.T, ts *wsTestServer, backend *fakeBackend) (*Controller, *recordingNotifier) {
	t.Helper()
	me := identity.User{ID: 3, Role: identity.RoleCustomer, Email: "me@d.com", DisplayName: "Me"}
	notifier := &recordingNotifier{}
	dir := NewDirectory(backend, me)
	session := NewSession(ts.wsBase(), sessionToken(t), backend,
		WithReconnectDelay(50*time.Millisecond))
	rec := NewReconciler(backend, me, notifier)
	comp := NewComposer(&mockRecorder{blob: []byte("a")})
	c := NewController(me, dir, session, rec, comp, notifier, nil)
	t.Cleanup(c.Close)
	return c, notifier
}

func customerRooms() []rest.Room {
	return []rest.Room{{
		ID:       1,
		Customer: identity.Profile{ID: 3, Email: "me@d.com", UserType: "CUS"},
		Designer: identity.Profile{ID: 9, Email: "dee@d.com", UserType: "DES"},
	}}
}

func TestControllerStart(t *testing.T) {
	t.Run("auto-selects the first room and connects to it", func(t *testing.T) {
		ts := newWSTestServer(t)
		backend := &fakeBackend{
			rooms:   customerRooms(),
			history: map[int][]rest.Message{1: {{ID: 10, Room: 1, Content: "hi"}}},
		}
		c, _ := newTestController(t, ts, backend)

		require.NoError(t, c.Start(context.Background()))

		room, ok := c.ActiveRoom()
		require.True(t, ok)
		assert.Equal(t, 1, room.ID)

		url, _ := ts.lastURL.Load().(string)
		assert.Contains(t, url, "/ws/chat/1/")

		msgs := c.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "hi", msgs[0].Content)
	})

	t.Run("empty directory is informational, not an error", func(t *testing.T) {
		ts := newWSTestServer(t)
		c, notifier := newTestController(t, ts, &fakeBackend{history: map[int][]rest.Message{}})

		require.NoError(t, c.Start(context.Background()))
		_, ok := c.ActiveRoom()
		assert.False(t, ok)
		assert.Empty(t, c.Messages())
		assert.Empty(t, notifier.errors)
	})
}

func TestControllerSend(t *testing.T) {
	t.Run("sends and echoes locally", func(t *testing.T) {
		ts := newWSTestServer(t)
		backend := &fakeBackend{rooms: customerRooms(), history: map[int][]rest.Message{}}
		c, _ := newTestController(t, ts, backend)
		require.NoError(t, c.Start(context.Background()))

		c.Composer().SetText("hello")
		require.NoError(t, c.Send(context.Background()))

		msgs := c.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "hello", msgs[0].Content)
		assert.Empty(t, c.Composer().Text())
	})

	t.Run("empty compose never reaches the backend", func(t *testing.T) {
		ts := newWSTestServer(t)
		backend := &fakeBackend{rooms: customerRooms(), history: map[int][]rest.Message{}}
		c, _ := newTestController(t, ts, backend)
		require.NoError(t, c.Start(context.Background()))

		assert.ErrorIs(t, c.Send(context.Background()), ErrEmptyMessage)
		assert.Zero(t, backend.sendCount())
	})

	t.Run("send while disconnected preserves the draft", func(t *testing.T) {
		ts := newWSTestServer(t)
		backend := &fakeBackend{rooms: customerRooms(), history: map[int][]rest.Message{}}
		c, _ := newTestController(t, ts, backend)
		require.NoError(t, c.Start(context.Background()))
		ts.accept(t)

		// Tear the session down but keep the room selected.
		c.session.Disconnect()

		c.Composer().SetText("hello")
		err := c.Send(context.Background())
		assert.ErrorIs(t, err, ErrNotConnected)
		assert.Zero(t, backend.sendCount())
		assert.Equal(t, "hello", c.Composer().Text())
	})

	t.Run("failed send preserves pending state for retry", func(t *testing.T) {
		ts := newWSTestServer(t)
		backend := &fakeBackend{rooms: customerRooms(), history: map[int][]rest.Message{},
			sendErr: errors.New("boom")}
		c, notifier := newTestController(t, ts, backend)
		require.NoError(t, c.Start(context.Background()))

		c.Composer().SetText("hello")
		assert.Error(t, c.Send(context.Background()))
		assert.Equal(t, "hello", c.Composer().Text())
		assert.Contains(t, notifier.errors, "Failed to send message")

		// Retry succeeds once the backend recovers and clears the draft.
		backend.mu.Lock()
		backend.sendErr = nil
		backend.mu.Unlock()
		require.NoError(t, c.Send(context.Background()))
		assert.Empty(t, c.Composer().Text())
	})
}

func TestControllerStartChat(t *testing.T) {
	target := identity.User{ID: 9, Role: identity.RoleDesigner, Email: "dee@d.com"}

	t.Run("reuses the existing room without creating", func(t *testing.T) {
		ts := newWSTestServer(t)
		backend := &fakeBackend{rooms: customerRooms(), history: map[int][]rest.Message{}}
		c, _ := newTestController(t, ts, backend)
		require.NoError(t, c.Start(context.Background()))

		require.NoError(t, c.StartChat(context.Background(), target))
		assert.Zero(t, backend.createCalls)
		room, _ := c.ActiveRoom()
		assert.Equal(t, 1, room.ID)
	})

	t.Run("creates a room for a new pair and selects it", func(t *testing.T) {
		ts := newWSTestServer(t)
		backend := &fakeBackend{history: map[int][]rest.Message{}, nextRoomID: 40}
		c, notifier := newTestController(t, ts, backend)
		require.NoError(t, c.Start(context.Background()))

		require.NoError(t, c.StartChat(context.Background(), target))
		assert.Equal(t, 1, backend.createCalls)
		room, ok := c.ActiveRoom()
		require.True(t, ok)
		assert.Equal(t, 41, room.ID)
		assert.Contains(t, notifier.successes, "Chat started successfully")
	})

	t.Run("rejects an ineligible pair", func(t *testing.T) {
		ts := newWSTestServer(t)
		backend := &fakeBackend{history: map[int][]rest.Message{}}
		c, _ := newTestController(t, ts, backend)
		require.NoError(t, c.Start(context.Background()))

		err := c.StartChat(context.Background(), identity.User{ID: 4, Role: identity.RoleCustomer})
		assert.ErrorIs(t, err, ErrIneligiblePair)
		assert.Zero(t, backend.createCalls)
	})
}

func TestControllerRoomSwitch(t *testing.T) {
	ts := newWSTestServer(t)
	rooms := append(customerRooms(), rest.Room{
		ID:       2,
		Customer: identity.Profile{ID: 3, Email: "me@d.com", UserType: "CUS"},
		Designer: identity.Profile{ID: 12, UserType: "DES"},
	})
	backend := &fakeBackend{rooms: rooms, history: map[int][]rest.Message{
		1: {{ID: 10, Room: 1, Content: "room one"}},
		2: {{ID: 20, Room: 2, Content: "room two"}},
	}}
	c, _ := newTestController(t, ts, backend)
	require.NoError(t, c.Start(context.Background()))
	first := ts.accept(t)

	require.NoError(t, c.SelectRoom(context.Background(), 2))

	// The old connection was closed before the new one opened.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "room two", msgs[0].Content)

	url, _ := ts.lastURL.Load().(string)
	assert.Contains(t, url, "/ws/chat/2/")
}
