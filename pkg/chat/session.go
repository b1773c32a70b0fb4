package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/designpro/chatkit/pkg/identity"
	"github.com/designpro/chatkit/pkg/rest"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SessionState is the transport session lifecycle state.
type SessionState int

const (
	StateClosed SessionState = iota
	StateConnecting
	StateOpen
	StateClosedWithError
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedWithError:
		return "closed-with-error"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned by Send when no live connection is open.
	// Messages are never queued across disconnects.
	ErrNotConnected = errors.New("not connected")
	// ErrSessionOpen is returned by Connect while a session is connecting
	// or open. The caller must Disconnect before binding a new room; the
	// session never auto-closes a stale connection.
	ErrSessionOpen = errors.New("session already open, disconnect first")
	// ErrConnectAborted is returned when Disconnect raced a connect in
	// flight and won.
	ErrConnectAborted = errors.New("connect aborted")
)

// reconnectDelay is the fixed wait before the single automatic reconnect
// after an unclean close. One bounded retry is the contract here, not an
// exponential backoff schedule.
const reconnectDelay = 5 * time.Second

// chatMessageFrame is the only inbound frame type dispatched to listeners.
const chatMessageFrame = "chat_message"

type wsFrame struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
	RoomID  int             `json:"room_id"`
}

// SendAPI is the slice of the backend the session uses to send messages.
// Outbound messages travel over REST; the duplex connection is inbound-only.
type SendAPI interface {
	SendMessage(ctx context.Context, roomID int, input rest.SendMessageInput) (*rest.Message, error)
}

// Session owns at most one live duplex connection, bound to one room id at a
// time. Inbound frames are delivered to a single replaceable listener; it is
// the reconciler's job, not the session's, to drop events for other rooms.
type Session struct {
	wsBase string
	token  string
	api    SendAPI
	dialer *websocket.Dialer
	logger *slog.Logger
	delay  time.Duration

	mu           sync.Mutex
	state        SessionState
	roomID       int
	conn         *websocket.Conn
	gen          uuid.UUID
	listener     func(rest.Message)
	onError      func(error)
	retryPending bool
	retryTimer   *time.Timer
}

type SessionOpt func(*Session)

func WithDialer(d *websocket.Dialer) SessionOpt {
	return func(s *Session) { s.dialer = d }
}

func WithLogger(l *slog.Logger) SessionOpt {
	return func(s *Session) { s.logger = l }
}

// WithReconnectDelay overrides the fixed retry delay.
func WithReconnectDelay(d time.Duration) SessionOpt {
	return func(s *Session) { s.delay = d }
}

// NewSession creates a session that dials wsBase (e.g. "wss://api.example.com")
// carrying token as a connection parameter.
func NewSession(wsBase, token string, api SendAPI, opts ...SessionOpt) *Session {
	s := &Session{
		wsBase: wsBase,
		token:  token,
		api:    api,
		dialer: websocket.DefaultDialer,
		logger: slog.Default(),
		delay:  reconnectDelay,
		gen:    uuid.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the room the session is bound to, 0 when none.
func (s *Session) RoomID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Connected reports whether the session is open.
func (s *Session) Connected() bool {
	return s.State() == StateOpen
}

// OnMessage registers the listener invoked for every inbound chat_message
// frame, regardless of room. It replaces any previous listener; there is one
// active subscription per session, cleared on Disconnect.
func (s *Session) OnMessage(fn func(rest.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

// OnError registers a callback invoked when the session closes uncleanly or
// its automatic reconnect fails. It is the caller's retry affordance hook.
func (s *Session) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Connect opens the duplex connection bound to roomID. It fails fast when no
// usable credential is available and refuses to run while another session is
// connecting or open. There is no explicit handshake timeout beyond the
// dialer's own; pass a cancellable ctx to bound it.
func (s *Session) Connect(ctx context.Context, roomID int) error {
	if err := identity.CheckCredential(s.token, time.Now()); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateOpen {
		s.mu.Unlock()
		return ErrSessionOpen
	}
	s.cancelRetryLocked()
	gen := uuid.New()
	s.gen = gen
	s.state = StateConnecting
	s.roomID = roomID
	s.mu.Unlock()

	u := fmt.Sprintf("%s/ws/chat/%d/?token=%s", s.wsBase, roomID, url.QueryEscape(s.token))
	conn, _, err := s.dialer.DialContext(ctx, u, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// Disconnect (or a newer Connect) won the race.
		if conn != nil {
			conn.Close()
		}
		return ErrConnectAborted
	}
	if err != nil {
		s.state = StateClosedWithError
		s.conn = nil
		return fmt.Errorf("connect room %d: %w", roomID, err)
	}

	s.conn = conn
	s.state = StateOpen
	s.logger.Info("transport session open", slog.Int("room", roomID))
	go s.readLoop(conn, roomID, gen)
	return nil
}

// Send posts a message to the bound room. It is only meaningful while the
// session is open; otherwise the send is rejected locally without a network
// call.
func (s *Session) Send(ctx context.Context, content, fileURL, audioURL string) (Message, error) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return Message{}, ErrNotConnected
	}
	roomID := s.roomID
	s.mu.Unlock()

	raw, err := s.api.SendMessage(ctx, roomID, rest.SendMessageInput{
		Content:  content,
		FileURL:  fileURL,
		AudioURL: audioURL,
	})
	if err != nil {
		return Message{}, err
	}
	return NormalizeMessage(*raw, roomID), nil
}

// Disconnect closes the connection if open, cancels any pending reconnect,
// clears the listener and resets the state to Closed. It is idempotent and
// safe to call when already closed.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRetryLocked()
	// Invalidate in-flight connects and the running read loop.
	s.gen = uuid.New()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
		s.conn = nil
	}
	s.listener = nil
	s.state = StateClosed
	s.roomID = 0
}

func (s *Session) cancelRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.retryPending = false
}

func (s *Session) readLoop(conn *websocket.Conn, roomID int, gen uuid.UUID) {
	var readErr error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Error("decode frame", slog.String("error", err.Error()))
			continue
		}
		if frame.Type != chatMessageFrame {
			continue
		}

		var raw rest.Message
		if err := json.Unmarshal(frame.Message, &raw); err != nil {
			// Degrade to a placeholder rather than dropping the event
			// on the floor or crashing downstream.
			raw = rest.Message{Room: frame.RoomID, Content: "Invalid message"}
		}
		if raw.Room == 0 {
			raw.Room = frame.RoomID
		}

		s.mu.Lock()
		listener := s.listener
		stale := s.gen != gen
		s.mu.Unlock()
		if stale {
			return
		}
		if listener != nil {
			listener(raw)
		}
	}

	s.mu.Lock()
	if s.gen != gen || s.state == StateClosed {
		// Local disconnect or a newer session; nothing to clean up.
		s.mu.Unlock()
		return
	}

	s.conn = nil
	s.state = StateClosedWithError

	if websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		// Clean peer close: no automatic retry.
		s.logger.Debug("transport closed by peer", slog.Int("room", roomID))
		s.mu.Unlock()
		return
	}
	s.logger.Error("transport closed uncleanly",
		slog.Int("room", roomID), slog.String("error", readErr.Error()))

	onError := s.onError
	if !s.retryPending {
		s.retryPending = true
		s.retryTimer = time.AfterFunc(s.delay, func() { s.retry(roomID, gen) })
	}
	s.mu.Unlock()

	if onError != nil {
		onError(fmt.Errorf("connection to room %d lost, reconnecting", roomID))
	}
}

// retry performs the single automatic reconnect, bound to the same room id,
// only when no newer session has been opened since the unclean close.
func (s *Session) retry(roomID int, gen uuid.UUID) {
	s.mu.Lock()
	current := s.gen == gen && s.state == StateClosedWithError
	s.retryPending = false
	s.retryTimer = nil
	onError := s.onError
	s.mu.Unlock()
	if !current {
		return
	}

	s.logger.Info("reconnecting", slog.Int("room", roomID))
	if err := s.Connect(context.Background(), roomID); err != nil {
		s.logger.Error("reconnect failed",
			slog.Int("room", roomID), slog.String("error", err.Error()))
		if onError != nil {
			onError(fmt.Errorf("reconnect to room %d failed, please retry", roomID))
		}
	}
}
