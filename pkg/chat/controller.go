package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/designpro/chatkit/pkg/identity"
)

var (
	// ErrNoActiveRoom is returned when a send is attempted with no room
	// selected.
	ErrNoActiveRoom = errors.New("no active room")
	// ErrSendInFlight is returned when a send is attempted while another
	// is still pending.
	ErrSendInFlight = errors.New("send already in flight")
)

// Controller owns the interplay between the directory, the transport
// session, the reconciler and the composer. Only the controller calls
// Connect/Disconnect on the session; the reconciler merely listens.
type Controller struct {
	me       identity.User
	dir      *Directory
	session  *Session
	rec      *Reconciler
	comp     *Composer
	notifier Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	sending bool
	closed  bool
}

func NewController(me identity.User, dir *Directory, session *Session, rec *Reconciler, comp *Composer, notifier Notifier, logger *slog.Logger) *Controller {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		me:       me,
		dir:      dir,
		session:  session,
		rec:      rec,
		comp:     comp,
		notifier: notifier,
		logger:   logger,
	}
	session.OnError(func(err error) {
		notifier.Error(err.Error())
	})
	return c
}

// Start loads the room directory and opens the initially active room, if
// any. An empty directory is an informational state, not an error.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.dir.Refresh(ctx); err != nil {
		c.notifier.Error("Failed to load chat rooms")
		return err
	}
	room, ok := c.dir.Active()
	if !ok {
		c.logger.Info("no accessible chat rooms")
		return nil
	}
	return c.SelectRoom(ctx, room.ID)
}

// SelectRoom switches the view to a room: clears the message list, closes
// any previous session, seeds history, then opens the live connection bound
// to the room id.
func (c *Controller) SelectRoom(ctx context.Context, roomID int) error {
	room, err := c.dir.Select(roomID)
	if err != nil {
		if errors.Is(err, ErrNotParticipant) {
			c.notifier.Error("You do not have access to this chat room")
		}
		return err
	}

	c.rec.Clear()
	c.session.Disconnect()

	if err := c.rec.Load(ctx, room.ID); err != nil {
		c.notifier.Error("Failed to load messages")
		return err
	}

	c.session.OnMessage(c.rec.HandleLive)
	if err := c.session.Connect(ctx, room.ID); err != nil {
		c.notifier.Error("Failed to connect to chat. Please retry.")
		return fmt.Errorf("select room %d: %w", room.ID, err)
	}
	return nil
}

// StartChat opens (or reuses) the room between the current user and target
// and switches to it. An existing room is never re-created.
func (c *Controller) StartChat(ctx context.Context, target identity.User) error {
	room, created, err := c.dir.FindOrCreate(ctx, target)
	if err != nil {
		if errors.Is(err, ErrIneligiblePair) {
			c.notifier.Error(ErrIneligiblePair.Error())
		} else {
			c.notifier.Error("Failed to start a new chat")
		}
		return err
	}
	if created {
		c.notifier.Success("Chat started successfully")
	}
	return c.SelectRoom(ctx, room.ID)
}

// Send prepares the composer's pending payload and posts it to the active
// room. On success the echo is appended to the view and the composer is
// reset; on failure the pending state is preserved for retry.
func (c *Controller) Send(ctx context.Context) error {
	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.sending = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	if _, ok := c.dir.Active(); !ok {
		return ErrNoActiveRoom
	}

	out, err := c.comp.Prepare()
	if err != nil {
		return err
	}

	msg, err := c.session.Send(ctx, out.Content, out.FileURL, out.AudioURL)
	if err != nil {
		c.notifier.Error("Failed to send message")
		return err
	}

	c.rec.Append(msg)
	c.comp.Reset()
	return nil
}

// Close tears the chat view down: the session is disconnected and the view
// cleared. Stray completions arriving afterwards are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.session.Disconnect()
	c.rec.Clear()
}

// Rooms returns the directory's room list.
func (c *Controller) Rooms() []Room {
	return c.dir.Rooms()
}

// Messages returns the current message view.
func (c *Controller) Messages() []Message {
	return c.rec.Messages()
}

// Candidates returns the users a new chat may be started with.
func (c *Controller) Candidates(ctx context.Context) ([]identity.User, error) {
	return c.dir.Candidates(ctx)
}

// Composer exposes the composition pipeline for the input affordance.
func (c *Controller) Composer() *Composer {
	return c.comp
}

// ActiveRoom returns the selected room, if any.
func (c *Controller) ActiveRoom() (Room, bool) {
	return c.dir.Active()
}
