package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/designpro/chatkit/pkg/identity"
	"github.com/designpro/chatkit/pkg/rest"
)

// HistoryAPI is the slice of the backend the reconciler consumes.
type HistoryAPI interface {
	ListMessages(ctx context.Context, roomID int) ([]rest.Message, error)
}

// Reconciler merges REST-fetched history with live-streamed messages into one
// ordered, de-duplicated view. History entries (server order) strictly
// precede live entries; live entries append in arrival order.
type Reconciler struct {
	api      HistoryAPI
	me       identity.User
	notifier Notifier

	mu       sync.Mutex
	activeID int
	messages []Message

	// onAppend is the scroll-to-latest hook, debounced so bursts of
	// arrivals trigger a single scroll.
	onAppend      func()
	debounce      time.Duration
	debounceTimer *time.Timer
}

type ReconcilerOpt func(*Reconciler)

// WithAppendHook installs the debounced scroll hook.
func WithAppendHook(fn func(), debounce time.Duration) ReconcilerOpt {
	return func(r *Reconciler) {
		r.onAppend = fn
		r.debounce = debounce
	}
}

func NewReconciler(api HistoryAPI, me identity.User, notifier Notifier, opts ...ReconcilerOpt) *Reconciler {
	r := &Reconciler{
		api:      api,
		me:       me,
		notifier: notifier,
		debounce: 100 * time.Millisecond,
	}
	if notifier == nil {
		r.notifier = NopNotifier{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load seeds the view from REST history, replacing the current message list
// wholesale, and makes roomID the active room for live filtering.
func (r *Reconciler) Load(ctx context.Context, roomID int) error {
	history, err := r.api.ListMessages(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	messages := make([]Message, 0, len(history))
	for _, raw := range history {
		messages = append(messages, NormalizeMessage(raw, roomID))
	}

	r.mu.Lock()
	r.activeID = roomID
	r.messages = messages
	r.mu.Unlock()
	r.scheduleScroll()
	return nil
}

// Clear empties the view and detaches it from any room. Switching rooms
// clears first so no stale messages show while history loads.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeID = 0
	r.messages = nil
}

// HandleLive accepts a live wire message: events for rooms other than the
// active one are dropped (not queued), and a message whose id is already in
// the view is not appended twice.
func (r *Reconciler) HandleLive(raw rest.Message) {
	r.mu.Lock()
	if r.activeID == 0 || raw.Room != r.activeID {
		r.mu.Unlock()
		return
	}

	msg := NormalizeMessage(raw, r.activeID)
	if msg.ID != 0 && r.containsLocked(msg.ID) {
		r.mu.Unlock()
		return
	}
	r.messages = append(r.messages, msg)
	fromOther := msg.SenderID != r.me.ID
	r.mu.Unlock()

	r.scheduleScroll()
	if fromOther {
		// Presentation cue only; a blocked audio device must not abort
		// message handling.
		r.notifier.Cue()
	}
}

// Append records a locally-echoed message (the send response) in the view,
// subject to the same room filter and de-duplication as live events.
func (r *Reconciler) Append(msg Message) {
	raw := rest.Message{
		ID:         msg.ID,
		Room:       msg.RoomID,
		Sender:     msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Timestamp:  msg.Timestamp.Format(time.RFC3339),
		IsRead:     msg.IsRead,
		FileURL:    msg.FileURL,
		AudioURL:   msg.AudioURL,
	}
	r.HandleLive(raw)
}

// Messages returns a copy of the current view in display order.
func (r *Reconciler) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// ActiveRoom returns the room the view is bound to, 0 when none.
func (r *Reconciler) ActiveRoom() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

func (r *Reconciler) containsLocked(id int) bool {
	for _, m := range r.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (r *Reconciler) scheduleScroll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onAppend == nil {
		return
	}
	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceTimer = time.AfterFunc(r.debounce, r.onAppend)
}
