package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/designpro/chatkit/pkg/identity"
	"github.com/designpro/chatkit/pkg/policy"
	"github.com/designpro/chatkit/pkg/rest"
)

var (
	// ErrIneligiblePair is returned when a chat is started between two
	// users whose roles do not form a customer/designer pair.
	ErrIneligiblePair = errors.New("only customers and designers can chat, and only with the opposite role")
	// ErrNotParticipant is returned when a room is selected that the
	// current user is not a party of.
	ErrNotParticipant = errors.New("not a participant of this room")
	// ErrUnknownRoom is returned when a room id is not in the directory.
	ErrUnknownRoom = errors.New("unknown room")
)

// DirectoryAPI is the slice of the backend the directory consumes.
type DirectoryAPI interface {
	ListRooms(ctx context.Context) ([]rest.Room, error)
	CreateRoom(ctx context.Context, input rest.CreateRoomInput) (*rest.CreateRoomResponse, error)
	ListUsers(ctx context.Context) ([]identity.Profile, error)
}

// Directory maintains the set of rooms visible to the current user and which
// of them is active. It never re-sorts: rooms keep the backend's return
// order, and new rooms append.
type Directory struct {
	api    DirectoryAPI
	me     identity.User
	rooms  []Room
	active int // room id, 0 = none
}

func NewDirectory(api DirectoryAPI, me identity.User) *Directory {
	return &Directory{api: api, me: me}
}

// Refresh fetches and normalizes the room list, filters it to rooms the
// current user participates in, and applies the selection rule: keep the
// current selection when it is still present, otherwise activate the first
// room in returned order. An empty result clears the selection; it is an
// informational state, not an error.
func (d *Directory) Refresh(ctx context.Context) error {
	raw, err := d.api.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("refresh rooms: %w", err)
	}

	rooms := make([]Room, 0, len(raw))
	for _, r := range raw {
		room := NormalizeRoom(r)
		if room.HasParticipant(d.me) {
			rooms = append(rooms, room)
		}
	}
	d.rooms = rooms

	if len(rooms) == 0 {
		d.active = 0
		return nil
	}
	if _, ok := d.room(d.active); !ok {
		d.active = rooms[0].ID
	}
	return nil
}

// Rooms returns the filtered room list in backend order.
func (d *Directory) Rooms() []Room {
	out := make([]Room, len(d.rooms))
	copy(out, d.rooms)
	return out
}

// Active returns the currently active room, if any.
func (d *Directory) Active() (Room, bool) {
	return d.room(d.active)
}

// Select activates a room. The current user must be a participant.
func (d *Directory) Select(roomID int) (Room, error) {
	room, ok := d.room(roomID)
	if !ok {
		return Room{}, ErrUnknownRoom
	}
	if !room.HasParticipant(d.me) {
		return Room{}, ErrNotParticipant
	}
	d.active = room.ID
	return room, nil
}

func (d *Directory) room(id int) (Room, bool) {
	for _, r := range d.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// FindOrCreate returns the room connecting the current user with target,
// reusing an existing room in either participant order before asking the
// backend to create one. A created room is synthesized locally and appended
// without a full re-fetch.
func (d *Directory) FindOrCreate(ctx context.Context, target identity.User) (Room, bool, error) {
	for _, r := range d.rooms {
		if r.IsPair(d.me, target) {
			return r, false, nil
		}
	}

	if !policy.EligiblePair(d.me, target) {
		return Room{}, false, ErrIneligiblePair
	}

	res, err := d.api.CreateRoom(ctx, rest.CreateRoomInput{
		SenderID:   d.me.ID,
		ReceiverID: target.ID,
	})
	if err != nil {
		return Room{}, false, fmt.Errorf("create room: %w", err)
	}

	room := Room{ID: res.RoomID, UnreadCount: 0}
	// Assign participant slots by each party's normalized role.
	if d.me.Role == identity.RoleDesigner {
		room.Designer, room.Customer = d.me, target
	} else {
		room.Customer, room.Designer = d.me, target
	}
	now := time.Now()
	room.CreatedAt, room.UpdatedAt = now, now
	if res.Data != nil {
		room.CreatedAt = parseTimeOrNow(res.Data.CreatedAt)
		room.UpdatedAt = parseTimeOrNow(res.Data.UpdatedAt)
	}

	d.rooms = append(d.rooms, room)
	return room, true, nil
}

// Candidates lists the users the current user may start a new chat with:
// everyone except themselves whose role forms an eligible pair.
func (d *Directory) Candidates(ctx context.Context) ([]identity.User, error) {
	profiles, err := d.api.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var users []identity.User
	for i := range profiles {
		u := profiles[i].Canonical()
		if u.Matches(d.me) {
			continue
		}
		if policy.EligiblePair(d.me, u) {
			users = append(users, u)
		}
	}
	return users, nil
}
