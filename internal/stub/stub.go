// Package stub is an in-memory implementation of the chat backend's REST and
// realtime contracts. It exists for local development and integration tests;
// nothing here persists.
package stub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/designpro/chatkit/pkg/identity"
	"github.com/designpro/chatkit/pkg/rest"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

type Stub struct {
	secret []byte
	logger *slog.Logger

	mu       sync.Mutex
	users    []account
	rooms    []rest.Room
	messages map[int][]rest.Message
	conns    map[int][]*roomConn
	nextRoom int
	nextMsg  int

	upgrader websocket.Upgrader
}

func New(secret []byte, logger *slog.Logger) *Stub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stub{
		secret:   secret,
		logger:   logger,
		messages: make(map[int][]rest.Message),
		conns:    make(map[int][]*roomConn),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Router mounts the REST and realtime endpoints under the same paths the
// production backend serves.
func (s *Stub) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	r.Post("/api/token/", s.signInHandler)

	r.Route("/users/api", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/chat-rooms/", s.listRoomsHandler)
		r.Get("/chat-messages/{roomID}/", s.listMessagesHandler)
		r.Post("/send-message/{roomID}/", s.sendMessageHandler)
		r.Get("/get-all-users/", s.listUsersHandler)
		r.Post("/create-chat-room/", s.createRoomHandler)
	})

	r.Get("/ws/chat/{roomID}/", s.wsHandler)
	return r
}

func (s *Stub) listRoomsHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	s.mu.Lock()
	rooms := make([]rest.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if room.Customer.ID == user.ID || room.Designer.ID == user.ID {
			rooms = append(rooms, room)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, rooms)
}

func (s *Stub) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	profiles := make([]identity.Profile, 0, len(s.users))
	for _, u := range s.users {
		profiles = append(profiles, u.profile)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, profiles)
}

func (s *Stub) listMessagesHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	roomID, err := strconv.Atoi(chi.URLParam(r, "roomID"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid room id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.roomByIDLocked(roomID)
	if !ok {
		writeDetail(w, http.StatusNotFound, "room not found")
		return
	}
	if room.Customer.ID != user.ID && room.Designer.ID != user.ID {
		writeDetail(w, http.StatusForbidden, "not a participant of this room")
		return
	}
	history := s.messages[roomID]
	if history == nil {
		history = []rest.Message{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Stub) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	roomID, err := strconv.Atoi(chi.URLParam(r, "roomID"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid room id")
		return
	}

	var input rest.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed payload")
		return
	}

	s.mu.Lock()
	room, ok := s.roomByIDLocked(roomID)
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "room not found")
		return
	}
	if room.Customer.ID != user.ID && room.Designer.ID != user.ID {
		s.mu.Unlock()
		writeDetail(w, http.StatusForbidden, "not a participant of this room")
		return
	}

	s.nextMsg++
	message := rest.Message{
		ID:         s.nextMsg,
		Room:       roomID,
		Sender:     user.ID,
		SenderName: identity.CoalesceName(&user),
		Content:    input.Content,
		FileURL:    input.FileURL,
		AudioURL:   input.AudioURL,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	s.messages[roomID] = append(s.messages[roomID], message)
	s.mu.Unlock()

	s.broadcast(roomID, message)
	writeJSON(w, http.StatusCreated, message)
}

func (s *Stub) createRoomHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var input rest.CreateRoomInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	receiver, ok := s.userByIDLocked(input.ReceiverID)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "unknown receiver")
		return
	}

	sender := user
	// One private room per pair, in either participant order.
	for _, room := range s.rooms {
		if (room.Customer.ID == sender.ID && room.Designer.ID == receiver.ID) ||
			(room.Designer.ID == sender.ID && room.Customer.ID == receiver.ID) {
			writeJSON(w, http.StatusOK, rest.CreateRoomResponse{
				Detail: "room already exists",
				RoomID: room.ID,
			})
			return
		}
	}

	senderRole := identity.ParseRole(sender.UserType)
	receiverRole := identity.ParseRole(receiver.UserType)
	if senderRole == receiverRole ||
		(senderRole != identity.RoleCustomer && senderRole != identity.RoleDesigner) ||
		(receiverRole != identity.RoleCustomer && receiverRole != identity.RoleDesigner) {
		writeDetail(w, http.StatusBadRequest, "users cannot chat with each other")
		return
	}

	s.nextRoom++
	now := time.Now().UTC().Format(time.RFC3339)
	room := rest.Room{ID: s.nextRoom, CreatedAt: now, UpdatedAt: now}
	if senderRole == identity.RoleCustomer {
		room.Customer, room.Designer = sender, receiver
	} else {
		room.Customer, room.Designer = receiver, sender
	}
	s.rooms = append(s.rooms, room)

	res := rest.CreateRoomResponse{Detail: "room created", RoomID: room.ID}
	res.Data = &struct {
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}{CreatedAt: now, UpdatedAt: now}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Stub) roomByIDLocked(id int) (rest.Room, bool) {
	for _, room := range s.rooms {
		if room.ID == id {
			return room, true
		}
	}
	return rest.Room{}, false
}

func (s *Stub) userByIDLocked(id int) (identity.Profile, bool) {
	for _, u := range s.users {
		if u.profile.ID == id {
			return u.profile, true
		}
	}
	return identity.Profile{}, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// SeedRoom inserts a room directly, bypassing the eligibility check. Test
// setup helper.
func (s *Stub) SeedRoom(customer, designer identity.Profile) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRoom++
	now := time.Now().UTC().Format(time.RFC3339)
	s.rooms = append(s.rooms, rest.Room{
		ID: s.nextRoom, Customer: customer, Designer: designer,
		CreatedAt: now, UpdatedAt: now,
	})
	return s.nextRoom
}

func (s *Stub) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("stub backend: %d users, %d rooms", len(s.users), len(s.rooms))
}
