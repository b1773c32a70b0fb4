package stub

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/designpro/chatkit/pkg/rest"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type roomConn struct {
	id   string
	conn *websocket.Conn

	// Serializes writes; concurrent sends to the same room would
	// otherwise interleave frames on the wire.
	writeMu sync.Mutex
}

func (rc *roomConn) writeFrame(frame liveFrame) error {
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return rc.conn.WriteJSON(frame)
}

// liveFrame is the realtime envelope pushed to room subscribers.
type liveFrame struct {
	Type    string       `json:"type"`
	Message rest.Message `json:"message"`
	RoomID  int          `json:"room_id"`
}

func (s *Stub) wsHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.Atoi(chi.URLParam(r, "roomID"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid room id")
		return
	}

	// Browsers cannot set headers on websocket dials, so the token rides
	// the query string here.
	userID, err := s.verifyToken(r.URL.Query().Get("token"))
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, err.Error())
		return
	}

	s.mu.Lock()
	room, ok := s.roomByIDLocked(roomID)
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "room not found")
		return
	}
	if room.Customer.ID != userID && room.Designer.ID != userID {
		writeDetail(w, http.StatusForbidden, "not a participant of this room")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade websocket", slog.Any("error", err))
		return
	}

	rc := &roomConn{id: uuid.NewString(), conn: conn}
	s.register(roomID, rc)
	s.logger.Debug("subscriber joined",
		slog.Int("room_id", roomID),
		slog.Int("user_id", userID),
		slog.String("conn_id", rc.id))

	// Subscribers never send application frames; the read loop only
	// drains control frames and detects the close.
	go func() {
		defer s.unregister(roomID, rc)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Stub) register(roomID int, rc *roomConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[roomID] = append(s.conns[roomID], rc)
}

func (s *Stub) unregister(roomID int, rc *roomConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.conns[roomID]
	for i, c := range subs {
		if c.id == rc.id {
			s.conns[roomID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (s *Stub) broadcast(roomID int, message rest.Message) {
	s.mu.Lock()
	subs := make([]*roomConn, len(s.conns[roomID]))
	copy(subs, s.conns[roomID])
	s.mu.Unlock()

	frame := liveFrame{Type: "chat_message", Message: message, RoomID: roomID}
	for _, rc := range subs {
		if err := rc.writeFrame(frame); err != nil {
			s.logger.Debug("drop dead subscriber",
				slog.Int("room_id", roomID),
				slog.String("conn_id", rc.id))
			rc.conn.Close()
			s.unregister(roomID, rc)
		}
	}
}
