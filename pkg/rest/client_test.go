package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("list rooms carries bearer token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/api/chat-rooms/", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"id":1,"customer":{"id":3},"designer":{"id":9}}]`))
		}))
		defer server.Close()

		rooms, err := NewClient(server.URL, "tok").ListRooms(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		assert.Equal(t, 1, rooms[0].ID)
		assert.Equal(t, 3, rooms[0].Customer.ID)
		assert.Equal(t, 9, rooms[0].Designer.ID)
	})

	t.Run("send message payload omits absent attachments", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/api/send-message/5/", r.URL.Path)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "hello", body["content"])
			assert.NotContains(t, body, "file_url")
			assert.NotContains(t, body, "audio_url")
			w.Write([]byte(`{"id":42,"room":5,"content":"hello"}`))
		}))
		defer server.Close()

		message, err := NewClient(server.URL, "tok").SendMessage(ctx, 5, SendMessageInput{Content: "hello"})
		require.NoError(t, err)
		assert.Equal(t, 42, message.ID)
	})

	t.Run("forbidden maps to ErrUnauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"detail":"not a participant"}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL, "tok").ListMessages(ctx, 5)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.ErrorContains(t, err, "not a participant")
	})

	t.Run("missing room maps to ErrNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewClient(server.URL, "tok").ListMessages(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create room rejects zero ids locally", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		_, err := NewClient(server.URL, "tok").CreateRoom(ctx, CreateRoomInput{SenderID: 3})
		assert.Error(t, err)
		assert.False(t, called)
	})

	t.Run("alternate message field names decode", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id":7,"room":5,"text":"legacy","file":"u://f","audio":"u://a"}]`))
		}))
		defer server.Close()

		messages, err := NewClient(server.URL, "tok").ListMessages(ctx, 5)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "legacy", messages[0].Text)
		assert.Equal(t, "u://f", messages[0].File)
		assert.Equal(t, "u://a", messages[0].Audio)
	})
}
