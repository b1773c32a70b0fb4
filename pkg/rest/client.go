// Package rest is a typed client for the chat backend's REST endpoints. It
// owns the wire shapes; loosely-typed backend payloads are normalized into
// canonical types by the callers at the package boundary.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/designpro/chatkit/pkg/identity"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Client calls the chat backend. The bearer token is attached to every
// request; it is fixed per session and replaced wholesale on re-login.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type ClientOpt func(*Client)

func WithHTTPClient(h *http.Client) ClientOpt {
	return func(c *Client) {
		c.http = h
	}
}

func NewClient(baseURL, token string, opts ...ClientOpt) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignIn exchanges credentials for a bearer token. It is the only call that
// does not carry a token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*SignInResponse, error) {
	var res SignInResponse
	payload := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/token/", payload, &res); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return &res, nil
}

// ListRooms returns every chat room visible to the current user.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/users/api/chat-rooms/", nil, &rooms); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListMessages returns the message history of a room in server order.
func (c *Client) ListMessages(ctx context.Context, roomID int) ([]Message, error) {
	var messages []Message
	path := fmt.Sprintf("/users/api/chat-messages/%d/", roomID)
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// SendMessage posts a message to a room and returns the created message.
func (c *Client) SendMessage(ctx context.Context, roomID int, input SendMessageInput) (*Message, error) {
	var message Message
	path := fmt.Sprintf("/users/api/send-message/%d/", roomID)
	if err := c.do(ctx, http.MethodPost, path, input, &message); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &message, nil
}

// ListUsers returns every user known to the backend.
func (c *Client) ListUsers(ctx context.Context) ([]identity.Profile, error) {
	var users []identity.Profile
	if err := c.do(ctx, http.MethodGet, "/users/api/get-all-users/", nil, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CreateRoom asks the backend to create a room between two users.
func (c *Client) CreateRoom(ctx context.Context, input CreateRoomInput) (*CreateRoomResponse, error) {
	if err := validate.Struct(&input); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	var res CreateRoomResponse
	if err := c.do(ctx, http.MethodPost, "/users/api/create-chat-room/", input, &res); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeError(res)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(res *http.Response) error {
	apiErr := &APIError{Status: res.StatusCode}
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil {
		if body.Detail != "" {
			apiErr.Detail = body.Detail
		} else {
			apiErr.Detail = body.Error
		}
	}
	return apiErr
}
