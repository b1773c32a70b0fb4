package stub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/designpro/chatkit/pkg/identity"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

var (
	errInvalidToken  = errors.New("invalid token")
	errTokenExpired  = errors.New("token expired")
	errUnknownUser   = errors.New("unknown user")
	errBadCredential = errors.New("bad credential")
)

type account struct {
	profile      identity.Profile
	passwordHash []byte
}

// SeedUser registers a user with a bcrypt-hashed password and returns the
// assigned id.
func (s *Stub) SeedUser(profile identity.Profile, password string) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if profile.ID == 0 {
		profile.ID = len(s.users) + 1
	}
	s.users = append(s.users, account{profile: profile, passwordHash: hash})
	return profile.ID, nil
}

func (s *Stub) mintToken(userID int) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Stub) verifyToken(raw string) (int, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return 0, errTokenExpired
	case err != nil:
		return 0, errInvalidToken
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, errInvalidToken
	}
	id, err := strconv.Atoi(sub)
	if err != nil || id <= 0 {
		return 0, errInvalidToken
	}
	return id, nil
}

func (s *Stub) authenticate(email, password string) (identity.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.profile.Email, email) {
			if bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
				return identity.Profile{}, errBadCredential
			}
			return u.profile, nil
		}
	}
	return identity.Profile{}, errUnknownUser
}

func (s *Stub) signInHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed payload")
		return
	}

	profile, err := s.authenticate(input.Email, input.Password)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.mintToken(profile.ID)
	if err != nil {
		s.logger.Error("mint token", slog.Any("error", err))
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  profile,
	})
}

type ctxKey int

const userKey ctxKey = 0

func userFromContext(ctx context.Context) identity.Profile {
	profile, _ := ctx.Value(userKey).(identity.Profile)
	return profile
}

func (s *Stub) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		id, err := s.verifyToken(raw)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, err.Error())
			return
		}

		s.mu.Lock()
		profile, found := s.userByIDLocked(id)
		s.mu.Unlock()
		if !found {
			writeDetail(w, http.StatusUnauthorized, "unknown user")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, profile)))
	})
}
