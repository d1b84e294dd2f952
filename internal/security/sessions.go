package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session is one authenticated browser session. The row lives in redis
// under an opaque id; the cookie carries a signed token naming that id
// so the value cannot be forged while logout stays a server-side
// deletion.
type Session struct {
	ID         string    `json:"id"`
	UserID     uint      `json:"user_id"`
	Persistent bool      `json:"persistent"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionStore issues, resolves and revokes sessions.
type SessionStore struct {
	client        *redis.Client
	signingKey    []byte
	ttl           time.Duration
	persistentTTL time.Duration
}

func NewSessionStore(client *redis.Client, signingKey []byte, ttl, persistentTTL time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if persistentTTL <= 0 {
		persistentTTL = 30 * 24 * time.Hour
	}
	return &SessionStore{
		client:        client,
		signingKey:    signingKey,
		ttl:           ttl,
		persistentTTL: persistentTTL,
	}
}

func sessionKey(id string) string { return "session:" + id }

// Issue creates a session and returns the signed cookie value.
func (s *SessionStore) Issue(ctx context.Context, userID uint, persistent bool) (string, error) {
	session := Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Persistent: persistent,
		CreatedAt:  time.Now().UTC(),
	}
	ttl := s.ttl
	if persistent {
		ttl = s.persistentTTL
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), raw, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": session.ID,
		"exp": time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(s.signingKey)
}

// ErrNoSession means the cookie is missing, invalid or revoked.
var ErrNoSession = errors.New("no valid session")

// Resolve validates a cookie value and loads the session behind it.
func (s *SessionStore) Resolve(ctx context.Context, cookie string) (*Session, error) {
	if cookie == "" {
		return nil, ErrNoSession
	}
	token, err := jwt.Parse(cookie, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrNoSession
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrNoSession
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return nil, ErrNoSession
	}

	raw, err := s.client.Get(ctx, sessionKey(sid)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, ErrNoSession
	}
	return &session, nil
}

// Revoke deletes the session row. The cookie then resolves to nothing
// even before it expires.
func (s *SessionStore) Revoke(ctx context.Context, cookie string) {
	token, _, err := jwt.NewParser().ParseUnverified(cookie, jwt.MapClaims{})
	if err != nil {
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return
	}
	if sid, ok := claims["sid"].(string); ok && sid != "" {
		s.client.Del(ctx, sessionKey(sid))
	}
}
