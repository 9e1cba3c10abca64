package delivery

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenInvalid covers every way a token can fail redemption: unknown,
// already redeemed, expired, or bound to a different contract. Callers get no
// finer detail, so a token probe can not distinguish the cases.
var ErrTokenInvalid = errors.New("delivery options token is invalid")

// TokenStore issues single-use, time-boxed quote tokens and redeems each one
// exactly once. Redemption must be atomic: when two callers race on the same
// token, at most one wins.
type TokenStore interface {
	Issue(ctx context.Context, payload quotePayload, ttl time.Duration) (string, error)
	Redeem(ctx context.Context, contractID, token string) (*quotePayload, error)
}

func newToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ── Redis-backed store ────────────────────────────────────────────────────────

// redisTokenStore keeps quote payloads under a TTL'd key. GETDEL makes the
// read-and-invalidate a single atomic step, which is the whole single-writer
// guarantee for a token.
type redisTokenStore struct{ client *redis.Client }

func NewRedisTokenStore(client *redis.Client) TokenStore {
	return &redisTokenStore{client: client}
}

func (s *redisTokenStore) Issue(ctx context.Context, payload quotePayload, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, tokenKey(token), raw, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *redisTokenStore) Redeem(ctx context.Context, contractID, token string) (*quotePayload, error) {
	raw, err := s.client.GetDel(ctx, tokenKey(token)).Bytes()
	if err == redis.Nil {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	var payload quotePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.ContractID != contractID {
		return nil, ErrTokenInvalid
	}
	return &payload, nil
}

func tokenKey(token string) string { return "delivery_quote:" + token }

// ── In-memory store ───────────────────────────────────────────────────────────

// memoryTokenStore is used in tests and when no Redis address is configured.

type memoryEntry struct {
	payload   quotePayload
	expiresAt time.Time
}

type memoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryEntry
	now    func() time.Time
}

func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{tokens: make(map[string]memoryEntry), now: time.Now}
}

func (s *memoryTokenStore) Issue(ctx context.Context, payload quotePayload, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = memoryEntry{payload: payload, expiresAt: s.now().Add(ttl)}
	return token, nil
}

func (s *memoryTokenStore) Redeem(ctx context.Context, contractID, token string) (*quotePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[token]
	if !ok {
		return nil, ErrTokenInvalid
	}
	delete(s.tokens, token)
	if s.now().After(entry.expiresAt) || entry.payload.ContractID != contractID {
		return nil, ErrTokenInvalid
	}
	payload := entry.payload
	return &payload, nil
}
