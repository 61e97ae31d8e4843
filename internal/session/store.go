package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"magicpic_admin/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

// MemoryStore keeps the state in process. The BFF builds one per request.
type MemoryStore struct {
	mu sync.Mutex
	st *State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewTokenStore returns a MemoryStore already holding token.
func NewTokenStore(token string) *MemoryStore {
	return &MemoryStore{st: &State{Token: token}}
}

func (m *MemoryStore) Load(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == nil {
		return State{}, ErrNoSession
	}
	return *m.st, nil
}

func (m *MemoryStore) Save(_ context.Context, st State) error {
	m.mu.Lock()
	m.st = &st
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.st = nil
	m.mu.Unlock()
	return nil
}

// FileStore keeps the state in a JSON file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(_ context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, ErrNoSession
	}
	if err != nil {
		return State{}, fmt.Errorf("read session file: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return State{}, fmt.Errorf("decode session file: %w", err)
	}

	var st State
	if raw, ok := doc[TokenKey]; ok {
		_ = json.Unmarshal(raw, &st.Token)
	}
	if raw, ok := doc[AdminKey]; ok && string(raw) != "null" {
		var a domain.Admin
		if json.Unmarshal(raw, &a) == nil {
			st.Admin = &a
		}
	}
	if raw, ok := doc["expires_at"]; ok {
		_ = json.Unmarshal(raw, &st.ExpiresAt)
	}
	if st.Token == "" {
		return State{}, ErrNoSession
	}
	return st, nil
}

func (f *FileStore) Save(_ context.Context, st State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc := map[string]any{TokenKey: st.Token, AdminKey: st.Admin}
	if !st.ExpiresAt.IsZero() {
		doc["expires_at"] = st.ExpiresAt
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(f.path, b, 0600)
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RedisStore keeps the state under <prefix>admin_token and <prefix>admin_user.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) Load(ctx context.Context) (State, error) {
	vals, err := r.rdb.MGet(ctx, r.prefix+TokenKey, r.prefix+AdminKey).Result()
	if err != nil {
		return State{}, fmt.Errorf("load session: %w", err)
	}

	token, _ := vals[0].(string)
	if token == "" {
		return State{}, ErrNoSession
	}
	st := State{Token: token}

	if raw, ok := vals[1].(string); ok && raw != "" && raw != "null" {
		var a domain.Admin
		if json.Unmarshal([]byte(raw), &a) == nil {
			st.Admin = &a
		}
	}

	// key TTL stands in for the expiry timestamp
	if ttl, err := r.rdb.TTL(ctx, r.prefix+TokenKey).Result(); err == nil && ttl > 0 {
		st.ExpiresAt = time.Now().Add(ttl)
	}
	return st, nil
}

func (r *RedisStore) Save(ctx context.Context, st State) error {
	var ttl time.Duration
	if !st.ExpiresAt.IsZero() {
		ttl = time.Until(st.ExpiresAt)
		if ttl <= 0 {
			return r.Clear(ctx)
		}
	}

	adminJSON, err := json.Marshal(st.Admin)
	if err != nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.prefix+TokenKey, st.Token, ttl)
	pipe.Set(ctx, r.prefix+AdminKey, adminJSON, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, r.prefix+TokenKey, r.prefix+AdminKey).Err()
}
