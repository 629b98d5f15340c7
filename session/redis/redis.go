package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/finassist/config"
	"github.com/mohammad-safakhou/finassist/docindex"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/session"
)

const keyPrefix = "finassist:session:"

// Store keeps session state in redis. Document indexes cannot be serialized
// and stay in this process, keyed by session id.
type Store struct {
	client  *redis.Client
	timeout time.Duration
	logger  *log.Logger

	mu      sync.Mutex
	holders map[string]*docindex.Holder
}

func NewRedisSessionStore(cfg config.RedisConfig, logger *log.Logger) session.Store {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	return NewWithClient(rdb, timeout, logger)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, timeout time.Duration, logger *log.Logger) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{client: client, timeout: timeout, logger: logger, holders: map[string]*docindex.Holder{}}
}

func metaKey(id string) string       { return keyPrefix + id }
func transcriptKey(id string) string { return keyPrefix + id + ":transcript" }
func noticesKey(id string) string    { return keyPrefix + id + ":notices" }

func (store *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), store.timeout)
}

func (store *Store) EnsureSession(id string, ttl time.Duration) (session.Session, error) {
	ctx, cancel := store.ctx()
	defer cancel()
	if id != "" {
		exists, err := store.client.Exists(ctx, metaKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("check session: %w", err)
		}
		if exists == 1 {
			sess := store.session(id)
			if err := sess.expire(ctx, ttl); err != nil {
				return nil, err
			}
			return sess, nil
		}
	}

	if err := store.sweep(ctx); err != nil {
		store.logf("[WARN] sweep expired sessions: %v", err)
	}

	sess := store.session(uuid.NewString())
	if err := store.client.HSet(ctx, metaKey(sess.id), "created_at", time.Now().UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := sess.expire(ctx, ttl); err != nil {
		return nil, err
	}
	return sess, nil
}

func (store *Store) GetSession(id string) (session.Session, error) {
	ctx, cancel := store.ctx()
	defer cancel()
	exists, err := store.client.Exists(ctx, metaKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		store.dropHolder(id)
		return nil, session.ErrNotFound
	}
	return store.session(id), nil
}

func (store *Store) DeleteSession(id string) error {
	ctx, cancel := store.ctx()
	defer cancel()
	n, err := store.client.Del(ctx, metaKey(id), transcriptKey(id), noticesKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	store.dropHolder(id)
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (store *Store) session(id string) *Session {
	store.mu.Lock()
	defer store.mu.Unlock()
	h, ok := store.holders[id]
	if !ok {
		h = &docindex.Holder{}
		store.holders[id] = h
	}
	return &Session{store: store, id: id, holder: h}
}

func (store *Store) dropHolder(id string) {
	store.mu.Lock()
	if h, ok := store.holders[id]; ok {
		h.Reset()
		delete(store.holders, id)
	}
	store.mu.Unlock()
}

// sweep drops the in-process index of every session whose redis key has
// expired.
func (store *Store) sweep(ctx context.Context) error {
	store.mu.Lock()
	ids := make([]string, 0, len(store.holders))
	for id := range store.holders {
		ids = append(ids, id)
	}
	store.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}

	cmds := make([]*redis.IntCmd, len(ids))
	_, err := store.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.Exists(ctx, metaKey(id))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			store.dropHolder(ids[i])
		}
	}
	return nil
}

// HolderCount returns the number of in-process indexes kept for sessions.
func (store *Store) HolderCount() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.holders)
}

func (store *Store) logf(format string, args ...any) {
	if store.logger != nil {
		store.logger.Printf(format, args...)
	}
}

type Session struct {
	store  *Store
	id     string
	holder *docindex.Holder
}

func (s *Session) ID() string { return s.id }

func (s *Session) ExpiresAt() time.Time {
	ctx, cancel := s.store.ctx()
	defer cancel()
	ttl, err := s.store.client.PTTL(ctx, metaKey(s.id)).Result()
	if err != nil || ttl < 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func (s *Session) expire(ctx context.Context, ttl time.Duration) error {
	_, err := s.store.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Expire(ctx, metaKey(s.id), ttl)
		p.Expire(ctx, transcriptKey(s.id), ttl)
		p.Expire(ctx, noticesKey(s.id), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	return nil
}

func (s *Session) Notes() (string, error) {
	ctx, cancel := s.store.ctx()
	defer cancel()
	notes, err := s.store.client.HGet(ctx, metaKey(s.id), "notes").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return notes, err
}

func (s *Session) SetNotes(notes string) error {
	ctx, cancel := s.store.ctx()
	defer cancel()
	return s.store.client.HSet(ctx, metaKey(s.id), "notes", notes).Err()
}

func (s *Session) Quotes() ([]models.AssetQuote, time.Time, error) {
	ctx, cancel := s.store.ctx()
	defer cancel()
	vals, err := s.store.client.HMGet(ctx, metaKey(s.id), "quotes", "quotes_at").Result()
	if err != nil {
		return nil, time.Time{}, err
	}
	raw, _ := vals[0].(string)
	at, _ := vals[1].(string)
	if raw == "" {
		return nil, time.Time{}, nil
	}
	var quotes []models.AssetQuote
	if err := json.Unmarshal([]byte(raw), &quotes); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode quotes: %w", err)
	}
	refreshed, _ := time.Parse(time.RFC3339Nano, at)
	return quotes, refreshed, nil
}

func (s *Session) SetQuotes(quotes []models.AssetQuote) error {
	data, err := json.Marshal(quotes)
	if err != nil {
		return err
	}
	ctx, cancel := s.store.ctx()
	defer cancel()
	return s.store.client.HSet(ctx, metaKey(s.id),
		"quotes", string(data),
		"quotes_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
}

func (s *Session) Transcript() ([]models.ChatTurn, error) {
	ctx, cancel := s.store.ctx()
	defer cancel()
	vals, err := s.store.client.LRange(ctx, transcriptKey(s.id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	turns := make([]models.ChatTurn, 0, len(vals))
	for _, v := range vals {
		var t models.ChatTurn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *Session) AppendTurns(turns ...models.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		vals = append(vals, string(data))
	}
	ctx, cancel := s.store.ctx()
	defer cancel()
	ttl := s.ttl(ctx)
	_, err := s.store.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, transcriptKey(s.id), vals...)
		if ttl > 0 {
			p.PExpire(ctx, transcriptKey(s.id), ttl)
		}
		return nil
	})
	return err
}

// Notify stores the notice in redis. Failures are only logged.
func (s *Session) Notify(level notice.Level, msg string) {
	if s.store.logger != nil {
		notice.Logger{L: s.store.logger}.Notify(level, msg)
	}
	data, err := json.Marshal(notice.Notice{Level: level, Message: msg, At: time.Now()})
	if err != nil {
		return
	}
	ctx, cancel := s.store.ctx()
	defer cancel()
	ttl := s.ttl(ctx)
	_, err = s.store.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, noticesKey(s.id), string(data))
		if ttl > 0 {
			p.PExpire(ctx, noticesKey(s.id), ttl)
		}
		return nil
	})
	if err != nil && s.store.logger != nil {
		s.store.logger.Printf("[WARN] store notice for session %s: %v", s.id, err)
	}
}

func (s *Session) DrainNotices() ([]notice.Notice, error) {
	ctx, cancel := s.store.ctx()
	defer cancel()
	var rng *redis.StringSliceCmd
	_, err := s.store.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		rng = p.LRange(ctx, noticesKey(s.id), 0, -1)
		p.Del(ctx, noticesKey(s.id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]notice.Notice, 0, len(rng.Val()))
	for _, v := range rng.Val() {
		var n notice.Notice
		if err := json.Unmarshal([]byte(v), &n); err == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Session) Index() *docindex.Holder { return s.holder }

func (s *Session) ttl(ctx context.Context) time.Duration {
	ttl, err := s.store.client.PTTL(ctx, metaKey(s.id)).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}
