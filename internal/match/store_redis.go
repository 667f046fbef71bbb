package match

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps write-through JSON snapshots of match aggregates in Redis so
// a restarted daemon can keep serving live matches. The engine remains the
// authority while running; the store is hydration and crash recovery, not
// a coordination mechanism.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore connects to Redis using a redis:// URL.
func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for match store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStoreWithClient(rdb, ttl), nil
}

// NewStoreWithClient wraps an existing client. Used by tests.
func NewStoreWithClient(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func stateKey(id string) string { return "match:state:" + strings.TrimSpace(id) }

func tournamentKey(tid string) string { return "match:index:tournament:" + strings.TrimSpace(tid) }

// Save writes the snapshot and refreshes the tournament index.
func (s *Store) Save(ctx context.Context, m *Match) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, stateKey(m.ID), raw, s.ttl).Err(); err != nil {
		return err
	}
	if strings.TrimSpace(m.TournamentID) != "" {
		key := tournamentKey(m.TournamentID)
		if err := s.rdb.SAdd(ctx, key, m.ID).Err(); err != nil {
			return err
		}
		// Keep the index from outliving its snapshots.
		_ = s.rdb.Expire(ctx, key, s.ttl).Err()
	}
	return nil
}

// Load returns the snapshot for id, or nil when none exists.
func (s *Store) Load(ctx context.Context, id string) (*Match, error) {
	raw, err := s.rdb.Get(ctx, stateKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// TournamentMatchIDs lists the known match IDs for a tournament.
func (s *Store) TournamentMatchIDs(ctx context.Context, tournamentID string) ([]string, error) {
	return s.rdb.SMembers(ctx, tournamentKey(tournamentID)).Result()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
