package events

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/jaakkos/dao-ledger/internal/app"
)

// DefaultTallyKey is the hash holding mirrored tallies when no key is configured.
const DefaultTallyKey = "dao-ledger:tally"

// hashClient is the subset of *redis.Client used by the mirror.
type hashClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTallyMirror keeps a Redis hash of proposal ID to tally in step with the ledger,
// so read-heavy consumers need not query the ledger.
//
// Events may arrive out of commit order, so each field remembers the store
// revision it was last written at and older events are dropped. The mirror
// must be the only writer of its key.
type RedisTallyMirror struct {
	client hashClient
	key    string

	mu   sync.Mutex
	revs map[uint64]uint64 // proposal ID -> revision of the mirrored tally
}

// NewRedisTallyMirror returns a mirror writing to key through client.
func NewRedisTallyMirror(client hashClient, key string) *RedisTallyMirror {
	if key == "" {
		key = DefaultTallyKey
	}
	return &RedisTallyMirror{client: client, key: key, revs: make(map[uint64]uint64)}
}

// ConnectRedis opens a client for addr and verifies it with PING.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Publish implements app.EventPublisher. Only events that change a tally touch
// the hash. An event committed at or before the revision already mirrored for
// its proposal is ignored; unstamped events (revision 0) always apply.
func (m *RedisTallyMirror) Publish(ctx context.Context, ev app.Event) error {
	var votes uint64
	switch ev.Type {
	case app.EventProposalRegistered:
		votes = 0
	case app.EventVoteCast:
		votes = ev.Votes
	default:
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.revs[ev.ProposalID]; ok && ev.Revision != 0 && ev.Revision <= last {
		return nil
	}
	field := strconv.FormatUint(ev.ProposalID, 10)
	if err := m.client.HSet(ctx, m.key, field, strconv.FormatUint(votes, 10)).Err(); err != nil {
		return fmt.Errorf("redis hset %s %s: %w", m.key, field, err)
	}
	if ev.Revision != 0 {
		m.revs[ev.ProposalID] = ev.Revision
	}
	return nil
}

// Sync replaces the mirrored hash with counts taken at revision rev. Used at
// startup so the mirror matches a ledger restored from storage.
func (m *RedisTallyMirror) Sync(ctx context.Context, counts map[uint64]uint64, rev uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.client.Del(ctx, m.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", m.key, err)
	}
	m.revs = make(map[uint64]uint64, len(counts))
	if len(counts) == 0 {
		return nil
	}
	values := make([]interface{}, 0, 2*len(counts))
	for id, n := range counts {
		values = append(values, strconv.FormatUint(id, 10), strconv.FormatUint(n, 10))
		if rev != 0 {
			m.revs[id] = rev
		}
	}
	if err := m.client.HSet(ctx, m.key, values...).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", m.key, err)
	}
	return nil
}

// Counts reads the mirrored tallies back.
func (m *RedisTallyMirror) Counts(ctx context.Context) (map[uint64]uint64, error) {
	raw, err := m.client.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", m.key, err)
	}
	counts := make(map[uint64]uint64, len(raw))
	for field, value := range raw {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis field %q: %w", field, err)
		}
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis value for %q: %w", field, err)
		}
		counts[id] = n
	}
	return counts, nil
}
