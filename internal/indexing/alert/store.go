package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// Phase is a chain's position in the cooldown state machine.
type Phase string

const (
	PhaseHealthy   Phase = "healthy"
	PhasePending   Phase = "unhealthy_pending"
	PhaseAlerted   Phase = "alerted"
	PhaseRecovered Phase = "recovered"
)

// ChainState is the suppression state kept per chain between evaluations.
type ChainState struct {
	Phase       Phase     `json:"phase"`
	Unhealthy   int       `json:"unhealthy"` // consecutive unhealthy evaluations
	LastAlertAt time.Time `json:"last_alert_at"`
}

// StateStore keeps ChainState across evaluations.
// Get returns the zero state for unknown chains.
type StateStore interface {
	Get(ctx context.Context, chainID domain.ChainID) (ChainState, error)
	Put(ctx context.Context, chainID domain.ChainID, state ChainState) error
}

// MemoryStore keeps state for the lifetime of the process.
type MemoryStore struct {
	states *xsync.Map[domain.ChainID, ChainState]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: xsync.NewMap[domain.ChainID, ChainState]()}
}

func (m *MemoryStore) Get(_ context.Context, chainID domain.ChainID) (ChainState, error) {
	s, _ := m.states.Load(chainID)
	return s, nil
}

func (m *MemoryStore) Put(_ context.Context, chainID domain.ChainID, state ChainState) error {
	m.states.Store(chainID, state)
	return nil
}

// KV is the key/value surface RedisStore needs.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore keeps state in Redis so a restarted process does not
// re-alert inside the cooldown window.
type RedisStore struct {
	kv     KV
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. Entries expire after ttl.
func NewRedisStore(kv KV, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, prefix: "syncwatch:alert:", ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, chainID domain.ChainID) (ChainState, error) {
	raw, ok, err := r.kv.Get(ctx, r.prefix+chainID)
	if err != nil {
		return ChainState{}, fmt.Errorf("get alert state for chain %s: %w", chainID, err)
	}
	if !ok {
		return ChainState{}, nil
	}
	var s ChainState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return ChainState{}, fmt.Errorf("decode alert state for chain %s: %w", chainID, err)
	}
	return s, nil
}

func (r *RedisStore) Put(ctx context.Context, chainID domain.ChainID, state ChainState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode alert state: %w", err)
	}
	if err := r.kv.Set(ctx, r.prefix+chainID, string(raw), r.ttl); err != nil {
		return fmt.Errorf("put alert state for chain %s: %w", chainID, err)
	}
	return nil
}
