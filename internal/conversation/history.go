package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/llm"
)

const conversationTTL = 24 * time.Hour

// HistoryStore persists conversation state between turns.
type HistoryStore interface {
	Load(ctx context.Context, conversationID string) (*State, error)
	Save(ctx context.Context, state *State) error
}

// ErrUnknownConversation is returned by Load when no state exists yet.
var ErrUnknownConversation = fmt.Errorf("conversation: unknown conversation")

// RedisHistoryStore keeps conversation state in Redis with a 24h TTL, so
// stale sessions expire on their own.
type RedisHistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewRedisHistoryStore creates a Redis-backed history store.
func NewRedisHistoryStore(client *redis.Client) *RedisHistoryStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisHistoryStore{
		redis:  client,
		tracer: otel.Tracer("clinic.internal.conversation.history"),
	}
}

var _ HistoryStore = (*RedisHistoryStore)(nil)

// Save persists the state and refreshes its TTL.
func (s *RedisHistoryStore) Save(ctx context.Context, state *State) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_history")
	defer span.End()

	state.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, conversationKey(state.ConversationID), data, conversationTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

// Load retrieves the state, or ErrUnknownConversation if it expired or never
// existed.
func (s *RedisHistoryStore) Load(ctx context.Context, conversationID string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, conversationKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownConversation, conversationID)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return &state, nil
}

func conversationKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

// MemoryHistoryStore keeps state in-process. Used in tests and when Redis is
// not configured. Sessions do not survive a restart.
type MemoryHistoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemoryHistoryStore creates an in-memory history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{states: make(map[string]*State)}
}

var _ HistoryStore = (*MemoryHistoryStore)(nil)

// Save stores a deep-enough copy so later mutations don't leak in.
func (s *MemoryHistoryStore) Save(_ context.Context, state *State) error {
	state.UpdatedAt = time.Now().UTC()
	cp := *state
	cp.Messages = append([]llm.Message(nil), state.Messages...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ConversationID] = &cp
	return nil
}

// Load retrieves a copy of the stored state.
func (s *MemoryHistoryStore) Load(_ context.Context, conversationID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConversation, conversationID)
	}
	cp := *state
	cp.Messages = append([]llm.Message(nil), state.Messages...)
	return &cp, nil
}
