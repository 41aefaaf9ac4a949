package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"healthbridge/internal/models"
)

const (
	conversationKeyPrefix = "conversation:"
	profileKeyPrefix      = "profile:"
)

// RedisConversationStore persists conversation logs as Redis lists, one list
// per user. Append and truncation run in a single transaction pipeline, which
// gives the per-user atomicity the store contract requires.
type RedisConversationStore struct {
	client *redis.Client
}

// NewRedisConversationStore creates a Redis-backed conversation store.
func NewRedisConversationStore(client *redis.Client) *RedisConversationStore {
	return &RedisConversationStore{client: client}
}

func conversationKey(userID string) string {
	return conversationKeyPrefix + userID
}

// Append pushes a message onto the user's list and trims to the retention cap.
func (s *RedisConversationStore) Append(ctx context.Context, userID string, msg models.ConversationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := conversationKey(userID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-models.MaxMessagesPerUser), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	return nil
}

// Messages returns the user's log in insertion order.
func (s *RedisConversationStore) Messages(ctx context.Context, userID string, conversationID string, max int) ([]models.ConversationMessage, error) {
	raw, err := s.client.LRange(ctx, conversationKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	var out []models.ConversationMessage
	for _, item := range raw {
		var msg models.ConversationMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			// Skip entries written by an incompatible revision.
			continue
		}
		if conversationID != "" && msg.ConversationID != conversationID {
			continue
		}
		out = append(out, msg)
	}

	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}

	return out, nil
}

// UserCount returns the number of users with stored messages.
func (s *RedisConversationStore) UserCount(ctx context.Context) (int, error) {
	count, err := countKeys(ctx, s.client, conversationKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// countKeys iterates with SCAN so counting never blocks the server the way
// KEYS would on a large keyspace.
func countKeys(ctx context.Context, client *redis.Client, pattern string) (int, error) {
	count := 0
	iter := client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// RedisProfileStore persists user profiles as JSON values.
type RedisProfileStore struct {
	client *redis.Client
}

// NewRedisProfileStore creates a Redis-backed profile store.
func NewRedisProfileStore(client *redis.Client) *RedisProfileStore {
	return &RedisProfileStore{client: client}
}

func profileKey(userID string) string {
	return profileKeyPrefix + userID
}

// Save stores or replaces a profile.
func (s *RedisProfileStore) Save(ctx context.Context, profile models.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := s.client.Set(ctx, profileKey(profile.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Get returns the profile for a user, or ErrProfileNotFound.
func (s *RedisProfileStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	data, err := s.client.Get(ctx, profileKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}

// Count returns the number of stored profiles.
func (s *RedisProfileStore) Count(ctx context.Context) (int, error) {
	count, err := countKeys(ctx, s.client, profileKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}
