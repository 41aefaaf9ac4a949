package repositories

import (
	"context"
	"sync"

	"healthbridge/internal/models"
)

// InMemoryConversationStore keeps conversation logs in process memory.
// State is volatile and scoped to process lifetime. Each user's log is
// guarded by its own lock so concurrent requests for different users never
// contend.
type InMemoryConversationStore struct {
	mu    sync.RWMutex // guards the users map itself
	users map[string]*userLog
}

type userLog struct {
	mu       sync.Mutex
	messages []models.ConversationMessage
}

// NewInMemoryConversationStore creates an empty in-process conversation store.
func NewInMemoryConversationStore() *InMemoryConversationStore {
	return &InMemoryConversationStore{
		users: make(map[string]*userLog),
	}
}

func (s *InMemoryConversationStore) logFor(userID string) *userLog {
	s.mu.RLock()
	l, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.users[userID]; ok {
		return l
	}
	l = &userLog{}
	s.users[userID] = l
	return l
}

// Append adds a message and truncates the log to the retention cap.
func (s *InMemoryConversationStore) Append(_ context.Context, userID string, msg models.ConversationMessage) error {
	l := s.logFor(userID)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg)
	if len(l.messages) > models.MaxMessagesPerUser {
		// Drop oldest; copy so the backing array does not pin evicted entries.
		trimmed := make([]models.ConversationMessage, models.MaxMessagesPerUser)
		copy(trimmed, l.messages[len(l.messages)-models.MaxMessagesPerUser:])
		l.messages = trimmed
	}
	return nil
}

// Messages returns messages in insertion order, optionally filtered by
// conversation id and limited to the most recent max entries.
func (s *InMemoryConversationStore) Messages(_ context.Context, userID string, conversationID string, max int) ([]models.ConversationMessage, error) {
	l := s.logFor(userID)
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.ConversationMessage
	for _, msg := range l.messages {
		if conversationID != "" && msg.ConversationID != conversationID {
			continue
		}
		out = append(out, msg)
	}

	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}

	// Copy so callers never observe later mutation.
	result := make([]models.ConversationMessage, len(out))
	copy(result, out)
	return result, nil
}

// UserCount returns the number of users with stored messages.
func (s *InMemoryConversationStore) UserCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// InMemoryProfileStore keeps user profiles in process memory.
type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
}

// NewInMemoryProfileStore creates an empty in-process profile store.
func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{
		profiles: make(map[string]models.UserProfile),
	}
}

// Save stores or replaces a profile.
func (s *InMemoryProfileStore) Save(_ context.Context, profile models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

// Get returns the profile for a user, or ErrProfileNotFound.
func (s *InMemoryProfileStore) Get(_ context.Context, userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &profile, nil
}

// Count returns the number of stored profiles.
func (s *InMemoryProfileStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), nil
}
