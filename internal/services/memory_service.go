package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"healthbridge/internal/models"
	"healthbridge/internal/repositories"
)

// NoHistorySentinel is returned by Summary when a conversation has no
// messages yet.
const NoHistorySentinel = "No previous conversation history."

// summaryMessageCount is how many trailing messages a summary renders.
const summaryMessageCount = 5

// summaryTruncateLen caps each rendered message body in a summary.
const summaryTruncateLen = 100

// MemoryService provides bounded per-user conversation memory on top of a
// pluggable store.
type MemoryService struct {
	store  repositories.ConversationStore
	logger *log.Logger
}

// NewMemoryService creates a memory service over the given store.
func NewMemoryService(store repositories.ConversationStore, logger *log.Logger) *MemoryService {
	return &MemoryService{
		store:  store,
		logger: logger,
	}
}

// Append records one exchange. A new conversation id is generated when none
// is supplied; the (possibly new) id is returned.
func (s *MemoryService) Append(ctx context.Context, userID, conversationID, message, response, role string) (string, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	msg := models.ConversationMessage{
		ConversationID: conversationID,
		Timestamp:      time.Now(),
		Role:           role,
		UserMessage:    message,
		AIResponse:     response,
	}

	if err := s.store.Append(ctx, userID, msg); err != nil {
		return "", fmt.Errorf("failed to store conversation message: %w", err)
	}

	return conversationID, nil
}

// History returns the user's messages in insertion order. When a
// conversation id is given only that conversation is returned; otherwise the
// most recent max messages across all conversations.
func (s *MemoryService) History(ctx context.Context, userID, conversationID string, max int) ([]models.ConversationMessage, error) {
	if max <= 0 {
		max = 10
	}
	return s.store.Messages(ctx, userID, conversationID, max)
}

// Summary renders the last messages of a conversation as alternating
// "User:" / "AI:" lines for prompt context.
func (s *MemoryService) Summary(ctx context.Context, userID, conversationID string) string {
	history, err := s.store.Messages(ctx, userID, conversationID, summaryMessageCount)
	if err != nil {
		s.logger.Printf("Failed to load history for summary: %v", err)
		return NoHistorySentinel
	}
	if len(history) == 0 {
		return NoHistorySentinel
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Conversation History (User role: %s):\n", history[0].Role)
	for i, msg := range history {
		fmt.Fprintf(&b, "%d. User: %s\n", i+1, truncate(msg.UserMessage, summaryTruncateLen))
		fmt.Fprintf(&b, "   AI: %s\n", truncate(msg.AIResponse, summaryTruncateLen))
	}
	return b.String()
}

// Conversations lists the user's conversations with start time, message
// count, and role.
func (s *MemoryService) Conversations(ctx context.Context, userID string) ([]models.ConversationInfo, error) {
	messages, err := s.store.Messages(ctx, userID, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	byID := make(map[string]*models.ConversationInfo)
	var order []string
	for _, msg := range messages {
		info, ok := byID[msg.ConversationID]
		if !ok {
			info = &models.ConversationInfo{
				ConversationID: msg.ConversationID,
				StartTime:      msg.Timestamp,
				Role:           msg.Role,
			}
			byID[msg.ConversationID] = info
			order = append(order, msg.ConversationID)
		}
		info.MessageCount++
	}

	out := make([]models.ConversationInfo, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// UserCount reports how many users currently have stored messages.
func (s *MemoryService) UserCount(ctx context.Context) int {
	count, err := s.store.UserCount(ctx)
	if err != nil {
		return 0
	}
	return count
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
