package models

import "time"

// ConversationMessage is one user/assistant exchange in a conversation.
// Messages are append-only; each user's log is capped at MaxMessagesPerUser
// with the oldest entries evicted first.
type ConversationMessage struct {
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
	Role           string    `json:"role"`
	UserMessage    string    `json:"user_message"`
	AIResponse     string    `json:"ai_response"`
}

// MaxMessagesPerUser bounds the per-user conversation log.
const MaxMessagesPerUser = 50

// ConversationInfo summarizes one conversation for listing endpoints.
type ConversationInfo struct {
	ConversationID string    `json:"conversation_id"`
	StartTime      time.Time `json:"start_time"`
	MessageCount   int       `json:"message_count"`
	Role           string    `json:"role"`
}
