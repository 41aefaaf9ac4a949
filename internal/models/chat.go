package models

// User roles recognized by the chat pipeline.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Source types partitioning the vector corpus.
const (
	SourceTypePatient   = "patient"
	SourceTypeGuideline = "guideline"
)

// Query is the immutable per-request value carried through the chat pipeline.
// It is built once from the authenticated request and never mutated.
type Query struct {
	Message        string `json:"message"`
	UserID         string `json:"user_id"`
	Role           string `json:"role"`                      // "doctor" or "patient"
	ConversationID string `json:"conversation_id,omitempty"` // empty = start a new conversation
}

// ChatRequest is the body of POST /ai/chat and POST /analyze-query.
// User identity and role come from the access token, not the body.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the response of POST /ai/chat.
type ChatResponse struct {
	Status              string  `json:"status"` // "success", "no_context", "degraded"
	UserID              string  `json:"user_id"`
	Query               string  `json:"query"`
	SelectedTask        string  `json:"selected_task,omitempty"`
	SelectionConfidence float64 `json:"selection_confidence,omitempty"`
	UserRole            string  `json:"user_role"`
	ConversationID      string  `json:"conversation_id,omitempty"`
	ContextSummary      string  `json:"rag_context_summary,omitempty"`
	Response            string  `json:"response"`
}

// RetrievedChunk is a single ranked result in a RAG query response.
type RetrievedChunk struct {
	Rank            int                    `json:"rank"`
	Content         string                 `json:"content"`
	Metadata        map[string]interface{} `json:"metadata"`
	SimilarityScore float64                `json:"similarity_score"`
}

// RAGQueryResponse is the response of POST /rag/query.
type RAGQueryResponse struct {
	Status  string           `json:"status"` // "success" or "no_data"
	UserID  string           `json:"user_id"`
	Query   string           `json:"query"`
	Results []RetrievedChunk `json:"results"`
}

// TaskClassification is the outcome of scoring a query against task
// categories. Scores holds the full per-category map for debugging.
type TaskClassification struct {
	TaskKey    string             `json:"task_key"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
}
