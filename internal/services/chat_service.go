package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"healthbridge/internal/config"
	"healthbridge/internal/models"
)

// NoContextMessage is returned when retrieval finds nothing relevant for the
// user's query.
const NoContextMessage = "I couldn't find relevant medical information in our database to answer your question. Please consult with a healthcare professional for personalized medical advice."

// fallbackSnippetCount and fallbackSnippetLen bound the degraded response
// built from raw retrieval snippets when the task runner fails.
const (
	fallbackSnippetCount = 3
	fallbackSnippetLen   = 200
)

// taskHandler produces the raw response text for one task category.
type taskHandler func(ctx context.Context, q models.Query, ret *RetrievalResponse, summary, taskKey string) (string, error)

// ChatService orchestrates the chat pipeline: conversation context, scoped
// retrieval, task classification, task execution, role formatting, and
// memory recording.
type ChatService struct {
	retrieval  *RetrievalService
	classifier *TaskClassifier
	memory     *MemoryService
	runner     TaskRunner
	booker     AppointmentBooker
	extractor  *SlotExtractor
	policy     config.RetrievalConfig
	handlers   map[string]taskHandler
	logger     *log.Logger
}

// NewChatService wires the pipeline together. The task table is resolved
// here once so an unknown classifier result can never reach dispatch.
func NewChatService(
	retrieval *RetrievalService,
	classifier *TaskClassifier,
	memory *MemoryService,
	runner TaskRunner,
	booker AppointmentBooker,
	policy config.RetrievalConfig,
	logger *log.Logger,
) *ChatService {
	s := &ChatService{
		retrieval:  retrieval,
		classifier: classifier,
		memory:     memory,
		runner:     runner,
		booker:     booker,
		extractor:  NewSlotExtractor(),
		policy:     policy,
		logger:     logger,
	}

	s.handlers = map[string]taskHandler{
		TaskSymptomChecker:     s.runCrewTask,
		TaskTreatmentGuideline: s.runCrewTask,
		TaskMedicalHistory:     s.runCrewTask,
		TaskGeneralMedical:     s.runCrewTask,
		TaskAppointmentBooking: s.bookAppointment,
	}

	return s
}

// HandleChat runs the full pipeline for one user message.
func (s *ChatService) HandleChat(ctx context.Context, query models.Query) (*models.ChatResponse, error) {
	if strings.TrimSpace(query.Message) == "" {
		return nil, NewValidationError("message", "message must not be empty")
	}
	role := strings.ToLower(query.Role)
	if role != models.RoleDoctor {
		role = models.RolePatient
	}

	s.logger.Printf("Chat request from user '%s' (role: %s): %s", query.UserID, role, query.Message)

	summary := s.memory.Summary(ctx, query.UserID, query.ConversationID)

	ret, err := s.retrieveForRole(ctx, query, role)
	if err != nil {
		var backendErr *RetrievalBackendError
		if !errors.As(err, &backendErr) {
			return nil, err
		}
		s.logger.Printf("Retrieval backend unavailable for user '%s': %v", query.UserID, err)
		return &models.ChatResponse{
			Status:   "no_context",
			UserID:   query.UserID,
			Query:    query.Message,
			UserRole: role,
			Response: NoContextMessage,
		}, nil
	}

	if len(ret.Chunks) == 0 {
		s.logger.Printf("No relevant context found for user '%s'", query.UserID)
		return &models.ChatResponse{
			Status:   "no_context",
			UserID:   query.UserID,
			Query:    query.Message,
			UserRole: role,
			Response: NoContextMessage,
		}, nil
	}

	classification := s.classifier.Classify(query.Message, role)
	taskKey := classification.TaskKey
	confidence := classification.Confidence

	handler, ok := s.handlers[taskKey]
	if !ok {
		s.logger.Printf("Task '%s' not available, falling back to %s", taskKey, TaskGeneralMedical)
		taskKey = TaskGeneralMedical
		confidence = fallbackConfidence
		handler = s.runCrewTask
	}

	s.logger.Printf("Auto-selected task: %s (confidence: %.2f)", taskKey, confidence)

	status := "success"
	rawResponse, err := handler(ctx, query, ret, summary, taskKey)
	if err != nil {
		var taskErr *TaskExecutionError
		if !errors.As(err, &taskErr) {
			return nil, err
		}
		s.logger.Printf("Task execution error: %v", err)
		status = "task_error"
		rawResponse = degradedResponse(ret.RankedResults())
	}

	formatted := formatResponseForRole(rawResponse, role, query.Message)

	conversationID, err := s.memory.Append(ctx, query.UserID, query.ConversationID, query.Message, formatted, role)
	if err != nil {
		s.logger.Printf("Failed to record conversation: %v", err)
		conversationID = query.ConversationID
	}

	return &models.ChatResponse{
		Status:              status,
		UserID:              query.UserID,
		Query:               query.Message,
		SelectedTask:        taskKey,
		SelectionConfidence: confidence,
		UserRole:            role,
		ConversationID:      conversationID,
		ContextSummary:      fmt.Sprintf("Found %d relevant documents", len(ret.Chunks)),
		Response:            formatted,
	}, nil
}

// AnalyzeQuery exposes the classifier result without executing any task.
func (s *ChatService) AnalyzeQuery(query models.Query) models.TaskClassification {
	role := strings.ToLower(query.Role)
	if role != models.RoleDoctor {
		role = models.RolePatient
	}
	return s.classifier.Classify(query.Message, role)
}

// retrieveForRole runs retrieval under the caller's data scope: doctors
// search the shared guideline corpus, patients search their own records.
func (s *ChatService) retrieveForRole(ctx context.Context, query models.Query, role string) (*RetrievalResponse, error) {
	req := RetrievalRequest{
		QueryText:         query.Message,
		DistanceThreshold: s.policy.DistanceThreshold,
	}
	if role == models.RoleDoctor {
		req.SourceType = models.SourceTypeGuideline
		req.TopK = s.policy.DoctorTopK
	} else {
		req.SourceType = models.SourceTypePatient
		req.UserID = query.UserID
		req.TopK = s.policy.TopK
	}
	return s.retrieval.Retrieve(ctx, req)
}

// runCrewTask assembles the enriched prompt and delegates to the external
// task runner.
func (s *ChatService) runCrewTask(ctx context.Context, q models.Query, ret *RetrievalResponse, summary, taskKey string) (string, error) {
	prompt := buildTaskPrompt(q.Message, q.Role, summary, taskKey, ret.RankedResults())
	return s.runner.Run(ctx, taskKey, prompt)
}

// bookAppointment extracts the booking fields from the message and calls the
// booking webhook. Missing fields produce a follow-up request instead of a
// guessed booking.
func (s *ChatService) bookAppointment(ctx context.Context, q models.Query, _ *RetrievalResponse, _, _ string) (string, error) {
	slots, complete := s.extractor.Extract(q.Message)
	if !complete {
		return fmt.Sprintf(
			"To book your appointment I still need the following: %s. "+
				"Please provide them, for example: \"Book me with Dr. Kim on 2026-09-10T10:00, my email is jane@example.com\".",
			strings.Join(slots.Missing(), ", "),
		), nil
	}

	result, err := s.booker.Book(ctx, BookingRequest{
		Email:         slots.Email,
		DesiredTime:   slots.DesiredTime,
		DesiredDoctor: slots.Doctor,
		UserMessage:   q.Message,
		SessionID:     q.ConversationID,
	})
	if err != nil {
		s.logger.Printf("Appointment booking failed: %v", err)
		return fmt.Sprintf(
			"I couldn't reach the appointment booking system right now.\n"+
				"Attempted booking: Dr. %s at %s for %s.\n"+
				"Please try again later or contact the office directly.",
			slots.Doctor, slots.DesiredTime, slots.Email,
		), nil
	}
	return result, nil
}

// buildTaskPrompt renders the enriched prompt handed to the task runner:
// the user query, role, conversation context, and ranked document snippets.
func buildTaskPrompt(message, role, summary, taskKey string, results []models.RetrievedChunk) string {
	contextParts := make([]string, 0, len(results))
	for _, r := range results {
		contextParts = append(contextParts, fmt.Sprintf("Document %d (Relevance: %.3f):\n%s", r.Rank, r.SimilarityScore, r.Content))
	}
	ragContext := strings.Join(contextParts, "\n\n")

	var b strings.Builder
	fmt.Fprintf(&b, "USER QUERY: %s\n", message)
	fmt.Fprintf(&b, "USER ROLE: %s\n\n", strings.ToUpper(role))
	fmt.Fprintf(&b, "CONVERSATION CONTEXT:\n%s\n\n", summary)
	fmt.Fprintf(&b, "RELEVANT MEDICAL CONTEXT FROM DATABASE:\n%s\n\n", ragContext)
	fmt.Fprintf(&b, "TASK CONTEXT: You are a specialized medical AI assistant focused on %s.\n", taskTitle(taskKey))
	fmt.Fprintf(&b, "Your response should be tailored for a %s - use appropriate tone and detail level.\n\n", role)
	b.WriteString("INSTRUCTIONS:\n")
	fmt.Fprintf(&b, "1. Analyze the user's query in context of their role (%s) and conversation history\n", role)
	fmt.Fprintf(&b, "2. Provide a comprehensive, professional medical response appropriate for %s\n", role)
	b.WriteString("3. If the context is insufficient, acknowledge limitations and provide general guidance\n")
	b.WriteString("4. Always include appropriate medical disclaimers\n")
	b.WriteString("5. Maintain continuity with previous conversation if relevant\n")
	fmt.Fprintf(&b, "6. Tailor response depth and terminology for %s understanding\n", role)
	return b.String()
}

// taskTitle turns a task key like "symptom_checker_task" into "Symptom
// Checker" for prompt text.
func taskTitle(taskKey string) string {
	words := strings.Split(strings.TrimSuffix(taskKey, "_task"), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// degradedResponse builds the fallback answer from raw retrieval snippets
// when the task runner is unavailable.
func degradedResponse(results []models.RetrievedChunk) string {
	snippets := make([]string, 0, fallbackSnippetCount)
	for _, r := range results {
		if len(snippets) == fallbackSnippetCount {
			break
		}
		content := []rune(r.Content)
		if len(content) > fallbackSnippetLen {
			content = content[:fallbackSnippetLen]
		}
		snippets = append(snippets, string(content)+"...")
	}
	return "I encountered an error processing your request with our AI system. Here's the relevant information I found: " +
		strings.Join(snippets, "\n\n")
}

// formatResponseForRole wraps the raw task output in the role's response
// template.
func formatResponseForRole(response, role, query string) string {
	var b strings.Builder
	if role == models.RoleDoctor {
		b.WriteString("**Clinical Analysis for Healthcare Professional:**\n\n")
		fmt.Fprintf(&b, "**Query:** %s\n\n", query)
		fmt.Fprintf(&b, "**Evidence-Based Response:**\n%s\n\n", response)
		b.WriteString("**Clinical Considerations:**\n- Always verify with current guidelines\n- Consider patient-specific factors\n- Review contraindications\n\n")
		b.WriteString("*This information is based on available medical literature and should be integrated with clinical judgment.*")
	} else {
		b.WriteString("**Medical Information for You:**\n\n")
		fmt.Fprintf(&b, "**Regarding your question about %s:**\n\n", strings.ToLower(query))
		fmt.Fprintf(&b, "%s\n\n", response)
		b.WriteString("**Important Notes:**\n- This is general information, not medical advice\n- Always consult your healthcare provider\n- Individual cases may vary\n\n")
		b.WriteString("*I'm here to provide information, but please see a doctor for personal medical concerns.*")
	}
	return b.String()
}
