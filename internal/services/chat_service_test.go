package services

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"healthbridge/internal/config"
	"healthbridge/internal/models"
	"healthbridge/internal/repositories"
)

// ============================================================================
// Mocks
// ============================================================================

type MockTaskRunner struct {
	mock.Mock
}

func (m *MockTaskRunner) Run(ctx context.Context, taskKey, prompt string) (string, error) {
	args := m.Called(ctx, taskKey, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockTaskRunner) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockBooker struct {
	mock.Mock
}

func (m *MockBooker) Book(ctx context.Context, req BookingRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// ============================================================================
// Test Setup
// ============================================================================

func setupTestChatService(t *testing.T) (*ChatService, *MockVectorRepository, *MockTaskRunner, *MockBooker, *MemoryService) {
	mockRepo := new(MockVectorRepository)
	mockRunner := new(MockTaskRunner)
	mockBooker := new(MockBooker)

	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	retrieval := NewRetrievalService(mockRepo, testCollection, logger)
	classifier := setupTestClassifier()
	memory := NewMemoryService(repositories.NewInMemoryConversationStore(), logger)

	policy := config.RetrievalConfig{
		TopK:              3,
		DoctorTopK:        5,
		DistanceThreshold: 1.6,
	}

	service := NewChatService(retrieval, classifier, memory, mockRunner, mockBooker, policy, logger)
	return service, mockRepo, mockRunner, mockBooker, memory
}

// ============================================================================
// Tests
// ============================================================================

func TestHandleChat_EmptyMessage(t *testing.T) {
	service, _, _, _, _ := setupTestChatService(t)

	_, err := service.HandleChat(context.Background(), models.Query{
		Message: "  ",
		UserID:  "p001",
		Role:    models.RolePatient,
	})

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestHandleChat_NoContextShortCircuits(t *testing.T) {
	service, mockRepo, mockRunner, _, _ := setupTestChatService(t)
	ctx := context.Background()

	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, 3, mock.Anything).
		Return([]*repositories.DocumentChunk{}, nil)

	resp, err := service.HandleChat(ctx, models.Query{
		Message: "tell me about my condition",
		UserID:  "p001",
		Role:    models.RolePatient,
	})

	assert.NoError(t, err)
	assert.Equal(t, "no_context", resp.Status)
	assert.Equal(t, NoContextMessage, resp.Response)
	mockRunner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleChat_PatientFlow(t *testing.T) {
	service, mockRepo, mockRunner, _, memory := setupTestChatService(t)
	ctx := context.Background()

	expectedWhere, _ := BuildScopeFilter(models.SourceTypePatient, "p001")
	mockRepo.On("SearchChunks", ctx, testCollection, "I feel pain and fever", 3, expectedWhere).
		Return([]*repositories.DocumentChunk{
			patientChunk("c1", "p001", "Patient reported recurring migraines.", 0.3),
		}, nil)
	mockRunner.On("Run", ctx, TaskSymptomChecker, mock.AnythingOfType("string")).
		Return("These symptoms often accompany a viral infection.", nil)

	resp, err := service.HandleChat(ctx, models.Query{
		Message: "I feel pain and fever",
		UserID:  "p001",
		Role:    models.RolePatient,
	})

	assert.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, TaskSymptomChecker, resp.SelectedTask)
	assert.Equal(t, models.RolePatient, resp.UserRole)
	assert.Equal(t, "Found 1 relevant documents", resp.ContextSummary)
	assert.Contains(t, resp.Response, "**Medical Information for You:**")
	assert.Contains(t, resp.Response, "These symptoms often accompany a viral infection.")
	assert.NotEmpty(t, resp.ConversationID)

	// The exchange is recorded in memory.
	history, err := memory.History(ctx, "p001", resp.ConversationID, 10)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, "I feel pain and fever", history[0].UserMessage)
}

func TestHandleChat_DoctorFlow(t *testing.T) {
	service, mockRepo, mockRunner, _, _ := setupTestChatService(t)
	ctx := context.Background()

	expectedWhere, _ := BuildScopeFilter(models.SourceTypeGuideline, "")
	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, 5, expectedWhere).
		Return([]*repositories.DocumentChunk{
			guidelineChunk("g1", "ACE inhibitors are first-line for hypertension.", 0.4),
		}, nil)
	mockRunner.On("Run", ctx, TaskTreatmentGuideline, mock.AnythingOfType("string")).
		Return("Start with an ACE inhibitor.", nil)

	resp, err := service.HandleChat(ctx, models.Query{
		Message: "recommended treatment dosage guidance",
		UserID:  "d007",
		Role:    models.RoleDoctor,
	})

	assert.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, models.RoleDoctor, resp.UserRole)
	assert.Contains(t, resp.Response, "**Clinical Analysis for Healthcare Professional:**")
	assert.Contains(t, resp.Response, "Start with an ACE inhibitor.")
}

func TestHandleChat_PromptCarriesContext(t *testing.T) {
	service, mockRepo, mockRunner, _, _ := setupTestChatService(t)
	ctx := context.Background()

	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return([]*repositories.DocumentChunk{
			patientChunk("c1", "p001", "Allergy to penicillin noted in 2024.", 0.2),
		}, nil)

	var capturedPrompt string
	mockRunner.On("Run", ctx, mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			capturedPrompt = args.String(2)
		}).
		Return("ok", nil)

	_, err := service.HandleChat(ctx, models.Query{
		Message: "Am I allergic to any medication?",
		UserID:  "p001",
		Role:    models.RolePatient,
	})

	assert.NoError(t, err)
	assert.Contains(t, capturedPrompt, "USER QUERY: Am I allergic to any medication?")
	assert.Contains(t, capturedPrompt, "USER ROLE: PATIENT")
	assert.Contains(t, capturedPrompt, NoHistorySentinel)
	assert.Contains(t, capturedPrompt, "Document 1 (Relevance: 0.800)")
	assert.Contains(t, capturedPrompt, "Allergy to penicillin noted in 2024.")
}

func TestHandleChat_RunnerFailureDegrades(t *testing.T) {
	service, mockRepo, mockRunner, _, _ := setupTestChatService(t)
	ctx := context.Background()

	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return([]*repositories.DocumentChunk{
			patientChunk("c1", "p001", "Blood pressure was stable at the last visit.", 0.3),
		}, nil)
	mockRunner.On("Run", ctx, mock.Anything, mock.Anything).
		Return("", &TaskExecutionError{TaskKey: TaskGeneralMedical, Err: errors.New("runner down")})

	resp, err := service.HandleChat(ctx, models.Query{
		Message: "what is my blood pressure history",
		UserID:  "p001",
		Role:    models.RolePatient,
	})

	assert.NoError(t, err)
	assert.Equal(t, "task_error", resp.Status)
	assert.Contains(t, resp.Response, "I encountered an error processing your request")
	assert.Contains(t, resp.Response, "Blood pressure was stable at the last visit.")
}

func TestDegradedResponse_TruncatesOnRuneBoundaries(t *testing.T) {
	out := degradedResponse([]models.RetrievedChunk{
		{Rank: 1, Content: strings.Repeat("ü", 250), SimilarityScore: 0.9},
	})

	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, strings.Repeat("ü", 200)+"...")
	assert.NotContains(t, out, strings.Repeat("ü", 201))
}

func TestHandleChat_RetrievalOutageDegrades(t *testing.T) {
	service, mockRepo, mockRunner, _, _ := setupTestChatService(t)
	ctx := context.Background()

	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("chroma unreachable"))

	resp, err := service.HandleChat(ctx, models.Query{
		Message: "anything at all",
		UserID:  "p001",
		Role:    models.RolePatient,
	})

	// A backend outage degrades to the no-context answer instead of
	// surfacing an error to the caller.
	assert.NoError(t, err)
	assert.Equal(t, "no_context", resp.Status)
	assert.Equal(t, NoContextMessage, resp.Response)
	mockRunner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleChat_AppointmentBooking(t *testing.T) {
	service, mockRepo, mockRunner, mockBooker, _ := setupTestChatService(t)
	ctx := context.Background()

	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return([]*repositories.DocumentChunk{
			patientChunk("c1", "p001", "Previous appointment notes.", 0.5),
		}, nil)
	mockBooker.On("Book", ctx, mock.MatchedBy(func(req BookingRequest) bool {
		return req.Email == "jane@example.com" &&
			req.DesiredTime == "2026-09-10T10:00" &&
			req.DesiredDoctor == "Kim"
	})).Return("Appointment confirmed for Dr. Kim.", nil)

	resp, err := service.HandleChat(ctx, models.Query{
		Message: "Book an appointment with Dr. Kim at 2026-09-10T10:00, my email is jane@example.com",
		UserID:  "p001",
		Role:    models.RolePatient,
	})

	assert.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, TaskAppointmentBooking, resp.SelectedTask)
	assert.Contains(t, resp.Response, "Appointment confirmed for Dr. Kim.")
	mockRunner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	mockBooker.AssertExpectations(t)
}

func TestHandleChat_AppointmentMissingFields(t *testing.T) {
	service, mockRepo, _, mockBooker, _ := setupTestChatService(t)
	ctx := context.Background()

	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return([]*repositories.DocumentChunk{
			patientChunk("c1", "p001", "Previous appointment notes.", 0.5),
		}, nil)

	resp, err := service.HandleChat(ctx, models.Query{
		Message: "I want to book an appointment",
		UserID:  "p001",
		Role:    models.RolePatient,
	})

	assert.NoError(t, err)
	assert.Equal(t, TaskAppointmentBooking, resp.SelectedTask)
	assert.Contains(t, resp.Response, "I still need the following")
	assert.Contains(t, resp.Response, "desired time")
	assert.Contains(t, resp.Response, "email address")
	mockBooker.AssertNotCalled(t, "Book", mock.Anything, mock.Anything)
}

func TestHandleChat_AppointmentWebhookFailure(t *testing.T) {
	service, mockRepo, _, mockBooker, _ := setupTestChatService(t)
	ctx := context.Background()

	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return([]*repositories.DocumentChunk{
			patientChunk("c1", "p001", "Previous appointment notes.", 0.5),
		}, nil)
	mockBooker.On("Book", ctx, mock.Anything).
		Return("", &ExternalServiceError{Service: "appointment", Err: errors.New("timeout")})

	resp, err := service.HandleChat(ctx, models.Query{
		Message: "Book an appointment with Dr. Kim at 2026-09-10T10:00, my email is jane@example.com",
		UserID:  "p001",
		Role:    models.RolePatient,
	})

	assert.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Contains(t, resp.Response, "Dr. Kim at 2026-09-10T10:00 for jane@example.com")
	assert.Contains(t, resp.Response, "contact the office directly")
}

func TestHandleChat_UnknownRoleTreatedAsPatient(t *testing.T) {
	service, mockRepo, mockRunner, _, _ := setupTestChatService(t)
	ctx := context.Background()

	expectedWhere, _ := BuildScopeFilter(models.SourceTypePatient, "u9")
	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, 3, expectedWhere).
		Return([]*repositories.DocumentChunk{
			patientChunk("c1", "u9", "note", 0.4),
		}, nil)
	mockRunner.On("Run", ctx, mock.Anything, mock.Anything).Return("answer", nil)

	resp, err := service.HandleChat(ctx, models.Query{
		Message: "what is my history of diagnosis",
		UserID:  "u9",
		Role:    "admin",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.RolePatient, resp.UserRole)
	mockRepo.AssertExpectations(t)
}

func TestAnalyzeQuery(t *testing.T) {
	service, _, _, _, _ := setupTestChatService(t)

	result := service.AnalyzeQuery(models.Query{
		Message: "I feel pain and fever",
		UserID:  "p001",
		Role:    models.RolePatient,
	})

	assert.Equal(t, TaskSymptomChecker, result.TaskKey)
	assert.NotEmpty(t, result.Scores)
}
