package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"healthbridge/internal/models"
)

func testMessage(conversationID, userMessage string) models.ConversationMessage {
	return models.ConversationMessage{
		ConversationID: conversationID,
		Role:           models.RolePatient,
		UserMessage:    userMessage,
		AIResponse:     "reply",
	}
}

func TestInMemoryConversationStore_AppendAndMessages(t *testing.T) {
	store := NewInMemoryConversationStore()
	ctx := context.Background()

	assert.NoError(t, store.Append(ctx, "u1", testMessage("c1", "first")))
	assert.NoError(t, store.Append(ctx, "u1", testMessage("c1", "second")))
	assert.NoError(t, store.Append(ctx, "u1", testMessage("c2", "other conversation")))

	all, err := store.Messages(ctx, "u1", "", 0)
	assert.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "first", all[0].UserMessage)

	filtered, err := store.Messages(ctx, "u1", "c1", 0)
	assert.NoError(t, err)
	assert.Len(t, filtered, 2)

	limited, err := store.Messages(ctx, "u1", "c1", 1)
	assert.NoError(t, err)
	assert.Len(t, limited, 1)
	assert.Equal(t, "second", limited[0].UserMessage)
}

func TestInMemoryConversationStore_CapEnforced(t *testing.T) {
	store := NewInMemoryConversationStore()
	ctx := context.Background()

	for i := 0; i < models.MaxMessagesPerUser+10; i++ {
		assert.NoError(t, store.Append(ctx, "u1", testMessage("c1", fmt.Sprintf("message %d", i))))
	}

	all, err := store.Messages(ctx, "u1", "", 0)
	assert.NoError(t, err)
	assert.Len(t, all, models.MaxMessagesPerUser)
	assert.Equal(t, "message 10", all[0].UserMessage)
}

func TestInMemoryConversationStore_UsersIsolated(t *testing.T) {
	store := NewInMemoryConversationStore()
	ctx := context.Background()

	assert.NoError(t, store.Append(ctx, "u1", testMessage("c1", "mine")))
	assert.NoError(t, store.Append(ctx, "u2", testMessage("c2", "theirs")))

	mine, err := store.Messages(ctx, "u1", "", 0)
	assert.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, "mine", mine[0].UserMessage)

	count, err := store.UserCount(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInMemoryConversationStore_ConcurrentAppends(t *testing.T) {
	store := NewInMemoryConversationStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Append(ctx, "u1", testMessage("c1", fmt.Sprintf("message %d", n)))
		}(i)
	}
	wg.Wait()

	all, err := store.Messages(ctx, "u1", "", 0)
	assert.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestInMemoryConversationStore_ResultIsACopy(t *testing.T) {
	store := NewInMemoryConversationStore()
	ctx := context.Background()

	assert.NoError(t, store.Append(ctx, "u1", testMessage("c1", "original")))

	first, _ := store.Messages(ctx, "u1", "", 0)
	first[0].UserMessage = "mutated"

	second, _ := store.Messages(ctx, "u1", "", 0)
	assert.Equal(t, "original", second[0].UserMessage)
}

func TestInMemoryProfileStore_SaveAndGet(t *testing.T) {
	store := NewInMemoryProfileStore()
	ctx := context.Background()

	profile := models.UserProfile{
		UserID:    "d007",
		Role:      models.RoleDoctor,
		Specialty: "cardiology",
	}
	assert.NoError(t, store.Save(ctx, profile))

	loaded, err := store.Get(ctx, "d007")
	assert.NoError(t, err)
	assert.Equal(t, "cardiology", loaded.Specialty)

	count, err := store.Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInMemoryProfileStore_NotFound(t *testing.T) {
	store := NewInMemoryProfileStore()

	_, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestInMemoryProfileStore_SaveReplaces(t *testing.T) {
	store := NewInMemoryProfileStore()
	ctx := context.Background()

	assert.NoError(t, store.Save(ctx, models.UserProfile{UserID: "p001", Role: models.RolePatient}))
	assert.NoError(t, store.Save(ctx, models.UserProfile{
		UserID:            "p001",
		Role:              models.RolePatient,
		MedicalConditions: []string{"asthma"},
	}))

	loaded, err := store.Get(ctx, "p001")
	assert.NoError(t, err)
	assert.Equal(t, []string{"asthma"}, loaded.MedicalConditions)

	count, _ := store.Count(ctx)
	assert.Equal(t, 1, count)
}
