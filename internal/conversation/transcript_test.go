package conversation_test

import (
	"sync"
	"testing"

	"github.com/MegaGrindStone/viator-web-ui/internal/conversation"
	"github.com/MegaGrindStone/viator-web-ui/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptAppendUser(t *testing.T) {
	tr := conversation.NewTranscript()

	msg, err := tr.AppendUser("Find me a flight to Paris")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, models.RoleUser, msg.Role)
	assert.Equal(t, models.StreamingStateEnded, msg.StreamingState)
	assert.False(t, msg.Timestamp.IsZero())
	assert.Equal(t, 1, tr.Len())

	tail, ok := tr.Tail()
	require.True(t, ok)
	assert.Equal(t, msg, tail)
}

func TestTranscriptUpsertAssistantReplacesTail(t *testing.T) {
	tr := conversation.NewTranscript()
	_, err := tr.AppendUser("hi")
	require.NoError(t, err)

	first := tr.UpsertAssistant(models.Message{Content: "Hel", StreamingState: models.StreamingStateStreaming})
	second := tr.UpsertAssistant(models.Message{Content: "Hello", StreamingState: models.StreamingStateStreaming})

	require.Equal(t, 2, tr.Len())
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.Equal(t, models.RoleAssistant, second.Role)

	tail, ok := tr.Tail()
	require.True(t, ok)
	assert.Equal(t, "Hello", tail.Content)
	assert.True(t, tail.Open())
}

func TestTranscriptUpsertAssistantAppendsAfterUser(t *testing.T) {
	tr := conversation.NewTranscript()

	_, err := tr.AppendUser("one")
	require.NoError(t, err)
	a1 := tr.UpsertAssistant(models.Message{Content: "first", StreamingState: models.StreamingStateEnded})

	_, err = tr.AppendUser("two")
	require.NoError(t, err)
	a2 := tr.UpsertAssistant(models.Message{Content: "second", StreamingState: models.StreamingStateEnded})

	assert.NotEqual(t, a1.ID, a2.ID)

	msgs := tr.Messages()
	require.Len(t, msgs, 4)
	roles := []models.Role{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role}
	assert.Equal(t, []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}, roles)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "second", msgs[3].Content)
}

func TestTranscriptRejectsUserBehindOpenMessage(t *testing.T) {
	tr := conversation.NewTranscript()
	_, err := tr.AppendUser("hi")
	require.NoError(t, err)
	tr.UpsertAssistant(models.Message{Content: "Hel", StreamingState: models.StreamingStateStreaming})

	_, err = tr.AppendUser("again")
	require.ErrorIs(t, err, conversation.ErrOpenMessage)
	assert.Equal(t, 2, tr.Len())
}

func TestTranscriptInterrupt(t *testing.T) {
	tr := conversation.NewTranscript()
	assert.False(t, tr.Interrupt(), "empty transcript")

	_, err := tr.AppendUser("hi")
	require.NoError(t, err)
	assert.False(t, tr.Interrupt(), "user tail")

	tr.UpsertAssistant(models.Message{Content: "Hel", StreamingState: models.StreamingStateStreaming})
	require.True(t, tr.Interrupt())

	tail, _ := tr.Tail()
	assert.Equal(t, "Hel", tail.Content)
	assert.Equal(t, models.StreamingStateInterrupted, tail.StreamingState)
	assert.False(t, tr.Interrupt(), "already interrupted")

	_, err = tr.AppendUser("next")
	require.NoError(t, err)
}

func TestTranscriptMessagesIsSnapshot(t *testing.T) {
	tr := conversation.NewTranscript()
	_, err := tr.AppendUser("hi")
	require.NoError(t, err)
	tr.UpsertAssistant(models.Message{
		Content:        "done",
		ToolsUsed:      []string{"search_flights"},
		StreamingState: models.StreamingStateEnded,
	})

	msgs := tr.Messages()
	msgs[1].ToolsUsed[0] = "changed"
	msgs[0].Content = "changed"

	again := tr.Messages()
	assert.Equal(t, "hi", again[0].Content)
	assert.Equal(t, []string{"search_flights"}, again[1].ToolsUsed)
}

func TestTranscriptSubscribe(t *testing.T) {
	tr := conversation.NewTranscript()

	var updates []conversation.Update
	unsubscribe := tr.Subscribe(func(u conversation.Update) {
		updates = append(updates, u)
	})

	_, err := tr.AppendUser("hi")
	require.NoError(t, err)
	tr.UpsertAssistant(models.Message{Content: "Hel", StreamingState: models.StreamingStateStreaming})
	tr.UpsertAssistant(models.Message{Content: "Hello", StreamingState: models.StreamingStateStreaming})
	tr.Interrupt()

	require.Len(t, updates, 4)
	assert.Equal(t, 0, updates[0].Index)
	assert.False(t, updates[0].Replaced)
	assert.Equal(t, 1, updates[1].Index)
	assert.False(t, updates[1].Replaced)
	assert.Equal(t, 1, updates[2].Index)
	assert.True(t, updates[2].Replaced)
	assert.Equal(t, "Hello", updates[2].Message.Content)
	assert.Equal(t, models.StreamingStateInterrupted, updates[3].Message.StreamingState)

	unsubscribe()
	_, err = tr.AppendUser("more")
	require.NoError(t, err)
	assert.Len(t, updates, 4)
}

func TestTranscriptConcurrentReaders(t *testing.T) {
	tr := conversation.NewTranscript()
	_, err := tr.AppendUser("hi")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				msgs := tr.Messages()
				if len(msgs) < 1 || msgs[0].Role != models.RoleUser {
					t.Errorf("unexpected snapshot: %+v", msgs)
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		tr.UpsertAssistant(models.Message{Content: "x", StreamingState: models.StreamingStateStreaming})
	}
	wg.Wait()

	assert.Equal(t, 2, tr.Len())
}
