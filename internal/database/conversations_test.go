package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversations(t *testing.T) {
	db := NewTestDB(t)
	consultant := CreateTestConsultant(t, db)

	t.Run("create and get", func(t *testing.T) {
		conv, err := db.CreateConversation(consultant.ID, ConversationPublic, OriginWeb, "", "")
		require.NoError(t, err)
		assert.Len(t, conv.ID, 36)

		got, err := db.GetConversation(conv.ID)
		require.NoError(t, err)
		assert.Equal(t, ConversationPublic, got.Kind)
		assert.True(t, got.Ref().Public)
	})

	t.Run("client conversation is reused", func(t *testing.T) {
		first, err := db.GetOrCreateClientConversation(consultant.ID, OriginWhatsApp, "39333123456", "Mario")
		require.NoError(t, err)
		second, err := db.GetOrCreateClientConversation(consultant.ID, OriginWhatsApp, "39333123456", "Mario")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, ConversationInternal, second.Kind)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		_, err := db.GetConversation("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMessageHistory(t *testing.T) {
	db := NewTestDB(t)
	consultant := CreateTestConsultant(t, db)
	conv := CreateTestConversation(t, db, consultant.ID, ConversationInternal)

	for i := 0; i < 5; i++ {
		sender := SenderClient
		if i%2 == 1 {
			sender = SenderAI
		}
		_, err := db.AppendMessage(conv.ID, sender, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	t.Run("history is chronological and limited", func(t *testing.T) {
		history, err := db.GetHistory(conv.ID, 3)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "message 2", history[0].Text)
		assert.Equal(t, "message 4", history[2].Text)
		assert.Equal(t, SenderClient, history[2].Sender)
	})

	t.Run("prune keeps newest messages", func(t *testing.T) {
		deleted, err := db.PruneConversationHistory(2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)

		history, err := db.GetHistory(conv.ID, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "message 3", history[0].Text)
	})
}

func TestSlotCacheColumns(t *testing.T) {
	db := NewTestDB(t)
	consultant := CreateTestConsultant(t, db)
	conv := CreateTestConversation(t, db, consultant.ID, ConversationPublic)

	payload, fetchedAt, err := db.GetCachedSlots(conv.ID)
	require.NoError(t, err)
	assert.Empty(t, payload)
	assert.Nil(t, fetchedAt)

	old := time.Now().Add(-72 * time.Hour)
	require.NoError(t, db.SaveCachedSlots(conv.ID, `[{"start":"x"}]`, old))

	payload, fetchedAt, err = db.GetCachedSlots(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, `[{"start":"x"}]`, payload)
	require.NotNil(t, fetchedAt)

	cleared, err := db.ClearExpiredSlotCaches(time.Now().Add(-48 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	_, fetchedAt, err = db.GetCachedSlots(conv.ID)
	require.NoError(t, err)
	assert.Nil(t, fetchedAt)
}
