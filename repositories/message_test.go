package repositories

import (
	"testing"
	"time"

	"chatcore/domain/chat"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessage(conv chat.ConversationID, sender chat.UserID, content string, at time.Time) chat.Message {
	return chat.Message{
		ID:             chat.MessageID(uuid.NewString()),
		ConversationID: conv,
		SenderID:       sender,
		Content:        content,
		ContentType:    chat.ContentTypeText,
		ReadBy:         []chat.UserID{sender},
		CreatedAt:      at,
	}
}

func Test_List_Returns_Creation_Time_Ascending(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t))
	convID := chat.ConversationID("conv-1")
	at := time.Now().UTC()

	// Given messages stored out of order
	second := newMessage(convID, "bob", "second", at.Add(time.Minute))
	first := newMessage(convID, "alice", "first", at)
	third := newMessage(convID, "clara", "third", at.Add(2*time.Minute))
	for _, m := range []chat.Message{second, first, third} {
		req.NoError(repository.Store(m))
	}

	// When listing
	msgs, err := repository.List(convID, 0, 0)
	req.NoError(err)

	// Then order follows creation time, not insertion
	req.Len(msgs, 3)
	req.Equal("first", msgs[0].Content)
	req.Equal("second", msgs[1].Content)
	req.Equal("third", msgs[2].Content)
}

func Test_List_Applies_Limit_And_Offset(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t))
	convID := chat.ConversationID("conv-1")
	at := time.Now().UTC()

	for i := 0; i < 5; i++ {
		m := newMessage(convID, "alice", string(rune('a'+i)), at.Add(time.Duration(i)*time.Second))
		req.NoError(repository.Store(m))
	}

	// When paging past the first two
	msgs, err := repository.List(convID, 2, 2)
	req.NoError(err)

	// Then the page holds the third and fourth messages
	req.Len(msgs, 2)
	req.Equal("c", msgs[0].Content)
	req.Equal("d", msgs[1].Content)
}

func Test_Get_Resolves_By_ID(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t))
	m := newMessage("conv-1", "alice", "hello", time.Now().UTC())
	req.NoError(repository.Store(m))

	fetched, err := repository.Get(m.ID)
	req.NoError(err)
	req.Equal(m.Content, fetched.Content)
	req.Equal(m.ConversationID, fetched.ConversationID)
}

func Test_MarkRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t))
	m := newMessage("conv-1", "alice", "hi", time.Now().UTC())
	req.NoError(repository.Store(m))

	// When bob reads the message twice
	first, changed, err := repository.MarkRead(m.ID, "bob")
	req.NoError(err)
	req.True(changed)
	second, changed, err := repository.MarkRead(m.ID, "bob")
	req.NoError(err)

	// Then the second call changes nothing
	req.False(changed)
	req.ElementsMatch(first.ReadBy, second.ReadBy)
	req.ElementsMatch([]chat.UserID{"alice", "bob"}, second.ReadBy)
}

func Test_MarkConversationRead_Acknowledges_All_Unread(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t))
	convID := chat.ConversationID("conv-1")
	at := time.Now().UTC()

	// Given three messages from alice and one from bob himself
	for i := 0; i < 3; i++ {
		req.NoError(repository.Store(newMessage(convID, "alice", "msg", at.Add(time.Duration(i)*time.Second))))
	}
	req.NoError(repository.Store(newMessage(convID, "bob", "mine", at.Add(4*time.Second))))

	// When bob acknowledges the whole conversation
	marked, err := repository.MarkConversationRead(convID, "bob")
	req.NoError(err)

	// Then only alice's messages were marked, and nothing stays unread
	req.Len(marked, 3)
	count, err := repository.CountUnread(convID, "bob")
	req.NoError(err)
	req.Zero(count)
}

func Test_CountUnread_Excludes_Own_And_Deleted(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t))
	convID := chat.ConversationID("conv-1")
	at := time.Now().UTC()

	// Given one unread, one deleted, and one own message
	unread := newMessage(convID, "alice", "unread", at)
	req.NoError(repository.Store(unread))

	deleted := newMessage(convID, "alice", "deleted", at.Add(time.Second))
	deletedAt := at.Add(2 * time.Second)
	deleted.DeletedAt = &deletedAt
	req.NoError(repository.Store(deleted))

	req.NoError(repository.Store(newMessage(convID, "bob", "mine", at.Add(3*time.Second))))

	// Then only the live foreign message counts for bob
	count, err := repository.CountUnread(convID, "bob")
	req.NoError(err)
	req.Equal(1, count)
}

func Test_Latest_Returns_Newest_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t))
	convID := chat.ConversationID("conv-1")
	at := time.Now().UTC()

	req.NoError(repository.Store(newMessage(convID, "alice", "old", at)))
	req.NoError(repository.Store(newMessage(convID, "bob", "new", at.Add(time.Minute))))

	latest, err := repository.Latest(convID)
	req.NoError(err)
	req.NotNil(latest)
	req.Equal("new", latest.Content)
}

func Test_Latest_Empty_Conversation_Returns_Nil(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t))

	latest, err := repository.Latest("nobody-here")
	req.NoError(err)
	req.Nil(latest)
}

func Test_Update_Keeps_Chronological_Position(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t))
	convID := chat.ConversationID("conv-1")
	at := time.Now().UTC()

	first := newMessage(convID, "alice", "first", at)
	second := newMessage(convID, "bob", "second", at.Add(time.Minute))
	req.NoError(repository.Store(first))
	req.NoError(repository.Store(second))

	// When editing the older message
	_, err := repository.Mutate(first.ID, func(m *chat.Message) error {
		editedAt := at.Add(2 * time.Minute)
		m.Content = "first (edited)"
		m.EditedAt = &editedAt
		return nil
	})
	req.NoError(err)

	// Then it keeps its position and the edit is visible
	msgs, err := repository.List(convID, 0, 0)
	req.NoError(err)
	req.Len(msgs, 2)
	req.Equal("first (edited)", msgs[0].Content)
	req.NotNil(msgs[0].EditedAt)
}

func Test_Mutate_Preserves_Concurrent_Read_Receipts(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t))
	m := newMessage("conv-1", "alice", "draft", time.Now().UTC())
	req.NoError(repository.Store(m))

	// Given an editor holding a copy from before bob's read receipt
	stale, err := repository.Get(m.ID)
	req.NoError(err)
	_, changed, err := repository.MarkRead(m.ID, "bob")
	req.NoError(err)
	req.True(changed)

	// When the edit lands through a fresh read
	_, err = repository.Mutate(stale.ID, func(m *chat.Message) error {
		m.Content = "final"
		return nil
	})
	req.NoError(err)

	// Then the receipt survives alongside the edit
	current, err := repository.Get(m.ID)
	req.NoError(err)
	req.Equal("final", current.Content)
	req.ElementsMatch([]chat.UserID{"alice", "bob"}, current.ReadBy)
}
