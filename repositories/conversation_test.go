package repositories

import (
	"sync"
	"testing"
	"time"

	"chatcore/domain/chat"
	"chatcore/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newConversation(name string, participants ...chat.UserID) chat.Conversation {
	now := time.Now().UTC()
	return chat.Conversation{
		ID:           chat.ConversationID(uuid.NewString()),
		Name:         name,
		IsGroup:      len(participants) > 2,
		Participants: participants,
		CreatedBy:    participants[0],
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func Test_Create_Then_Get(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	conv := newConversation("team", "alice", "bob", "clara")

	req.NoError(repository.Create(conv))

	fetched, err := repository.Get(conv.ID)
	req.NoError(err)
	req.Equal(conv.Name, fetched.Name)
	req.ElementsMatch(conv.Participants, fetched.Participants)
}

func Test_Get_Unknown_Conversation_Is_NotFound(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	_, err := repository.Get("missing")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_ListForUser_Returns_Only_Their_Conversations(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	// Given two conversations with alice and one without
	req.NoError(repository.Create(newConversation("a", "alice", "bob")))
	req.NoError(repository.Create(newConversation("b", "alice", "clara")))
	req.NoError(repository.Create(newConversation("c", "bob", "clara")))

	convs, err := repository.ListForUser("alice", 0, 0, false)
	req.NoError(err)
	req.Len(convs, 2)
}

func Test_ListForUser_Skips_Deleted_And_Optionally_Archived(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	now := time.Now().UTC()

	live := newConversation("live", "alice", "bob")
	req.NoError(repository.Create(live))

	deleted := newConversation("deleted", "alice", "bob")
	deleted.DeletedAt = &now
	req.NoError(repository.Create(deleted))

	archived := newConversation("archived", "alice", "bob")
	archived.ArchivedAt = &now
	req.NoError(repository.Create(archived))

	// When listing without archived
	convs, err := repository.ListForUser("alice", 0, 0, false)
	req.NoError(err)
	req.Len(convs, 1)
	req.Equal("live", convs[0].Name)

	// When including archived
	convs, err = repository.ListForUser("alice", 0, 0, true)
	req.NoError(err)
	req.Len(convs, 2)
}

func Test_ListForUser_Orders_By_Most_Recent_Activity(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	at := time.Now().UTC()

	older := newConversation("older", "alice", "bob")
	older.UpdatedAt = at.Add(-time.Hour)
	req.NoError(repository.Create(older))

	newer := newConversation("newer", "alice", "clara")
	newer.UpdatedAt = at
	req.NoError(repository.Create(newer))

	convs, err := repository.ListForUser("alice", 0, 0, false)
	req.NoError(err)
	req.Len(convs, 2)
	req.Equal("newer", convs[0].Name)
	req.Equal("older", convs[1].Name)
}

func Test_SearchByName_Is_Case_Insensitive(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	req.NoError(repository.Create(newConversation("Project Atlas", "alice", "bob")))
	req.NoError(repository.Create(newConversation("random", "alice", "bob")))

	convs, err := repository.SearchByName("alice", "atlas", 0)
	req.NoError(err)
	req.Len(convs, 1)
	req.Equal("Project Atlas", convs[0].Name)
}

func Test_GetOrCreateDirect_Creates_Then_Finds(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	// When resolving the pair twice
	first, created, err := repository.GetOrCreateDirect("alice", "bob", func() chat.Conversation {
		return newConversation("", "alice", "bob")
	})
	req.NoError(err)
	req.True(created)

	second, created, err := repository.GetOrCreateDirect("bob", "alice", func() chat.Conversation {
		return newConversation("", "bob", "alice")
	})
	req.NoError(err)

	// Then the second call finds the first conversation, pair order ignored
	req.False(created)
	req.Equal(first.ID, second.ID)
}

func Test_GetOrCreateDirect_Concurrent_Callers_Yield_One_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	// When many goroutines race on the same pair
	const callers = 16
	ids := make([]chat.ConversationID, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			conv, _, err := repository.GetOrCreateDirect("alice", "bob", func() chat.Conversation {
				return newConversation("", "alice", "bob")
			})
			require.NoError(t, err)
			ids[n] = conv.ID
		}(i)
	}
	wg.Wait()

	// Then every caller got the same conversation
	for _, id := range ids {
		req.Equal(ids[0], id)
	}
}

func Test_GetOrCreateDirect_Replaces_Deleted_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	// Given a direct conversation that was deleted
	original, _, err := repository.GetOrCreateDirect("alice", "bob", func() chat.Conversation {
		return newConversation("", "alice", "bob")
	})
	req.NoError(err)
	_, err = repository.Mutate(original.ID, func(c *chat.Conversation) error {
		now := time.Now().UTC()
		c.DeletedAt = &now
		return nil
	})
	req.NoError(err)

	// When resolving the pair again
	replacement, created, err := repository.GetOrCreateDirect("alice", "bob", func() chat.Conversation {
		return newConversation("", "alice", "bob")
	})
	req.NoError(err)

	// Then a fresh conversation replaces the dead one
	req.True(created)
	req.NotEqual(original.ID, replacement.ID)
}

func Test_Mutate_Operates_On_The_Current_Record(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	conv := newConversation("team", "alice", "bob")
	req.NoError(repository.Create(conv))

	// Given a writer holding a stale copy from before a deletion
	stale, err := repository.Get(conv.ID)
	req.NoError(err)
	_, err = repository.Mutate(conv.ID, func(c *chat.Conversation) error {
		now := time.Now().UTC()
		c.DeletedAt = &now
		return nil
	})
	req.NoError(err)

	// When the stale writer bumps the activity timestamp
	_, err = repository.Mutate(stale.ID, func(c *chat.Conversation) error {
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
	req.NoError(err)

	// Then the deletion survives: the bump saw the current record, not the copy
	current, err := repository.Get(conv.ID)
	req.NoError(err)
	req.True(current.Deleted())
}

func Test_Mutate_Concurrent_Writers_All_Apply(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	conv := newConversation("team", "alice", "bob")
	req.NoError(repository.Create(conv))

	// When several writers mutate the same record at once
	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repository.Mutate(conv.ID, func(c *chat.Conversation) error {
				c.Description += "x"
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// Then no write was lost: conflicts retried on a fresh read
	current, err := repository.Get(conv.ID)
	req.NoError(err)
	req.Len(current.Description, writers)
}

func Test_Mutate_Unknown_Conversation_Is_NotFound(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	_, err := repository.Mutate("missing", func(c *chat.Conversation) error {
		c.Name = "never applied"
		return nil
	})
	req.ErrorIs(err, errors.ErrNotFound)
}
