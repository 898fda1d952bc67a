package repositories

import (
	stderrors "errors"
	"fmt"

	"chatcore/domain/chat"
	"chatcore/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

type IMessageRepository interface {
	Store(m chat.Message) error
	Get(id chat.MessageID) (chat.Message, error)
	Mutate(id chat.MessageID, fn func(*chat.Message) error) (chat.Message, error)
	List(conv chat.ConversationID, limit, offset int) ([]chat.Message, error)
	Latest(conv chat.ConversationID) (*chat.Message, error)
	MarkRead(id chat.MessageID, user chat.UserID) (chat.Message, bool, error)
	MarkConversationRead(conv chat.ConversationID, user chat.UserID) ([]chat.MessageID, error)
	CountUnread(conv chat.ConversationID, user chat.UserID) (int, error)
}

type MessageRepository struct {
	db *badger.DB
}

func NewMessageRepository(db *badger.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// msgKey is formatted as "msg:{conversation}:{timestamp_padded}:{id}" so a
// prefix scan yields chronological order. The 19-digit zero padding keeps
// lexicographical and numeric order aligned; the id disambiguates two
// messages landing on the same nanosecond.
func msgKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ConversationID, m.CreatedAt.UnixNano(), m.ID))
}

func msgPrefix(conv chat.ConversationID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conv))
}

// msgIndexKey maps a message id to its chronological key, for id lookups.
func msgIndexKey(id chat.MessageID) []byte {
	return []byte("msgix:" + id)
}

func (r *MessageRepository) Store(m chat.Message) error {
	data, err := cbor.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: encoding message: %v", errors.ErrStorage, err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(msgKey(m), data); err != nil {
			return err
		}
		return txn.Set(msgIndexKey(m.ID), msgKey(m))
	})
	if err != nil {
		return fmt.Errorf("%w: storing message: %v", errors.ErrStorage, err)
	}
	return nil
}

func (r *MessageRepository) Get(id chat.MessageID) (chat.Message, error) {
	var m chat.Message
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := readMessageByID(txn, id)
		if err != nil {
			return err
		}
		m = found
		return nil
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Message{}, fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: reading message: %v", errors.ErrStorage, err)
	}
	return m, nil
}

func readMessageByID(txn *badger.Txn, id chat.MessageID) (chat.Message, error) {
	var m chat.Message
	idx, err := txn.Get(msgIndexKey(id))
	if err != nil {
		return m, err
	}
	var key []byte
	if err := idx.Value(func(val []byte) error {
		key = append(key, val...)
		return nil
	}); err != nil {
		return m, err
	}
	item, err := txn.Get(key)
	if err != nil {
		return m, err
	}
	err = item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &m)
	})
	return m, err
}

// Mutate applies a read-modify-write inside one transaction, so a stale
// copy never overwrites concurrent changes to the read-by set or the
// deletion flag. CreatedAt never changes after Store, so the chronological
// key stays stable across rewrites.
func (r *MessageRepository) Mutate(id chat.MessageID, fn func(*chat.Message) error) (chat.Message, error) {
	for attempt := 0; attempt < mutateAttempts; attempt++ {
		var m chat.Message
		err := r.db.Update(func(txn *badger.Txn) error {
			found, err := readMessageByID(txn, id)
			if err != nil {
				return err
			}
			if err := fn(&found); err != nil {
				return err
			}
			data, err := cbor.Marshal(found)
			if err != nil {
				return err
			}
			if err := txn.Set(msgKey(found), data); err != nil {
				return err
			}
			m = found
			return nil
		})
		switch {
		case err == nil:
			return m, nil
		case stderrors.Is(err, badger.ErrConflict):
			continue
		case stderrors.Is(err, badger.ErrKeyNotFound):
			return chat.Message{}, fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
		case stderrors.Is(err, errors.ErrNotFound), stderrors.Is(err, errors.ErrForbidden):
			// fn rejected the mutation; pass its verdict through untouched.
			return chat.Message{}, err
		default:
			return chat.Message{}, fmt.Errorf("%w: mutating message: %v", errors.ErrStorage, err)
		}
	}
	return chat.Message{}, fmt.Errorf("%w: message %s mutation kept conflicting", errors.ErrConflict, id)
}

// List returns messages in creation-time ascending order, skipping offset
// entries and returning at most limit (no cap when limit <= 0).
// Soft-deleted messages are included: flagging them is the reader's concern.
func (r *MessageRepository) List(conv chat.ConversationID, limit, offset int) ([]chat.Message, error) {
	var msgs []chat.Message
	err := r.walk(conv, func(m chat.Message) bool {
		if offset > 0 {
			offset--
			return true
		}
		msgs = append(msgs, m)
		return limit <= 0 || len(msgs) < limit
	})
	return msgs, err
}

func (r *MessageRepository) Latest(conv chat.ConversationID) (*chat.Message, error) {
	var latest *chat.Message
	prefix := msgPrefix(conv)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key, then step back into the prefix.
		seekKey := append(append([]byte{}, prefix...), 0xff)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		var m chat.Message
		if err := it.Item().Value(func(val []byte) error {
			return cbor.Unmarshal(val, &m)
		}); err != nil {
			return err
		}
		latest = &m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading latest message: %v", errors.ErrStorage, err)
	}
	return latest, nil
}

func (r *MessageRepository) CountUnread(conv chat.ConversationID, user chat.UserID) (int, error) {
	count := 0
	err := r.walk(conv, func(m chat.Message) bool {
		if m.UnreadBy(user) {
			count++
		}
		return true
	})
	return count, err
}

// MarkRead adds user to the read-by set. Returns the updated message and
// whether the set actually changed; re-marking is a no-op.
func (r *MessageRepository) MarkRead(id chat.MessageID, user chat.UserID) (chat.Message, bool, error) {
	var m chat.Message
	changed := false
	err := r.db.Update(func(txn *badger.Txn) error {
		found, err := readMessageByID(txn, id)
		if err != nil {
			return err
		}
		m = found
		if !m.MarkRead(user) {
			return nil
		}
		changed = true
		data, err := cbor.Marshal(m)
		if err != nil {
			return err
		}
		return txn.Set(msgKey(m), data)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Message{}, false, fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return chat.Message{}, false, fmt.Errorf("%w: marking message read: %v", errors.ErrStorage, err)
	}
	return m, changed, nil
}

// MarkConversationRead acknowledges every unread message of the
// conversation for the user inside a single transaction, so a concurrent
// reader never observes a half-applied bulk read.
func (r *MessageRepository) MarkConversationRead(conv chat.ConversationID, user chat.UserID) ([]chat.MessageID, error) {
	var marked []chat.MessageID
	prefix := msgPrefix(conv)
	err := r.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m chat.Message
			if err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			if !m.UnreadBy(user) {
				continue
			}
			m.MarkRead(user)
			data, err := cbor.Marshal(m)
			if err != nil {
				return err
			}
			if err := txn.Set(msgKey(m), data); err != nil {
				return err
			}
			marked = append(marked, m.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marking conversation read: %v", errors.ErrStorage, err)
	}
	return marked, nil
}

func (r *MessageRepository) walk(conv chat.ConversationID, visit func(chat.Message) bool) error {
	prefix := msgPrefix(conv)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m chat.Message
			if err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			if !visit(m) {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: scanning messages: %v", errors.ErrStorage, err)
	}
	return nil
}
