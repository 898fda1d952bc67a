package repositories

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"chatcore/domain/chat"
	"chatcore/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// dmCreateAttempts bounds the retry-as-lookup loop when two callers race on
// the same direct-conversation pair.
const dmCreateAttempts = 3

// mutateAttempts bounds conflict retries on conversation mutations. Each
// commit round lets at least one writer through, so contention resolves in
// at most as many rounds as there are racing writers.
const mutateAttempts = 10

type IConversationRepository interface {
	Create(conv chat.Conversation) error
	Get(id chat.ConversationID) (chat.Conversation, error)
	Mutate(id chat.ConversationID, fn func(*chat.Conversation) error) (chat.Conversation, error)
	ListForUser(user chat.UserID, limit, offset int, includeArchived bool) ([]chat.Conversation, error)
	SearchByName(user chat.UserID, query string, limit int) ([]chat.Conversation, error)
	GetOrCreateDirect(a, b chat.UserID, build func() chat.Conversation) (chat.Conversation, bool, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func convKey(id chat.ConversationID) []byte {
	return []byte("conv:" + id)
}

func dmKey(a, b chat.UserID) []byte {
	return []byte("dm:" + chat.DirectKey(a, b))
}

func userConvKey(user chat.UserID, id chat.ConversationID) []byte {
	return []byte(fmt.Sprintf("convuser:%s:%s", user, id))
}

func userConvPrefix(user chat.UserID) []byte {
	return []byte(fmt.Sprintf("convuser:%s:", user))
}

func (r *ConversationRepository) Create(conv chat.Conversation) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return writeConversation(txn, conv)
	})
	if err != nil {
		return fmt.Errorf("%w: creating conversation: %v", errors.ErrStorage, err)
	}
	return nil
}

// writeConversation stores the record and the per-participant index entries
// used by ListForUser prefix scans.
func writeConversation(txn *badger.Txn, conv chat.Conversation) error {
	data, err := cbor.Marshal(conv)
	if err != nil {
		return err
	}
	if err := txn.Set(convKey(conv.ID), data); err != nil {
		return err
	}
	for _, p := range conv.Participants {
		if err := txn.Set(userConvKey(p, conv.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *ConversationRepository) Get(id chat.ConversationID) (chat.Conversation, error) {
	var conv chat.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := readConversation(txn, id)
		if err != nil {
			return err
		}
		conv = found
		return nil
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Conversation{}, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("%w: reading conversation: %v", errors.ErrStorage, err)
	}
	return conv, nil
}

func readConversation(txn *badger.Txn, id chat.ConversationID) (chat.Conversation, error) {
	var conv chat.Conversation
	item, err := txn.Get(convKey(id))
	if err != nil {
		return conv, err
	}
	err = item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &conv)
	})
	return conv, err
}

// Mutate applies a read-modify-write inside one transaction: fn always sees
// the current record, so a stale copy can never overwrite a concurrent edit
// or deletion. Racing writers trip Badger's conflict detection and retry on
// a fresh read. The participant set is immutable after creation, so index
// entries never need rebuilding.
func (r *ConversationRepository) Mutate(id chat.ConversationID, fn func(*chat.Conversation) error) (chat.Conversation, error) {
	for attempt := 0; attempt < mutateAttempts; attempt++ {
		var conv chat.Conversation
		err := r.db.Update(func(txn *badger.Txn) error {
			found, err := readConversation(txn, id)
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
			if err := txn.Set(convKey(id), data); err != nil {
				return err
			}
			conv = found
			return nil
		})
		switch {
		case err == nil:
			return conv, nil
		case stderrors.Is(err, badger.ErrConflict):
			continue
		case stderrors.Is(err, badger.ErrKeyNotFound):
			return chat.Conversation{}, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, id)
		case stderrors.Is(err, errors.ErrNotFound), stderrors.Is(err, errors.ErrForbidden):
			// fn rejected the mutation; pass its verdict through untouched.
			return chat.Conversation{}, err
		default:
			return chat.Conversation{}, fmt.Errorf("%w: mutating conversation: %v", errors.ErrStorage, err)
		}
	}
	return chat.Conversation{}, fmt.Errorf("%w: conversation %s mutation kept conflicting", errors.ErrConflict, id)
}

// GetOrCreateDirect resolves the canonical conversation for an unordered
// user pair, creating it when absent. Badger's transaction conflict
// detection serializes racing first-writers: the loser gets ErrConflict and
// retries, finding the winner's row on the next attempt. At most one
// conversation ever exists per pair.
func (r *ConversationRepository) GetOrCreateDirect(a, b chat.UserID, build func() chat.Conversation) (chat.Conversation, bool, error) {
	var lastErr error
	for attempt := 0; attempt < dmCreateAttempts; attempt++ {
		var conv chat.Conversation
		created := false

		err := r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(dmKey(a, b))
			if err == nil {
				var id chat.ConversationID
				if err := item.Value(func(val []byte) error {
					id = chat.ConversationID(val)
					return nil
				}); err != nil {
					return err
				}
				existing, err := readConversation(txn, id)
				if err != nil {
					return err
				}
				if !existing.Deleted() {
					conv = existing
					return nil
				}
				// A deleted direct conversation no longer counts; fall
				// through and replace the pair mapping with a fresh one.
			} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			fresh := build()
			if err := txn.Set(dmKey(a, b), []byte(fresh.ID)); err != nil {
				return err
			}
			if err := writeConversation(txn, fresh); err != nil {
				return err
			}
			conv = fresh
			created = true
			return nil
		})

		if err == nil {
			return conv, created, nil
		}
		if stderrors.Is(err, badger.ErrConflict) {
			// Lost the race: the other writer committed first. Retry as a
			// lookup rather than surfacing the conflict.
			lastErr = fmt.Errorf("%w: direct conversation race", errors.ErrConflict)
			continue
		}
		return chat.Conversation{}, false, fmt.Errorf("%w: direct conversation: %v", errors.ErrStorage, err)
	}
	return chat.Conversation{}, false, lastErr
}

func (r *ConversationRepository) ListForUser(user chat.UserID, limit, offset int, includeArchived bool) ([]chat.Conversation, error) {
	convs, err := r.scanForUser(user, func(c chat.Conversation) bool {
		if c.Deleted() {
			return false
		}
		return includeArchived || !c.Archived()
	})
	if err != nil {
		return nil, err
	}
	return paginate(convs, limit, offset), nil
}

func (r *ConversationRepository) SearchByName(user chat.UserID, query string, limit int) ([]chat.Conversation, error) {
	needle := strings.ToLower(query)
	convs, err := r.scanForUser(user, func(c chat.Conversation) bool {
		return !c.Deleted() && strings.Contains(strings.ToLower(c.Name), needle)
	})
	if err != nil {
		return nil, err
	}
	return paginate(convs, limit, 0), nil
}

// scanForUser walks the participant index and loads every matching
// conversation, most recently updated first.
func (r *ConversationRepository) scanForUser(user chat.UserID, keep func(chat.Conversation) bool) ([]chat.Conversation, error) {
	var convs []chat.Conversation
	prefix := userConvPrefix(user)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := chat.ConversationID(it.Item().Key()[len(prefix):])
			conv, err := readConversation(txn, id)
			if err != nil {
				return err
			}
			if keep(conv) {
				convs = append(convs, conv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing conversations: %v", errors.ErrStorage, err)
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func paginate(convs []chat.Conversation, limit, offset int) []chat.Conversation {
	if offset >= len(convs) {
		return nil
	}
	convs = convs[offset:]
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs
}
