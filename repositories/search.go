package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"chatcore/domain/chat"
	"chatcore/errors"

	"github.com/blugelabs/bluge"
)

type IMessageIndex interface {
	Index(m chat.Message) error
	Delete(id chat.MessageID) error
	Search(ctx context.Context, conv chat.ConversationID, query string, limit int) ([]chat.MessageID, error)
}

// MessageIndex maintains a Bluge full-text index over message content.
// The index is derived data: the Badger records stay authoritative and the
// index can always be rebuilt from them.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

func (ix *MessageIndex) Index(m chat.Message) error {
	doc := bluge.NewDocument(string(m.ID)).
		AddField(bluge.NewKeywordField("conversation_id", string(m.ConversationID))).
		AddField(bluge.NewTextField("content", m.Content)).
		AddField(bluge.NewNumericField("created_at", float64(m.CreatedAt.UnixNano())).Sortable())

	if err := ix.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("%w: indexing message: %v", errors.ErrStorage, err)
	}
	return nil
}

func (ix *MessageIndex) Delete(id chat.MessageID) error {
	if err := ix.writer.Delete(bluge.Identifier(string(id))); err != nil {
		return fmt.Errorf("%w: removing message from index: %v", errors.ErrStorage, err)
	}
	return nil
}

// Search returns message ids whose content contains every word of the
// query (case-insensitive), scoped to one conversation, newest first.
// Query words are quoted before entering the regexp, so metacharacters in
// user input match literally instead of rewriting the pattern.
func (ix *MessageIndex) Search(ctx context.Context, conv chat.ConversationID, query string, limit int) ([]chat.MessageID, error) {
	boolean := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(conv)).SetField("conversation_id"))
	for _, word := range strings.Fields(strings.ToLower(query)) {
		boolean.AddMust(bluge.NewRegexpQuery(".*" + regexp.QuoteMeta(word) + ".*").SetField("content"))
	}

	reader, err := ix.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: opening index reader: %v", errors.ErrStorage, err)
	}
	defer reader.Close()

	request := bluge.NewTopNSearch(limit, boolean).SortBy([]string{"-created_at"})
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: searching index: %v", errors.ErrStorage, err)
	}

	var ids []chat.MessageID
	match, err := iterator.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, chat.MessageID(value))
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: iterating search results: %v", errors.ErrStorage, err)
	}
	return ids, nil
}
