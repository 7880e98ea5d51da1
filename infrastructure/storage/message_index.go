package storage

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"context"
	"log/slog"
	"strconv"

	"github.com/abadojack/whatlanggo"
	"github.com/blugelabs/bluge"
)

var _ contract.MessageIndex = (*MessageIndex)(nil)

const (
	contentField    = "content"
	groupField      = "group_id"
	langField       = "lang"
	idField         = "_id"
	undetermined    = "und"
	defaultHitLimit = 20
)

// MessageIndex is the full-text index of group messages.
// Direct messages are never indexed.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index adds or replaces the document of a message.
func (i *MessageIndex) Index(message chat.Message) error {
	if message.GroupID == nil {
		return nil
	}
	lang := DetectLanguage(message.Content)
	doc := bluge.NewDocument(strconv.FormatInt(int64(message.ID), 10)).
		AddField(bluge.NewTextField(contentField, message.Content)).
		AddField(bluge.NewKeywordField(groupField, strconv.FormatInt(int64(*message.GroupID), 10)).StoreValue()).
		AddField(bluge.NewKeywordField(langField, lang).StoreValue())
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return err
	}
	i.log.Debug("Message indexed", "id", message.ID, "lang", lang)
	return nil
}

func (i *MessageIndex) Remove(id chat.MessageID) error {
	return i.writer.Delete(bluge.Identifier(strconv.FormatInt(int64(id), 10)))
}

// Search returns the IDs of the group messages matching the query, best match first.
// An empty lang searches every language.
func (i *MessageIndex) Search(ctx context.Context, groupID chat.GroupID, query, lang string, limit int) ([]chat.MessageID, error) {
	if limit <= 0 {
		limit = defaultHitLimit
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Debug("Closing index reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField(contentField)).
		AddMust(bluge.NewTermQuery(strconv.FormatInt(int64(groupID), 10)).SetField(groupField))
	if lang != "" {
		q.AddMust(bluge.NewTermQuery(lang).SetField(langField))
	}

	dmi, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}
	var ids []chat.MessageID
	match, err := dmi.Next()
	for err == nil && match != nil {
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field != idField {
				return true
			}
			id, parseErr := strconv.ParseInt(string(value), 10, 64)
			if parseErr != nil {
				visitErr = parseErr
				return false
			}
			ids = append(ids, chat.MessageID(id))
			return false
		})
		if err == nil {
			err = visitErr
		}
		if err == nil {
			match, err = dmi.Next()
		}
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DetectLanguage returns the ISO 639-1 code of the text, or "und".
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if info.Script == nil {
		// No letter at all
		return undetermined
	}
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return undetermined
}
