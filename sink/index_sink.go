package sink

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"log/slog"
)

var _ contract.EventSink = (*IndexSink)(nil)

// IndexSink keeps the full-text index in step with the envelopes that were broadcast.
type IndexSink struct {
	index contract.MessageIndex
	log   *slog.Logger
}

func NewIndexSink(index contract.MessageIndex, log *slog.Logger) *IndexSink {
	return &IndexSink{index: index, log: log}
}

// Consume implements the EventSink interface.
// Error envelopes never reach the sinks and are ignored if they do.
func (s *IndexSink) Consume(ctx context.Context, e event.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch evt := e.(type) {
	case event.NewMessage:
		return s.index.Index(toMessage(evt.MessagePayload))
	case event.UpdatedMessage:
		return s.index.Index(toMessage(evt.MessagePayload))
	case event.DeletedMessage:
		return s.index.Remove(evt.ID)
	default:
		s.log.Debug("Envelope ignored by index", "type", e.Type())
		return nil
	}
}

func toMessage(p event.MessagePayload) chat.Message {
	return chat.Message{
		ID:          p.ID,
		Content:     p.Content,
		AuthorID:    p.AuthorID,
		GroupID:     p.GroupID,
		RecipientID: p.RecipientID,
		At:          p.Timestamp,
		Edited:      p.Edited,
	}
}
