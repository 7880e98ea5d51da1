package storage

import (
	"chat-relay/domain/chat"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in the protobuf wire format so that they stay readable
// by any protobuf tooling and tolerate new fields.

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	return appendVarint(b, num, protowire.EncodeZigZag(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// field is one decoded key/value of a record.
type field struct {
	num    protowire.Number
	varint uint64
	bytes  []byte
}

func (f field) string() string { return string(f.bytes) }
func (f field) sint() int64    { return protowire.DecodeZigZag(f.varint) }

func decodeFields(b []byte, visit func(f field)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("corrupted record: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("corrupted record: %w", protowire.ParseError(n))
			}
			visit(field{num: num, varint: v})
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("corrupted record: %w", protowire.ParseError(n))
			}
			visit(field{num: num, bytes: v})
			b = b[n:]
		default:
			// Unknown wire type from a newer writer
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("corrupted record: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

const (
	messageIDField protowire.Number = iota + 1
	messageContentField
	messageAuthorField
	messageGroupField
	messageRecipientField
	messageAtField
	messageEditedField
)

func EncodeMessage(m chat.Message) []byte {
	var b []byte
	b = appendSint(b, messageIDField, int64(m.ID))
	b = appendString(b, messageContentField, m.Content)
	b = appendSint(b, messageAuthorField, int64(m.AuthorID))
	if m.GroupID != nil {
		b = appendSint(b, messageGroupField, int64(*m.GroupID))
	}
	if m.RecipientID != nil {
		b = appendSint(b, messageRecipientField, int64(*m.RecipientID))
	}
	b = appendSint(b, messageAtField, m.At.UnixNano())
	b = appendVarint(b, messageEditedField, uint64(m.Edited))
	return b
}

func DecodeMessage(b []byte) (chat.Message, error) {
	var m chat.Message
	err := decodeFields(b, func(f field) {
		switch f.num {
		case messageIDField:
			m.ID = chat.MessageID(f.sint())
		case messageContentField:
			m.Content = f.string()
		case messageAuthorField:
			m.AuthorID = chat.UserID(f.sint())
		case messageGroupField:
			g := chat.GroupID(f.sint())
			m.GroupID = &g
		case messageRecipientField:
			u := chat.UserID(f.sint())
			m.RecipientID = &u
		case messageAtField:
			m.At = time.Unix(0, f.sint()).UTC()
		case messageEditedField:
			m.Edited = int(f.varint)
		}
	})
	return m, err
}

const (
	userIDField protowire.Number = iota + 1
	userUsernameField
	userPasswordHashField
	userAvatarField
	userCreatedAtField
)

func EncodeUser(u chat.User) []byte {
	var b []byte
	b = appendSint(b, userIDField, int64(u.ID))
	b = appendString(b, userUsernameField, u.Username)
	b = appendString(b, userPasswordHashField, u.PasswordHash)
	b = appendString(b, userAvatarField, u.Avatar)
	b = appendSint(b, userCreatedAtField, u.CreatedAt.UnixNano())
	return b
}

func DecodeUser(b []byte) (chat.User, error) {
	var u chat.User
	err := decodeFields(b, func(f field) {
		switch f.num {
		case userIDField:
			u.ID = chat.UserID(f.sint())
		case userUsernameField:
			u.Username = f.string()
		case userPasswordHashField:
			u.PasswordHash = f.string()
		case userAvatarField:
			u.Avatar = f.string()
		case userCreatedAtField:
			u.CreatedAt = time.Unix(0, f.sint()).UTC()
		}
	})
	return u, err
}

const (
	groupIDField protowire.Number = iota + 1
	groupNameField
	groupBackgroundField
	groupCreatedAtField
)

func EncodeGroup(g chat.Group) []byte {
	var b []byte
	b = appendSint(b, groupIDField, int64(g.ID))
	b = appendString(b, groupNameField, g.Name)
	if g.Background != nil {
		b = appendString(b, groupBackgroundField, *g.Background)
	}
	b = appendSint(b, groupCreatedAtField, g.CreatedAt.UnixNano())
	return b
}

func DecodeGroup(b []byte) (chat.Group, error) {
	var g chat.Group
	err := decodeFields(b, func(f field) {
		switch f.num {
		case groupIDField:
			g.ID = chat.GroupID(f.sint())
		case groupNameField:
			g.Name = f.string()
		case groupBackgroundField:
			bg := f.string()
			g.Background = &bg
		case groupCreatedAtField:
			g.CreatedAt = time.Unix(0, f.sint()).UTC()
		}
	})
	return g, err
}
