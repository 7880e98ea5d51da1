package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type RecordKind string

const (
	KindMessage  RecordKind = "MESSAGE"
	KindUser     RecordKind = "USER"
	KindGroup    RecordKind = "GROUP"
	KindIndex    RecordKind = "INDEX"
	KindSequence RecordKind = "SEQUENCE"
	KindRaw      RecordKind = "RAW"
)

// Record is the readable form of one badger entry, shown by the inspectors.
type Record struct {
	Key    string
	Kind   RecordKind
	ID     int64
	At     time.Time
	Detail string
}

// Describe decodes a raw entry according to its key prefix.
// Password hashes are never part of the output.
func Describe(key string, val []byte) Record {
	record := Record{Key: key, Kind: KindRaw, Detail: fmt.Sprintf("%d bytes", len(val))}
	var err error
	switch {
	case strings.HasPrefix(key, MessagePrefix):
		record.Kind = KindMessage
		err = record.fill(decodeMessageView(val))
	case strings.HasPrefix(key, UserPrefix):
		record.Kind = KindUser
		err = record.fill(decodeUserView(val))
	case strings.HasPrefix(key, GroupPrefix):
		record.Kind = KindGroup
		err = record.fill(decodeGroupView(val))
	case strings.HasPrefix(key, "seq:"):
		record.Kind = KindSequence
	case strings.HasPrefix(key, MessageByGroupPrefix),
		strings.HasPrefix(key, MessageByRecipientPref),
		strings.HasPrefix(key, UsernamePrefix),
		strings.HasPrefix(key, MemberPrefix),
		strings.HasPrefix(key, UserGroupPrefix):
		record.Kind, record.Detail = KindIndex, string(val)
	}
	if err != nil {
		record.Kind, record.Detail = KindRaw, "undecodable: "+err.Error()
	}
	return record
}

// ScanRecords describes at most limit entries under prefix, in key order.
// A limit of 0 reads everything.
func ScanRecords(db *badger.DB, prefix string, limit int) ([]Record, error) {
	var records []Record
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if limit > 0 && len(records) >= limit {
				return nil
			}
			item := it.Item()
			key := string(item.KeyCopy(nil))
			if err := item.Value(func(val []byte) error {
				records = append(records, Describe(key, val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}

type view struct {
	id     int64
	at     time.Time
	detail string
}

func (r *Record) fill(v view, err error) error {
	if err != nil {
		return err
	}
	r.ID, r.At, r.Detail = v.id, v.at, v.detail
	return nil
}

func decodeMessageView(val []byte) (view, error) {
	m, err := DecodeMessage(val)
	if err != nil {
		return view{}, err
	}
	target := "dm"
	switch {
	case m.GroupID != nil:
		target = fmt.Sprintf("group=%d", *m.GroupID)
	case m.RecipientID != nil:
		target = fmt.Sprintf("to=%d", *m.RecipientID)
	}
	return view{
		id:     int64(m.ID),
		at:     m.At,
		detail: fmt.Sprintf("author=%d %s edited=%d %q", m.AuthorID, target, m.Edited, m.Content),
	}, nil
}

func decodeUserView(val []byte) (view, error) {
	u, err := DecodeUser(val)
	if err != nil {
		return view{}, err
	}
	return view{id: int64(u.ID), at: u.CreatedAt, detail: u.Username}, nil
}

func decodeGroupView(val []byte) (view, error) {
	g, err := DecodeGroup(val)
	if err != nil {
		return view{}, err
	}
	detail := g.Name
	if g.Background != nil {
		detail += " (" + *g.Background + ")"
	}
	return view{id: int64(g.ID), at: g.CreatedAt, detail: detail}, nil
}
