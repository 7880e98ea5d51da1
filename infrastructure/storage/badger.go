package storage

import (
	"context"
	"errors"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

const (
	sequenceBandwidth = 100
	maxConflictRetry  = 5
)

// Open opens the badger database with the server logging level.
func Open(path string) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
}

// OpenReadOnly opens an existing database without taking the directory lock,
// so that it can be inspected while the server runs.
func OpenReadOnly(path string) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR))
}

// update runs fn in a read-write transaction and replays it when another
// transaction committed a conflicting write in the meantime.
func update(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetry; i++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// nextID returns a strictly positive identifier.
func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return int64(n) + 1, nil
}

// scanIDs walks the keys under prefix whose suffix is a padded ID.
// With reverse set, the newest IDs come first. Iteration starts after the
// cursor and stops after limit keys when limit is positive. The returned
// cursor is set when the limit has been reached.
func scanIDs(txn *badger.Txn, prefix string, reverse bool, cursor *string, limit int) ([]int64, *string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = reverse
	it := txn.NewIterator(opts)
	defer it.Close()

	prefixBytes := []byte(prefix)
	var seekKey []byte
	switch {
	case cursor != nil:
		seekKey = []byte(prefix + *cursor)
	case reverse:
		// '~' sorts after every digit
		seekKey = []byte(prefix + "~")
	default:
		seekKey = prefixBytes
	}

	var ids []int64
	var last string
	for it.Seek(seekKey); it.ValidForPrefix(prefixBytes); it.Next() {
		key := it.Item().Key()
		if cursor != nil && string(key) == string(seekKey) {
			continue
		}
		if limit > 0 && len(ids) == limit {
			return ids, &last, nil
		}
		suffix := string(key[len(prefixBytes):])
		id, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		last = suffix
	}
	return ids, nil, nil
}
