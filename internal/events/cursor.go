package events

import (
	"encoding/binary"

	"go.etcd.io/bbolt"
)

var (
	cursorBucket = []byte("progress")
	cursorKey    = []byte("finalized_height")
)

// Cursor persists the highest fully processed block height, so a restarted
// subscriber backfills the gap instead of silently skipping it.
type Cursor struct {
	db *bbolt.DB
}

func OpenCursor(path string) (*Cursor, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cursorBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cursor{db: db}, nil
}

// Load returns the stored height, or found=false on a fresh cursor.
func (c *Cursor) Load() (height uint64, found bool, err error) {
	err = c.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(cursorBucket).Get(cursorKey)
		if raw == nil {
			return nil
		}
		height = binary.BigEndian.Uint64(raw)
		found = true
		return nil
	})
	return height, found, err
}

func (c *Cursor) Store(height uint64) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		var raw [8]byte
		binary.BigEndian.PutUint64(raw[:], height)
		return tx.Bucket(cursorBucket).Put(cursorKey, raw[:])
	})
}

func (c *Cursor) Close() error {
	return c.db.Close()
}
