package blobio

import (
	"context"
	"errors"

	bolt "go.etcd.io/bbolt"
)

// Bolt is a BoltDB-backed BlobIO, one bucket per collection. No bolt:
// scheme is registered by NewRegistry; construct it with NewBolt. It is a second local-disk target distinct from Local,
// exercising placement across heterogeneous target kinds within a single
// host (spec.md §4.10).
type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

// NewBolt opens (creating if necessary) a bbolt database at path and binds
// it to bucketName.
func NewBolt(path, bucketName string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}

	bucket := []byte(bucketName)

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)

		return err
	})
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Bolt{db: db, bucket: bucket}, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) Read(_ context.Context, key string) ([]byte, error) {
	var out []byte

	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.bucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}

		out = append([]byte(nil), v...)

		return nil
	})

	return out, err
}

func (b *Bolt) Write(_ context.Context, key string, data []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), data)
	})
}

func (b *Bolt) Append(ctx context.Context, key string, data []byte) error {
	existing, err := b.Read(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	return b.Write(ctx, key, append(existing, data...))
}

// AtomicWrite relies on bbolt's own transactional durability (an Update
// either fully commits or the prior value is retained).
func (b *Bolt) AtomicWrite(ctx context.Context, key string, data []byte) error {
	return b.Write(ctx, key, data)
}

func (b *Bolt) Del(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Delete([]byte(key))
	})
}
