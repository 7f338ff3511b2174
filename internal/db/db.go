package db

import (
	"context"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var bucketName = []byte("Gallery")

type BoltStore struct {
	db *bolt.DB
}

func Connect(path string) (*bolt.DB, error) {
	return bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
}

func Init(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
}

func OpenBolt(path string) (*BoltStore, error) {
	db, err := Connect(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open bolt database %v: %w", path, err)
	}

	if err := Init(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return fmt.Errorf("bucket %s doesn't exist", string(bucketName))
		}

		// bytes are only valid for the lifetime of the transaction
		if v := b.Get([]byte(key)); v != nil {
			value = string(v)
			found = true
		}

		return nil
	})

	return value, found, err
}

func (s *BoltStore) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return fmt.Errorf("bucket %s doesn't exist", string(bucketName))
		}

		return b.Put([]byte(key), []byte(value))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
