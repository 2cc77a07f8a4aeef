package storage

import (
	"context"
	"time"

	"github.com/zeptools/invoicer/db/kvdb"
)

// KVStore keeps documents in a key-value database. TTL 0 keeps them forever.
type KVStore struct {
	Client kvdb.Client
	TTL    time.Duration
}

var _ Store = (*KVStore)(nil)

func (s *KVStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := s.Client.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	return []byte(val), true, nil
}

func (s *KVStore) Save(ctx context.Context, key string, data []byte) error {
	return s.Client.Set(ctx, key, string(data), s.TTL)
}
