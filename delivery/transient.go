package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/zeptools/invoicer/db/kvdb"
)

var ErrUnknownRef = errors.New("unknown transient reference")

type memEntry struct {
	blob    Blob
	expires time.Time
}

// MemoryStore keeps blobs in process. Expired entries are dropped on access and by Sweep.
type MemoryStore struct {
	TTL time.Duration

	entries sync.Map // Ref -> memEntry
	now     func() time.Time
}

var _ TransientStore = (*MemoryStore)(nil)

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{TTL: ttl, now: time.Now}
}

func (s *MemoryStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *MemoryStore) Put(_ context.Context, b Blob) (Ref, error) {
	ref := Ref(uuid.NewString())
	e := memEntry{blob: b}
	if s.TTL > 0 {
		e.expires = s.clock().Add(s.TTL)
	}
	s.entries.Store(ref, e)
	return ref, nil
}

func (s *MemoryStore) Get(_ context.Context, ref Ref) (Blob, bool, error) {
	v, ok := s.entries.Load(ref)
	if !ok {
		return Blob{}, false, nil
	}
	e := v.(memEntry)
	if !e.expires.IsZero() && !s.clock().Before(e.expires) {
		s.entries.Delete(ref)
		return Blob{}, false, nil
	}
	return e.blob, true, nil
}

// Release frees ref. Releasing twice is an error so double release is detectable.
func (s *MemoryStore) Release(_ context.Context, ref Ref) error {
	if _, loaded := s.entries.LoadAndDelete(ref); !loaded {
		return fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	return nil
}

// Sweep drops expired entries and reports how many were dropped.
func (s *MemoryStore) Sweep(now time.Time) int {
	n := 0
	s.entries.Range(func(k, v any) bool {
		e := v.(memEntry)
		if !e.expires.IsZero() && !now.Before(e.expires) {
			s.entries.Delete(k)
			n++
		}
		return true
	})
	return n
}

func (s *MemoryStore) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// KVStore stages blobs in a key-value database with a TTL so abandoned entries expire on their own.
type KVStore struct {
	Client kvdb.Client
	Prefix string // e.g. "<app>_blob:"
	TTL    time.Duration
}

var _ TransientStore = (*KVStore)(nil)

func (s *KVStore) key(ref Ref) string {
	return s.Prefix + string(ref)
}

func (s *KVStore) Put(ctx context.Context, b Blob) (Ref, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	ref := Ref(uuid.NewString())
	if err = s.Client.Set(ctx, s.key(ref), string(data), s.TTL); err != nil {
		return "", err
	}
	return ref, nil
}

func (s *KVStore) Get(ctx context.Context, ref Ref) (Blob, bool, error) {
	val, found, err := s.Client.Get(ctx, s.key(ref))
	if err != nil || !found {
		return Blob{}, false, err
	}
	var b Blob
	if err = json.Unmarshal([]byte(val), &b); err != nil {
		return Blob{}, false, err
	}
	return b, true, nil
}

func (s *KVStore) Release(ctx context.Context, ref Ref) error {
	n, err := s.Client.Delete(ctx, s.key(ref))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	return nil
}
