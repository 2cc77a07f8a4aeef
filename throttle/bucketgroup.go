package throttle

import (
	"sync"
	"time"
)

type BucketGroup[K comparable] struct {
	conf    *BucketConf
	buckets *sync.Map // K -> *Bucket[K]
}

func (g *BucketGroup[K]) GetBucket(id K) (*Bucket[K], bool) {
	bAny, ok := g.buckets.Load(id)
	if !ok {
		return nil, false
	}
	return bAny.(*Bucket[K]), true
}

// newBucket starts full
func (g *BucketGroup[K]) newBucket(now time.Time) *Bucket[K] {
	return &Bucket[K]{
		tokens:    g.conf.Burst,
		lastCheck: now,
		lastSeen:  now,
		group:     g,
	}
}
