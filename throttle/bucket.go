package throttle

import (
	"sync"
	"time"
)

// Bucket is the token budget of one client within a group.
type Bucket[K comparable] struct {
	mu        sync.Mutex
	tokens    int
	lastCheck time.Time // start of the current refill period
	lastSeen  time.Time // last Take, for cleanup
	group     *BucketGroup[K]
}

// refillLocked adds Increment per whole elapsed Period, capped at Burst.
func (b *Bucket[K]) refillLocked(now time.Time) {
	conf := b.group.conf
	elapsed := now.Sub(b.lastCheck)
	if elapsed < conf.Period {
		return
	}
	periods := int(elapsed / conf.Period)
	b.tokens = min(b.tokens+periods*conf.Increment, conf.Burst)
	b.lastCheck = b.lastCheck.Add(time.Duration(periods) * conf.Period)
}

// Take spends one token. When none is left it reports how long until the next refill.
func (b *Bucket[K]) Take(now time.Time) (ok bool, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastSeen = now
	b.refillLocked(now)
	if b.tokens <= 0 {
		return false, b.lastCheck.Add(b.group.conf.Period).Sub(now)
	}
	b.tokens--
	return true, 0
}

func (b *Bucket[K]) Allow(now time.Time) bool {
	ok, _ := b.Take(now)
	return ok
}

func (b *Bucket[K]) idleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastSeen)
}
