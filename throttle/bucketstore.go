package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/svc"
)

// BucketStore holds token bucket groups and runs a cleanup cycle as a service.
type BucketStore[K comparable] struct {
	Ctx              context.Context    // Service Context
	cancel           context.CancelFunc // Service Context CancelFunc
	state            int                // internal service state
	done             chan error         // Shutdown Error Channel
	cleanupCycle     time.Duration
	cleanupOlderThan time.Duration
	mu               sync.RWMutex
	groups           map[string]*BucketGroup[K]
}

var _ svc.Service = (*BucketStore[string])(nil)

func (s *BucketStore[K]) Name() string {
	return "ThrottleBucketStore"
}

func NewBucketStore[K comparable](parentCtx context.Context, cleanupCycle time.Duration, cleanupOlderThan time.Duration) *BucketStore[K] {
	svcCtx, svcCancel := context.WithCancel(parentCtx)
	return &BucketStore[K]{
		Ctx:              svcCtx,
		cancel:           svcCancel,
		state:            svc.StateREADY,
		done:             make(chan error, 1),
		cleanupCycle:     cleanupCycle,
		cleanupOlderThan: cleanupOlderThan,
		groups:           make(map[string]*BucketGroup[K]),
	}
}

// Start starts the cleanup cycle
func (s *BucketStore[K]) Start() error {
	if s.state == svc.StateRUNNING {
		return fmt.Errorf("already started")
	}
	if s.state != svc.StateREADY {
		return fmt.Errorf("cannot start. not ready")
	}
	s.state = svc.StateRUNNING
	logging.Component("throttle").Info("cleanup service started", "cycle", s.cleanupCycle, "exp", s.cleanupOlderThan)
	go s.run()
	return nil
}

func (s *BucketStore[K]) Stop() {
	if s.state != svc.StateRUNNING {
		logging.Component("throttle").Error("cannot stop. not running")
		return
	}
	s.cancel()
	s.state = svc.StateSTOPPED
	logging.Component("throttle").Info("service stopped")
}

func (s *BucketStore[K]) Done() <-chan error {
	return s.done
}

func (s *BucketStore[K]) run() {
	log := logging.Component("throttle")
	ticker := time.NewTicker(s.cleanupCycle)
	defer ticker.Stop()
	for {
		select {
		case <-s.Ctx.Done():
			s.done <- nil
			return
		case now := <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error("recovered in cleanup cycle", "panic", r)
					}
				}()
				n := s.Cleanup(now)
				log.Debug("cleanup cycle", "removed", n)
			}()
		}
	}
}

func (s *BucketStore[K]) GetBucketGroup(id string) (*BucketGroup[K], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	return g, ok
}

func (s *BucketStore[K]) GetBucket(groupID string, userID K) (*Bucket[K], bool) {
	g, ok := s.GetBucketGroup(groupID)
	if !ok {
		return nil, false
	}
	return g.GetBucket(userID)
}

func (s *BucketStore[K]) SetBucketGroup(id string, conf *BucketConf) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[id] = &BucketGroup[K]{
		conf:    conf,
		buckets: &sync.Map{},
	}
}

func (s *BucketStore[K]) Allow(groupID string, userID K, now time.Time) bool {
	ok, _ := s.Take(groupID, userID, now)
	return ok
}

// Take spends a token of userID in groupID. An unknown group is always blocked.
func (s *BucketStore[K]) Take(groupID string, userID K, now time.Time) (ok bool, retryAfter time.Duration) {
	g, found := s.GetBucketGroup(groupID)
	if !found {
		return false, 0
	}
	b, _ := g.buckets.LoadOrStore(userID, g.newBucket(now))
	return b.(*Bucket[K]).Take(now)
}

// Cleanup drops buckets idle for longer than the configured age and reports how many went.
func (s *BucketStore[K]) Cleanup(now time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	removed := 0
	for _, g := range s.groups {
		g.buckets.Range(func(id, value any) bool {
			if value.(*Bucket[K]).idleSince(now) > s.cleanupOlderThan {
				g.buckets.Delete(id)
				removed++
			}
			return true
		})
	}
	return removed
}
