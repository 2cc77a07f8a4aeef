package schedjobs

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/svc"
)

// Scheduler checks its cron jobs once a minute and runs the matching ones concurrently.
type Scheduler struct {
	Ctx      context.Context
	cancel   context.CancelFunc
	state    int
	done     chan error
	mu       sync.Mutex
	wg       sync.WaitGroup
	cronJobs []*CronJob

	// OnCronJobFinished is the scheduler-level default callback
	OnCronJobFinished func(job *CronJob, err error)
}

var _ svc.Service = (*Scheduler)(nil)

func NewScheduler(parentCtx context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Scheduler{
		Ctx:    ctx,
		cancel: cancel,
		state:  svc.StateREADY,
		done:   make(chan error, 1),
	}
}

func (s *Scheduler) Name() string {
	return "JobScheduler"
}

func (s *Scheduler) Start() error {
	if s.state != svc.StateREADY {
		return fmt.Errorf("cannot start. not ready")
	}
	s.state = svc.StateRUNNING
	go s.loop()
	logging.Component("schedjobs").Info("job scheduler started", "jobs", len(s.CronJobs()))
	return nil
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.state = svc.StateSTOPPED
}

func (s *Scheduler) Done() <-chan error {
	return s.done
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.RunDue(now)
		case <-s.Ctx.Done():
			s.wg.Wait() // wait for running tasks
			logging.Component("schedjobs").Info("job scheduler stopped")
			s.done <- nil
			return
		}
	}
}

// RunDue starts every job matching now. It does not wait for them.
func (s *Scheduler) RunDue(now time.Time) {
	for _, job := range s.CronJobs() {
		if job.Matches(now) {
			s.runCronJob(job)
		}
	}
}

// Wait blocks until started jobs have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runCronJob(job *CronJob) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic in job %s: %v", job.ID, r)
				}
			}()
			err = job.Task(s.Ctx)
		}()
		if err != nil {
			logging.Component("schedjobs").Error("cron job failed", "job", job.ID, "err", err)
		}
		if job.OnFinished != nil {
			job.OnFinished(err)
		}
		if s.OnCronJobFinished != nil {
			s.OnCronJobFinished(job, err)
		}
	}()
}

func (s *Scheduler) AddCronJob(job *CronJob) {
	s.mu.Lock()
	s.cronJobs = append(s.cronJobs, job)
	s.mu.Unlock()
}

// CronJobs returns a copy of all registered cron jobs
func (s *Scheduler) CronJobs() []*CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cronJobs)
}

// DeleteCronJob removes a cron job by its ID
func (s *Scheduler) DeleteCronJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cronJobs = slices.DeleteFunc(s.cronJobs, func(job *CronJob) bool { return job.ID == jobID })
}
