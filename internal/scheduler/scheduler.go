// Package scheduler owns the named cadence timers that drive the
// pipeline. Each tick enqueues a work-queue job; no business logic runs
// inline on a timer goroutine.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/logger"
	"github.com/foliowatch/foliowatch-go/internal/queue"
)

// enqueueTimeout bounds the queue write on each tick.
const enqueueTimeout = 5 * time.Second

// cadence is one registered recurring trigger.
type cadence struct {
	name    string
	every   time.Duration
	jobType string
	payload any
	opts    queue.Options
	stop    chan struct{}
}

// Scheduler issues queue jobs on fixed cadences. Cadences are named and
// individually cancellable.
type Scheduler struct {
	jobs queue.Queue
	log  logger.Logger

	mu       sync.Mutex
	cadences map[string]*cadence
	wg       sync.WaitGroup
	started  bool
}

// New creates a scheduler producing onto the given queue.
func New(jobs queue.Queue, log logger.Logger) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		log:      log,
		cadences: make(map[string]*cadence),
	}
}

// Register adds a named cadence. Registering an existing name replaces
// and, if running, restarts it.
func (s *Scheduler) Register(name string, every time.Duration, jobType string, payload any, opts queue.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.cadences[name]; ok && old.stop != nil {
		close(old.stop)
		old.stop = nil
	}
	c := &cadence{name: name, every: every, jobType: jobType, payload: payload, opts: opts}
	s.cadences[name] = c
	if s.started {
		s.launch(c)
	}
}

// Cancel stops and removes a named cadence. Safe for unknown names.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cadences[name]
	if !ok {
		return
	}
	delete(s.cadences, name)
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Start launches all registered cadences.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	for _, c := range s.cadences {
		s.launch(c)
	}
}

// launch starts one cadence goroutine. Caller holds s.mu.
func (s *Scheduler) launch(c *cadence) {
	c.stop = make(chan struct{})
	stop := c.stop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(c.every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick(c)
			case <-stop:
				return
			}
		}
	}()
}

// tick enqueues one job for the cadence.
func (s *Scheduler) tick(c *cadence) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()
	if _, err := s.jobs.Enqueue(ctx, c.jobType, c.payload, c.opts); err != nil {
		s.log.Error("failed to enqueue scheduled job",
			logger.String("cadence", c.name),
			logger.String("job_type", c.jobType),
			logger.Error(err))
	}
}

// Stop cancels every cadence and waits for the timer goroutines to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, c := range s.cadences {
		if c.stop != nil {
			close(c.stop)
			c.stop = nil
		}
	}
	s.started = false
	s.mu.Unlock()
	s.wg.Wait()
}
