// Package poller runs independent periodic tasks, one per resource.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Task fetches and renders one resource. Returned errors are logged.
type Task = func(ctx context.Context) error

var ErrStarted = errors.New("scheduler already started")

type job struct {
	name     string
	interval time.Duration
	task     Task

	busy    atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
}

// Scheduler fires every registered task once at start and then on its own
// interval. Tasks never share a tick. A tick that lands while the previous run
// of the same task is still going is skipped.
type Scheduler struct {
	clock clockwork.Clock

	mu      sync.Mutex
	jobs    map[string]*job
	order   []*job
	started bool
	group   errgroup.Group
}

// New returns a scheduler driven by clock, or by the wall clock if nil.
func New(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{clock: clock, jobs: make(map[string]*job)}
}

// Register adds a task. It must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("register %s: interval must be positive, got %v", name, interval)
	}
	if task == nil {
		return fmt.Errorf("register %s: nil task", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("register %s: already registered", name)
	}
	j := &job{name: name, interval: interval, task: task}
	s.jobs[name] = j
	s.order = append(s.order, j)
	return nil
}

// Start launches every task and returns. Tasks stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.started = true
	for _, j := range s.order {
		j := j
		s.group.Go(func() error {
			s.loop(ctx, j)
			return nil
		})
	}
	return nil
}

// Wait blocks until every loop and in-flight run has returned.
func (s *Scheduler) Wait() error { return s.group.Wait() }

// Run is Start followed by Wait.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	ticker := s.clock.NewTicker(j.interval)
	defer ticker.Stop()

	s.fire(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			s.fire(ctx, j)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, j *job) {
	if !j.busy.CompareAndSwap(false, true) {
		j.skipped.Add(1)
		log.Printf("[poller] %s: previous fetch still running, skipping tick", j.name)
		return
	}
	j.runs.Add(1)
	s.group.Go(func() error {
		defer j.busy.Store(false)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[poller] %s: panic: %v", j.name, r)
			}
		}()
		if err := j.task(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[poller] %s: %v", j.name, err)
		}
		return nil
	})
}

// Stats describes one task's activity so far.
type Stats struct {
	Runs     int64
	Skipped  int64
	InFlight bool
}

// Stats reports counters for the named task; ok is false if it is unknown.
func (s *Scheduler) Stats(name string) (st Stats, ok bool) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	return Stats{Runs: j.runs.Load(), Skipped: j.skipped.Load(), InFlight: j.busy.Load()}, true
}
