package mentions

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
)

// TaskWrapper decorates a background task, e.g. with error alerting
type TaskWrapper func(taskName string, task func() error) func() error

// CycleFunc runs one monitoring cycle for a guild
type CycleFunc func(ctx context.Context, guildID string) error

type guildSchedule struct {
	interval time.Duration
	stop     chan struct{}
}

// MonitoringScheduler keeps one ticker per monitored guild and runs due cycles on a bounded worker pool
type MonitoringScheduler struct {
	workerPool *workerpool.WorkerPool
	runCycle   CycleFunc
	wrap       TaskWrapper

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	schedules map[string]*guildSchedule
	stopped   bool
}

func NewMonitoringScheduler(workers int, runCycle CycleFunc, wrap TaskWrapper) *MonitoringScheduler {
	if workers <= 0 {
		workers = 1
	}
	if wrap == nil {
		wrap = func(_ string, task func() error) func() error { return task }
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &MonitoringScheduler{
		workerPool: workerpool.New(workers),
		runCycle:   runCycle,
		wrap:       wrap,
		ctx:        ctx,
		cancel:     cancel,
		schedules:  make(map[string]*guildSchedule),
	}
}

// Schedule starts (or restarts with a new interval) the guild's ticker
func (s *MonitoringScheduler) Schedule(guildID string, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if existing, ok := s.schedules[guildID]; ok {
		if existing.interval == interval {
			return
		}
		close(existing.stop)
	}

	schedule := &guildSchedule{interval: interval, stop: make(chan struct{})}
	s.schedules[guildID] = schedule

	s.wg.Add(1)
	go s.tick(guildID, schedule)
	log.Printf("⏰ Scheduled mention checks for guild %s every %s", guildID, interval)
}

// Unschedule stops the guild's ticker; a cycle already running finishes normally
func (s *MonitoringScheduler) Unschedule(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.schedules[guildID]; ok {
		close(existing.stop)
		delete(s.schedules, guildID)
		log.Printf("⏰ Unscheduled mention checks for guild %s", guildID)
	}
}

func (s *MonitoringScheduler) IsScheduled(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.schedules[guildID]
	return ok
}

// Count is the number of guilds with an active schedule
func (s *MonitoringScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schedules)
}

// Stop cancels every ticker and waits for queued cycles to finish
func (s *MonitoringScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.workerPool.StopWait()
}

func (s *MonitoringScheduler) tick(guildID string, schedule *guildSchedule) {
	defer s.wg.Done()

	ticker := time.NewTicker(schedule.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-schedule.stop:
			return
		case <-ticker.C:
			task := s.wrap("MonitoringCycle "+guildID, func() error {
				return s.runCycle(s.ctx, guildID)
			})
			s.workerPool.Submit(func() {
				if err := task(); err != nil {
					log.Printf("❌ Monitoring cycle failed for guild %s: %v", guildID, err)
				}
			})
		}
	}
}
