// Package scheduler периодически запускает фоновые задачи, например
// сверку аренд.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job - периодическая задача
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Scheduler запускает задачи по таймерам до отмены контекста
type Scheduler struct {
	log       *slog.Logger
	jobs      []Job
	newTicker func(d time.Duration) Ticker
	wg        sync.WaitGroup
}

type Option func(*Scheduler)

// WithTicker подменяет источник тиков, для тестов.
func WithTicker(f func(d time.Duration) Ticker) Option {
	return func(s *Scheduler) { s.newTicker = f }
}

// New создает Scheduler
func New(log *slog.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		log: log,
		newTicker: func(d time.Duration) Ticker {
			return realTicker{time.NewTicker(d)}
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add добавляет задачу; вызывать до Start
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start запускает каждую задачу сразу и затем раз в интервал, пока не
// завершится ctx. Ошибка задачи пишется в лог, повтор - на следующем тике.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Wait дожидается остановки всех задач.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := s.newTicker(job.Interval)
	defer ticker.Stop()

	s.run(ctx, job)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("job stopped", "job", job.Name)
			return
		case <-ticker.C():
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.Error("job failed", "job", job.Name, "error", err)
		return
	}
	s.log.Debug("job finished", "job", job.Name, "took", time.Since(start))
}
