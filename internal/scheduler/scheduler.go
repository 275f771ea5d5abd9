// Package scheduler runs the expiry loop: on every tick it re-reads the open
// tasks, expires the ones whose time budget has elapsed, and refreshes the
// persisted countdown on the rest. Reminder generation is slow (it may call a
// completion provider) and runs detached from the tick.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"nag/internal/engine"
	"nag/internal/events"
	"nag/internal/repo"
)

type Scheduler struct {
	Engine engine.Engine
	Logger *log.Logger

	wg sync.WaitGroup
}

func New(e engine.Engine) *Scheduler {
	return &Scheduler{Engine: e}
}

func (s *Scheduler) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// Run ticks at the given interval until ctx is cancelled, then waits for any
// in-flight reminder pipelines to finish.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger().Printf("scheduler tick: %v", err)
			}
		}
	}
}

// Tick performs one scheduler pass over a fresh read of the open tasks, so
// tasks completed or deleted since the last pass are never considered.
func (s *Scheduler) Tick(ctx context.Context) error {
	tasks, err := s.Engine.Repo.ListTasks(ctx, repo.TaskFilters{OpenOnly: true})
	if err != nil {
		return err
	}
	now := s.Engine.Now()
	nowStr := now.UTC().Format(time.RFC3339)
	timebox := s.Engine.Config.Scheduler.Timebox()

	for _, t := range tasks {
		expiry, ok := engine.ExpiryTime(t, timebox)
		if !ok {
			s.logger().Printf("task %s has unreadable timestamps, skipping", t.ID)
			continue
		}
		if !now.Before(expiry) {
			s.expire(ctx, t.ID, nowStr)
			continue
		}
		remaining := int64(expiry.Sub(now).Seconds())
		if remaining != t.RemainingSeconds {
			if err := s.Engine.Repo.UpdateRemainingSeconds(ctx, t.ID, remaining); err != nil {
				s.logger().Printf("updating countdown for task %s: %v", t.ID, err)
			}
		}
	}
	return nil
}

// expire performs the Open -> Expired transition. The state write lands first
// so a crash between transition and reminder costs the reminder, never the
// state. The conditional update in MarkTaskExpired makes the transition, and
// therefore the reminder pipeline, fire at most once per task even if ticks
// overlap.
func (s *Scheduler) expire(ctx context.Context, taskID, now string) {
	transitioned, err := s.Engine.Repo.MarkTaskExpired(ctx, taskID, now)
	if err != nil {
		s.logger().Printf("expiring task %s: %v", taskID, err)
		return
	}
	if !transitioned {
		return
	}
	if err := s.appendExpiredEvent(ctx, taskID); err != nil {
		s.logger().Printf("recording expiry of task %s: %v", taskID, err)
	}

	// the reminder pipeline outlives the tick and even scheduler shutdown
	// cancellation; Run waits for it on exit
	pipelineCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Engine.RemindTask(pipelineCtx, taskID); err != nil {
			s.logger().Printf("reminder pipeline for task %s: %v", taskID, err)
		}
	}()
}

func (s *Scheduler) appendExpiredEvent(ctx context.Context, taskID string) error {
	tx, err := s.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.Engine.Events.Append(ctx, tx, "task.expired", "task", taskID, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

// Wait blocks until all detached reminder pipelines have finished. Exposed
// for callers that drive Tick directly instead of Run.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
