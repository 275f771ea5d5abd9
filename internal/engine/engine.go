package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"nag/internal/config"
	"nag/internal/domain"
	"nag/internal/events"
	"nag/internal/normalize"
	"nag/internal/notify"
	"nag/internal/provider"
	"nag/internal/repo"
)

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Events     events.Writer
	Config     *config.Config
	Dispatcher *notify.Dispatcher
	// Completer overrides the factory-built provider; used by tests and by
	// callers that manage their own client.
	Completer provider.Completer
	Logger    *log.Logger
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db},
		Config: cfg,
		Dispatcher: &notify.Dispatcher{
			DB:      db,
			Repo:    r,
			Events:  events.Writer{DB: db},
			Alerter: notify.LogAlerter{},
		},
		Now: time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func (e Engine) policy() normalize.Policy {
	return normalize.Policy{RejectLatinOnly: e.Config.Normalize.RejectLatinOnly}
}

// ExpiryTime computes when a task's time budget elapses: its due date when
// one was set and parseable, otherwise creation time plus the configured
// timebox. ok is false when the creation timestamp itself is unreadable.
func ExpiryTime(t domain.Task, timebox time.Duration) (time.Time, bool) {
	if t.DueDate != nil {
		if due, err := time.Parse(time.RFC3339, *t.DueDate); err == nil {
			return due, true
		}
		// a free-text deadline is descriptive only; fall through to timebox
	}
	created, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return created.Add(timebox), true
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID       string
	Text     string
	Category string
	DueDate  string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if e.Config == nil {
		return domain.Task{}, errors.New("config not loaded")
	}
	if opts.Text == "" {
		return domain.Task{}, errors.New("text is required")
	}
	if opts.Category == "" {
		opts.Category = "general"
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		ID:        id,
		Text:      opts.Text,
		Category:  opts.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.DueDate != "" {
		t.DueDate = &opts.DueDate
	}
	if expiry, ok := ExpiryTime(t, e.Config.Scheduler.Timebox()); ok {
		if remaining := expiry.Sub(e.now()); remaining > 0 {
			t.RemainingSeconds = int64(remaining.Seconds())
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", "task", t.ID, events.EventPayload{
		"text":     t.Text,
		"category": t.Category,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	return e.withLiveRemaining(t), nil
}

// ListTasks returns tasks with remaining time recomputed against the current
// clock for open tasks, so callers see a live countdown regardless of when
// the scheduler last persisted one.
func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	tasks, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	for i, t := range tasks {
		tasks[i] = e.withLiveRemaining(t)
	}
	return tasks, nil
}

func (e Engine) withLiveRemaining(t domain.Task) domain.Task {
	if !t.Open() {
		return t
	}
	if expiry, ok := ExpiryTime(t, e.Config.Scheduler.Timebox()); ok {
		remaining := expiry.Sub(e.now())
		if remaining < 0 {
			remaining = 0
		}
		t.RemainingSeconds = int64(remaining.Seconds())
	}
	return t
}

// SetCompleted toggles the completion flag. Completing a task removes its
// pending notifications and clears its host alert; expiry is never evaluated
// for it again.
func (e Engine) SetCompleted(ctx context.Context, id string, completed bool) (domain.Task, error) {
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetTaskCompleted(ctx, tx, id, completed, now); err != nil {
		return domain.Task{}, err
	}
	evtType := "task.completed"
	if !completed {
		evtType = "task.reopened"
	}
	if completed {
		if err := e.Dispatcher.ClearForTask(ctx, tx, id); err != nil {
			return domain.Task{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, evtType, "task", id, nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.GetTask(ctx, id)
}

func (e Engine) DeleteTask(ctx context.Context, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Dispatcher.ClearForTask(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", "task", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearTasks bulk-deletes tasks. Clearing everything also empties the
// pending-notification queue; clearing completed tasks has nothing pending
// left to remove.
func (e Engine) ClearTasks(ctx context.Context, completedOnly bool) (int64, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	n, err := e.Repo.ClearTasks(ctx, tx, completedOnly)
	if err != nil {
		return 0, err
	}
	if !completedOnly {
		if _, err := e.Repo.ClearPendingNotifications(ctx, tx); err != nil {
			return 0, err
		}
	}
	if err := e.Events.Append(ctx, tx, "task.cleared", "task", "", events.EventPayload{
		"count":          n,
		"completed_only": completedOnly,
	}); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (e Engine) completer(timeout time.Duration) (provider.Completer, error) {
	if e.Completer != nil {
		return e.Completer, nil
	}
	if e.Config == nil || !e.Config.AI.Enabled {
		return nil, errors.New("ai disabled")
	}
	return provider.New(e.Config.AI, timeout)
}

// DetectTasks runs user text through the detection pipeline and creates a
// task per detected descriptor. When the provider is unavailable or fails,
// the text itself becomes a single task: detection degrades, it never blocks
// task capture.
func (e Engine) DetectTasks(ctx context.Context, text string) (domain.TaskDetectionResult, []domain.Task, error) {
	result := domain.TaskDetectionResult{Category: "general"}

	c, err := e.completer(provider.DetectionTimeout)
	if err == nil {
		callCtx, cancel := context.WithTimeout(ctx, provider.DetectionTimeout)
		raw, callErr := c.Complete(callCtx, provider.Request{
			System:      detectionSystemPrompt,
			Prompt:      text,
			Temperature: e.Config.AI.Temperature,
			MaxTokens:   e.Config.AI.MaxTokens,
		})
		cancel()
		if callErr != nil {
			e.logger().Printf("task detection failed, keeping raw text: %v", callErr)
		} else {
			result = normalize.TaskDetection(raw, e.policy())
		}
	}
	if len(result.DetectedTasks) == 0 {
		result.DetectedTasks = []domain.DetectedTask{{Text: text}}
	}

	created := make([]domain.Task, 0, len(result.DetectedTasks))
	for _, d := range result.DetectedTasks {
		opts := TaskCreateOptions{Text: d.Text, Category: result.Category}
		if d.DueDate != nil {
			opts.DueDate = *d.DueDate
		}
		t, err := e.CreateTask(ctx, opts)
		if err != nil {
			return result, created, err
		}
		created = append(created, t)
	}
	if err := e.appendEvent(ctx, "task.detected", "task", "", events.EventPayload{
		"category": result.Category,
		"count":    len(created),
	}); err != nil {
		return result, created, err
	}
	return result, created, nil
}

// RemindTask authors an accountability message for the task and dispatches
// it. The message generation never fails: provider or normalization trouble
// degrades to the deterministic fallback.
func (e Engine) RemindTask(ctx context.Context, taskID string) error {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	message := e.blameMessage(ctx, t)
	return e.Dispatcher.Dispatch(ctx, message, t.ID)
}

// blameMessage picks a reminder phrase for the task. The first successful
// AI batch is stored on the task and reused afterwards.
func (e Engine) blameMessage(ctx context.Context, t domain.Task) string {
	if len(t.ReminderPhrases) > 0 {
		return t.ReminderPhrases[0]
	}
	c, err := e.completer(provider.ReminderTimeout)
	if err != nil {
		return FallbackMessage(t)
	}
	callCtx, cancel := context.WithTimeout(ctx, provider.ReminderTimeout)
	defer cancel()
	raw, err := c.Complete(callCtx, provider.Request{
		System:      blameSystemPrompt,
		Prompt:      fmt.Sprintf("The task %q (category %s) is overdue.", t.Text, t.Category),
		Temperature: e.Config.AI.Temperature,
		MaxTokens:   e.Config.AI.MaxTokens,
	})
	if err != nil {
		e.logger().Printf("reminder generation failed for task %s: %v", t.ID, err)
		return FallbackMessage(t)
	}
	result := normalize.BlameMessages(raw, e.policy())
	now := e.now().UTC().Format(time.RFC3339)
	if _, err := e.Repo.SetReminderPhrasesOnce(ctx, t.ID, result.Messages, now); err != nil {
		e.logger().Printf("storing reminder phrases for task %s: %v", t.ID, err)
	}
	return result.Messages[0]
}

// FallbackMessage is the deterministic reminder used when the provider and
// the normalization engine both have nothing to offer.
func FallbackMessage(t domain.Task) string {
	return fmt.Sprintf("Deadline passed for task: %s", t.Text)
}

func (e Engine) Notifications(ctx context.Context) ([]domain.PendingNotification, error) {
	return e.Repo.ListPendingNotifications(ctx)
}

func (e Engine) ClearNotifications(ctx context.Context) (int64, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	n, err := e.Repo.ClearPendingNotifications(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := e.Events.Append(ctx, tx, "notification.cleared", "notification", "", events.EventPayload{"count": n}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, e.Dispatcher.MarkViewed(ctx)
}

// UpdateSettings validates and persists a new configuration.
func (e Engine) UpdateSettings(ctx context.Context, cfg *config.Config) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertSettingsTx(ctx, tx, cfg); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "settings.updated", "settings", "", events.EventPayload{
		"provider": cfg.AI.Provider,
		"enabled":  cfg.AI.Enabled,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) appendEvent(ctx context.Context, evtType, entityKind, entityID string, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, evtType, entityKind, entityID, payload); err != nil {
		return err
	}
	return tx.Commit()
}
