// Package notify persists reminders to the durable pending-notifications
// queue and raises host-level alerts. The three dispatch side effects (badge,
// queue append, host alert) are independent: one failing never suppresses the
// others.
package notify

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"nag/internal/domain"
	"nag/internal/events"
	"nag/internal/repo"
)

// Alerter is the host notification primitive. Implementations may reject an
// alert; the dispatcher logs and carries on.
type Alerter interface {
	Alert(ctx context.Context, alertID, message string) error
	Clear(ctx context.Context, alertID string) error
}

// LogAlerter is the in-tree Alerter: it writes alerts to a logger. Platform
// integrations replace it at wiring time.
type LogAlerter struct {
	Logger *log.Logger
}

func (a LogAlerter) logger() *log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return log.Default()
}

func (a LogAlerter) Alert(_ context.Context, alertID, message string) error {
	a.logger().Printf("alert %s: %s", alertID, message)
	return nil
}

func (a LogAlerter) Clear(_ context.Context, alertID string) error {
	a.logger().Printf("alert %s cleared", alertID)
	return nil
}

// AlertID derives the deterministic host-alert id for a task, so a later
// clear targets exactly the alert an earlier dispatch raised.
func AlertID(taskID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("nag-alert|"+taskID)).String()
}

type Dispatcher struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Alerter Alerter
	Logger  *log.Logger
	Now     func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

// Dispatch records a reminder. The task state is checked here, at dispatch
// time, not when the reminder was requested: a pipeline that resolves after
// its task was completed or deleted drops its notification silently.
func (d *Dispatcher) Dispatch(ctx context.Context, message, taskID string) error {
	if taskID != "" {
		t, err := d.Repo.GetTask(ctx, taskID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && t.Completed) {
			d.logger().Printf("dropping notification for task %s: no longer open", taskID)
			return d.appendDroppedEvent(ctx, taskID)
		}
		if err != nil {
			return err
		}
	}

	var errs []error
	if err := d.Repo.SetBadge(ctx, true); err != nil {
		errs = append(errs, err)
	}
	if err := d.appendPending(ctx, message, taskID); err != nil {
		errs = append(errs, err)
	}
	if err := d.Alerter.Alert(ctx, AlertID(taskID), message); err != nil {
		// host alert rejection is logged, never fatal
		d.logger().Printf("host alert failed for task %s: %v", taskID, err)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) appendPending(ctx context.Context, message, taskID string) error {
	now := d.now().UTC().Format(time.RFC3339)
	n := domain.PendingNotification{
		ID:        uuid.NewString(),
		Message:   message,
		CreatedAt: now,
	}
	if taskID != "" {
		n.TaskID = &taskID
	}
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := d.Repo.InsertPendingNotification(ctx, tx, n); err != nil {
		return err
	}
	if err := d.Events.Append(ctx, tx, "notification.dispatched", "notification", n.ID, events.EventPayload{
		"task_id": taskID,
		"message": message,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *Dispatcher) appendDroppedEvent(ctx context.Context, taskID string) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := d.Events.Append(ctx, tx, "notification.dropped", "task", taskID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearForTask removes every pending entry for the task and clears its host
// alert. Called inside the completion/deletion transaction.
func (d *Dispatcher) ClearForTask(ctx context.Context, tx *sql.Tx, taskID string) error {
	if _, err := d.Repo.DeletePendingForTask(ctx, tx, taskID); err != nil {
		return err
	}
	if err := d.Alerter.Clear(ctx, AlertID(taskID)); err != nil {
		d.logger().Printf("host alert clear failed for task %s: %v", taskID, err)
	}
	return nil
}

// MarkViewed clears the badge after the user has seen the queue.
func (d *Dispatcher) MarkViewed(ctx context.Context) error {
	return d.Repo.SetBadge(ctx, false)
}
