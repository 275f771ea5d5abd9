package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"nag/internal/config"
	"nag/internal/db"
	"nag/internal/domain"
	"nag/internal/migrate"
)

func newTestRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Repo{DB: conn}
}

func seedTask(t *testing.T, r Repo, id, createdAt string) domain.Task {
	t.Helper()
	task := domain.Task{
		ID:        id,
		Text:      "task " + id,
		Category:  "general",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := r.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
	return task
}

func TestGetTaskNotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.GetTask(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestMarkTaskExpiredFiresOnce(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)
	seedTask(t, r, "t1", now)

	first, err := r.MarkTaskExpired(ctx, "t1", now)
	if err != nil {
		t.Fatalf("MarkTaskExpired: %v", err)
	}
	if !first {
		t.Fatal("first call should transition")
	}
	for i := 0; i < 5; i++ {
		again, err := r.MarkTaskExpired(ctx, "t1", now)
		if err != nil {
			t.Fatalf("repeat %d: %v", i, err)
		}
		if again {
			t.Fatalf("repeat %d transitioned again", i)
		}
	}
	got, _ := r.GetTask(ctx, "t1")
	if !got.Expired || got.RemainingSeconds != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestMarkTaskExpiredSkipsCompleted(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)
	seedTask(t, r, "t1", now)

	tx, _ := r.DB.BeginTx(ctx, nil)
	if err := r.SetTaskCompleted(ctx, tx, "t1", true, now); err != nil {
		t.Fatalf("SetTaskCompleted: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	transitioned, err := r.MarkTaskExpired(ctx, "t1", now)
	if err != nil {
		t.Fatalf("MarkTaskExpired: %v", err)
	}
	if transitioned {
		t.Fatal("completed task transitioned to expired")
	}
}

func TestSetReminderPhrasesOnce(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)
	seedTask(t, r, "t1", now)

	stored, err := r.SetReminderPhrasesOnce(ctx, "t1", []string{"first", "second"}, now)
	if err != nil {
		t.Fatalf("SetReminderPhrasesOnce: %v", err)
	}
	if !stored {
		t.Fatal("first batch should store")
	}
	stored, err = r.SetReminderPhrasesOnce(ctx, "t1", []string{"other"}, now)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if stored {
		t.Fatal("second batch should not overwrite")
	}
	got, _ := r.GetTask(ctx, "t1")
	if len(got.ReminderPhrases) != 2 || got.ReminderPhrases[0] != "first" {
		t.Fatalf("phrases %+v", got.ReminderPhrases)
	}
}

func TestListTasksStableOrderAndFilters(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedTask(t, r, "b", base.Add(time.Second).Format(time.RFC3339))
	seedTask(t, r, "a", base.Format(time.RFC3339))

	tasks, err := r.ListTasks(ctx, TaskFilters{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "a" || tasks[1].ID != "b" {
		t.Fatalf("order %+v", tasks)
	}

	now := base.Format(time.RFC3339)
	if _, err := r.MarkTaskExpired(ctx, "a", now); err != nil {
		t.Fatalf("expire: %v", err)
	}
	open, err := r.ListTasks(ctx, TaskFilters{OpenOnly: true})
	if err != nil {
		t.Fatalf("ListTasks open: %v", err)
	}
	if len(open) != 1 || open[0].ID != "b" {
		t.Fatalf("open %+v", open)
	}

	expired := true
	byFlag, err := r.ListTasks(ctx, TaskFilters{Expired: &expired})
	if err != nil {
		t.Fatalf("ListTasks expired: %v", err)
	}
	if len(byFlag) != 1 || byFlag[0].ID != "a" {
		t.Fatalf("expired %+v", byFlag)
	}
}

func TestUpdateRemainingSecondsOnlyOpenTasks(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)
	seedTask(t, r, "t1", now)

	if err := r.UpdateRemainingSeconds(ctx, "t1", 42); err != nil {
		t.Fatalf("UpdateRemainingSeconds: %v", err)
	}
	got, _ := r.GetTask(ctx, "t1")
	if got.RemainingSeconds != 42 {
		t.Fatalf("remaining = %d", got.RemainingSeconds)
	}

	if _, err := r.MarkTaskExpired(ctx, "t1", now); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if err := r.UpdateRemainingSeconds(ctx, "t1", 99); err != nil {
		t.Fatalf("UpdateRemainingSeconds after expiry: %v", err)
	}
	got, _ = r.GetTask(ctx, "t1")
	if got.RemainingSeconds != 0 {
		t.Fatalf("expired task countdown changed: %d", got.RemainingSeconds)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if _, err := r.GetSettings(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cfg := config.Default()
	cfg.Scheduler.TimeboxSeconds = 7200
	if err := r.UpsertSettings(ctx, cfg); err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	got, err := r.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.Scheduler.TimeboxSeconds != 7200 {
		t.Fatalf("timebox = %d", got.Scheduler.TimeboxSeconds)
	}

	// second upsert replaces, not duplicates
	cfg.Scheduler.TimeboxSeconds = 60
	if err := r.UpsertSettings(ctx, cfg); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _ = r.GetSettings(ctx)
	if got.Scheduler.TimeboxSeconds != 60 {
		t.Fatalf("timebox = %d", got.Scheduler.TimeboxSeconds)
	}
}
