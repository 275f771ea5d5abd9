package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nag/internal/config"
	"nag/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const taskColumns = `id,text,category,completed,expired,due_date,reminder_phrases_json,remaining_seconds,created_at,updated_at,completed_at`

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(row taskScanner) (domain.Task, error) {
	var t domain.Task
	var completed, expired int
	var due, phrases, completedAt sql.NullString
	err := row.Scan(&t.ID, &t.Text, &t.Category, &completed, &expired, &due, &phrases, &t.RemainingSeconds, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Completed = completed != 0
	t.Expired = expired != 0
	if due.Valid {
		t.DueDate = &due.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	if phrases.Valid && phrases.String != "" {
		if err := json.Unmarshal([]byte(phrases.String), &t.ReminderPhrases); err != nil {
			return t, fmt.Errorf("decode reminder phrases for task %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	return insertTask(ctx, r.DB.ExecContext, t)
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	return insertTask(ctx, tx.ExecContext, t)
}

type execFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)

func insertTask(ctx context.Context, exec execFunc, t domain.Task) error {
	var phrases any
	if len(t.ReminderPhrases) > 0 {
		b, err := json.Marshal(t.ReminderPhrases)
		if err != nil {
			return err
		}
		phrases = string(b)
	}
	_, err := exec(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Text, t.Category, boolInt(t.Completed), boolInt(t.Expired),
		nullableStr(t.DueDate), phrases, t.RemainingSeconds, t.CreatedAt, t.UpdatedAt, nullableStr(t.CompletedAt))
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

// TaskFilters narrows ListTasks. Nil pointer fields are ignored.
type TaskFilters struct {
	Completed *bool
	Expired   *bool
	Category  string
	OpenOnly  bool
}

// ListTasks returns tasks in their stored order (creation order). The
// scheduler relies on this ordering being stable across ticks.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Completed != nil {
		clauses = append(clauses, "completed=?")
		args = append(args, boolInt(*f.Completed))
	}
	if f.Expired != nil {
		clauses = append(clauses, "expired=?")
		args = append(args, boolInt(*f.Expired))
	}
	if f.OpenOnly {
		clauses = append(clauses, "completed=0 AND expired=0")
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// SetTaskCompleted toggles the completion flag.
func (r Repo) SetTaskCompleted(ctx context.Context, tx *sql.Tx, id string, completed bool, now string) error {
	var completedAt any
	if completed {
		completedAt = now
	}
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET completed=?, completed_at=?, updated_at=? WHERE id=?`,
		boolInt(completed), completedAt, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkTaskExpired transitions a task Open -> Expired. The conditional WHERE
// makes the transition fire at most once per task and never on a completed
// task; the returned bool reports whether this call performed the transition.
func (r Repo) MarkTaskExpired(ctx context.Context, id string, now string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET expired=1, remaining_seconds=0, updated_at=? WHERE id=? AND expired=0 AND completed=0`, now, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpdateRemainingSeconds stores the live countdown value for an open task.
func (r Repo) UpdateRemainingSeconds(ctx context.Context, id string, secs int64) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET remaining_seconds=? WHERE id=? AND completed=0 AND expired=0`, secs, id)
	return err
}

// SetReminderPhrasesOnce stores a reminder phrase batch on a task only if the
// task has none yet. Returns true when this call stored the batch.
func (r Repo) SetReminderPhrasesOnce(ctx context.Context, id string, phrases []string, now string) (bool, error) {
	if len(phrases) == 0 {
		return false, nil
	}
	b, err := json.Marshal(phrases)
	if err != nil {
		return false, err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET reminder_phrases_json=?, updated_at=? WHERE id=? AND (reminder_phrases_json IS NULL OR reminder_phrases_json='')`,
		string(b), now, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearTasks deletes tasks in bulk; completedOnly restricts the sweep.
func (r Repo) ClearTasks(ctx context.Context, tx *sql.Tx, completedOnly bool) (int64, error) {
	query := `DELETE FROM tasks`
	if completedOnly {
		query += ` WHERE completed=1`
	}
	res, err := tx.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountTasksByState reports open/completed/expired totals.
func (r Repo) CountTasksByState(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT
		CASE WHEN completed=1 THEN 'completed' WHEN expired=1 THEN 'expired' ELSE 'open' END AS state,
		count(*) FROM tasks GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var state string
		var c int
		if err := rows.Scan(&state, &c); err != nil {
			return nil, err
		}
		counts[state] = c
	}
	return counts, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableStr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

// --- settings ---

func (r Repo) UpsertSettings(ctx context.Context, cfg *config.Config) error {
	return upsertSettings(ctx, r.DB.ExecContext, cfg)
}

func (r Repo) UpsertSettingsTx(ctx context.Context, tx *sql.Tx, cfg *config.Config) error {
	return upsertSettings(ctx, tx.ExecContext, cfg)
}

func upsertSettings(ctx context.Context, exec execFunc, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = exec(ctx, `INSERT INTO settings(id,config_json,created_at,updated_at) VALUES (1,?,?,?)
ON CONFLICT(id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, string(payload), now, now)
	return err
}

func (r Repo) GetSettings(ctx context.Context) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM settings WHERE id=1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if err := json.Unmarshal([]byte(payload), cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, n int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if n <= 0 {
		n = 20
	}
	clauses := []string{"1=1"}
	args := []any{}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	args = append(args, n)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),payload_json FROM events WHERE `+
			strings.Join(clauses, " AND ")+` ORDER BY id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
