package repo

import (
	"context"
	"database/sql"

	"nag/internal/domain"
)

func (r Repo) InsertPendingNotification(ctx context.Context, tx *sql.Tx, n domain.PendingNotification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO pending_notifications(id,message,task_id,created_at) VALUES (?,?,?,?)`,
		n.ID, n.Message, nullableStr(n.TaskID), n.CreatedAt)
	return err
}

// ListPendingNotifications returns the queue oldest-first.
func (r Repo) ListPendingNotifications(ctx context.Context) ([]domain.PendingNotification, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,message,task_id,created_at FROM pending_notifications ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PendingNotification
	for rows.Next() {
		var n domain.PendingNotification
		var taskID sql.NullString
		if err := rows.Scan(&n.ID, &n.Message, &taskID, &n.CreatedAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			n.TaskID = &taskID.String
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// DeletePendingForTask removes every queue entry referencing the task.
func (r Repo) DeletePendingForTask(ctx context.Context, tx *sql.Tx, taskID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM pending_notifications WHERE task_id=?`, taskID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) ClearPendingNotifications(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM pending_notifications`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountPendingForTask reports how many queue entries reference the task.
func (r Repo) CountPendingForTask(ctx context.Context, taskID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM pending_notifications WHERE task_id=?`, taskID).Scan(&n)
	return n, err
}

// --- badge state ---

const badgeKey = "badge_attention"

// SetBadge flips the visual attention indicator.
func (r Repo) SetBadge(ctx context.Context, on bool) error {
	value := "0"
	if on {
		value = "1"
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO app_state(key,value) VALUES (?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value`, badgeKey, value)
	return err
}

func (r Repo) GetBadge(ctx context.Context) (bool, error) {
	var value string
	err := r.DB.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key=?`, badgeKey).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "1", nil
}
