package domain

// Task is a unit of accountability. A task is Open until it is completed or
// its time budget elapses, at which point the scheduler marks it Expired.
type Task struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Category         string   `json:"category"`
	Completed        bool     `json:"completed"`
	Expired          bool     `json:"expired"`
	DueDate          *string  `json:"due_date,omitempty" format:"date-time"`
	ReminderPhrases  []string `json:"reminder_phrases,omitempty"`
	RemainingSeconds int64    `json:"remaining_seconds"`
	CreatedAt        string   `json:"created_at" format:"date-time"`
	UpdatedAt        string   `json:"updated_at" format:"date-time"`
	CompletedAt      *string  `json:"completed_at,omitempty" format:"date-time"`
}

// Open reports whether the task is still accountable: not completed and not
// yet expired.
func (t Task) Open() bool {
	return !t.Completed && !t.Expired
}

// DetectedTask is one task descriptor extracted from completion-service
// output. It is never persisted directly; tasks are constructed from it.
type DetectedTask struct {
	Text    string  `json:"text"`
	DueDate *string `json:"due_date,omitempty"`
}

// TaskDetectionResult is the normalized outcome of a task-detection call.
// Category is never empty; DetectedTasks may be.
type TaskDetectionResult struct {
	Category      string         `json:"category"`
	DetectedTasks []DetectedTask `json:"detected_tasks"`
}

// BlameMessageResult is the normalized outcome of a reminder-generation call.
// Messages always holds at least one entry.
type BlameMessageResult struct {
	Messages []string `json:"blame_messages"`
}

// PendingNotification is a durable queue entry for an alert the user has not
// yet acknowledged. Entries are removed per task id on completion, never
// deduplicated by content.
type PendingNotification struct {
	ID        string  `json:"id"`
	Message   string  `json:"message"`
	TaskID    *string `json:"task_id,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
