package server

import (
	"nag/internal/config"
	"nag/internal/domain"
)

type CreateTaskRequest struct {
	ID       *string `json:"id,omitempty"`
	Text     string  `json:"text"`
	Category string  `json:"category,omitempty"`
	DueDate  *string `json:"due_date,omitempty"`
}

type CompleteTaskRequest struct {
	Completed *bool `json:"completed,omitempty"`
}

type DetectTasksRequest struct {
	Text string `json:"text"`
}

type TaskResponse struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Category         string   `json:"category"`
	Completed        bool     `json:"completed"`
	Expired          bool     `json:"expired"`
	DueDate          *string  `json:"due_date,omitempty"`
	ReminderPhrases  []string `json:"reminder_phrases,omitempty"`
	RemainingSeconds int64    `json:"remaining_seconds"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
	CompletedAt      *string  `json:"completed_at,omitempty"`
}

type DetectTasksResponse struct {
	Category string         `json:"category"`
	Tasks    []TaskResponse `json:"tasks"`
}

type NotificationResponse struct {
	ID        string  `json:"id"`
	Message   string  `json:"message"`
	TaskID    *string `json:"task_id,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type NotificationListResponse struct {
	Badge bool                   `json:"badge"`
	Items []NotificationResponse `json:"items"`
}

type ClearedResponse struct {
	Cleared int64 `json:"cleared"`
}

type StatusResponse struct {
	TaskCounts map[string]int `json:"task_counts"`
	Pending    int            `json:"pending_notifications"`
	Badge      bool           `json:"badge"`
}

type SettingsResponse struct {
	Config config.Config `json:"config"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload"`
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:               t.ID,
		Text:             t.Text,
		Category:         t.Category,
		Completed:        t.Completed,
		Expired:          t.Expired,
		DueDate:          t.DueDate,
		ReminderPhrases:  t.ReminderPhrases,
		RemainingSeconds: t.RemainingSeconds,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		CompletedAt:      t.CompletedAt,
	}
}

func mapTasks(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse(t))
	}
	return out
}

func notificationResponse(n domain.PendingNotification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		TaskID:    n.TaskID,
		CreatedAt: n.CreatedAt,
	}
}

func mapNotifications(items []domain.PendingNotification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, notificationResponse(n))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Payload:    e.Payload,
	}
}
