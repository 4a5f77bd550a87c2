package models

import "time"

const (
	NotifySuccess = "success"
	NotifyInfo    = "info"
	NotifyWarning = "warning"
	NotifyError   = "error"
)

type Notification struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
	ActionURL   string    `json:"action_url,omitempty"`
	ActionText  string    `json:"action_text,omitempty"`
	RelatedKind string    `json:"related_kind,omitempty"`
	RelatedID   string    `json:"related_id,omitempty"`
}
