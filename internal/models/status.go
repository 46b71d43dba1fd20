package models

import "time"

type StatusLevel string

const (
	StatusInfo    StatusLevel = "info"
	StatusSuccess StatusLevel = "success"
	StatusError   StatusLevel = "error"
)

// StatusMessage is a transient notice shown to the user, e.g. a sync failure.
// An empty Text means the previous message was cleared.
type StatusMessage struct {
	Level StatusLevel `json:"level"`
	Text  string      `json:"text"`
	At    time.Time   `json:"at"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"` // "status"
	Payload interface{} `json:"payload"`
}

type SyncStats struct {
	Pushes        int64      `json:"pushes"`
	Pulls         int64      `json:"pulls"`
	Failures      int64      `json:"failures"`
	LastSyncAt    *time.Time `json:"last_sync_at"`
	Authenticated bool       `json:"authenticated"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
