package models

import "time"

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

var ValidTaskStatuses = map[TaskStatus]bool{
	TaskPending:    true,
	TaskProcessing: true,
	TaskCompleted:  true,
	TaskFailed:     true,
}

// BuildTask tracks one knowledge-base build from upload to completion.
type BuildTask struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	Source     string     `json:"source"`
	FilePath   string     `json:"-"`
	Status     TaskStatus `json:"status"`
	Progress   int        `json:"progress"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
	ChunkCount int        `json:"chunk_count"`
	VersionID  string     `json:"version_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// KBVersion is a registered, queryable knowledge-base build.
type KBVersion struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Filename    string    `json:"filename"`
	DisplayName string    `json:"display_name"`
	Collection  string    `json:"collection"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

type UploadResponse struct {
	TaskID   string     `json:"task_id"`
	Filename string     `json:"filename"`
	Status   TaskStatus `json:"status"`
	Message  string     `json:"message"`
}
