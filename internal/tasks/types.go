package tasks

import (
	"fmt"
	"time"

	"github.com/MimeLyc/subtrans-engine/internal/llm"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Request describes one translation submission. Validation happens before a
// request reaches the registry.
type Request struct {
	ContentID      string `json:"content_id"`
	TrackIndex     int    `json:"track_index"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Style          string `json:"style,omitempty"`
	ModelID        string `json:"model_id,omitempty"`
	ChunkSize      int    `json:"chunk_size,omitempty"`
	ContextWindow  int    `json:"context_window,omitempty"`
}

// Key identifies the unit of work for deduplication: submitting the same
// content and target language twice while the first task is live returns the
// first task instead of translating twice.
func (r Request) Key() string {
	return fmt.Sprintf("%s|%d|%s", r.ContentID, r.TrackIndex, r.TargetLanguage)
}

// Task is the registry's record of one translation run. Counters only grow;
// once the status is terminal the record never changes again.
type Task struct {
	ID      string  `json:"id"`
	Request Request `json:"request"`
	Status  Status  `json:"status"`

	CreatedChunks     int `json:"created_chunks"`
	CompletedChunks   int `json:"completed_chunks"`
	FailedChunks      int `json:"failed_chunks"`
	TotalEntries      int `json:"total_entries"`
	TranslatedEntries int `json:"translated_entries"`

	CancelRequested bool      `json:"cancel_requested"`
	LastError       string    `json:"last_error,omitempty"`
	Usage           llm.Usage `json:"usage"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}
	tmp := *task
	return &tmp
}
