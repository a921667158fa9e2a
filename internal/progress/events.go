package progress

import (
	"time"

	"github.com/MimeLyc/subtrans-engine/internal/llm"
	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

// EventType classifies messages emitted during task execution.
type EventType string

const (
	EventTypeProgress  EventType = "progress"
	EventTypeCompleted EventType = "completed"
	EventTypeError     EventType = "error"
	EventTypeCancelled EventType = "cancelled"
)

// PreviewPair is one recently translated line, shipped with progress events
// so a client can render live output without polling the full result.
type PreviewPair struct {
	Index          int    `json:"index"`
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
}

// Event is a sequenced payload consumed by task subscribers. Seq is
// monotonic per task, starting at 1.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	TaskID    string    `json:"task_id"`
	Type      EventType `json:"type"`

	// progress payload
	Completed int           `json:"completed,omitempty"`
	Total     int           `json:"total,omitempty"`
	Preview   []PreviewPair `json:"preview,omitempty"`

	// terminal payload
	Results []subtitle.TranslatedEntry `json:"results,omitempty"`
	Message string                     `json:"message,omitempty"`
	Usage   *llm.Usage                 `json:"usage,omitempty"`
}

// Terminal reports whether the event ends its task's stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventTypeCompleted, EventTypeError, EventTypeCancelled:
		return true
	default:
		return false
	}
}

// NewProgress builds a chunk-progress event.
func NewProgress(taskID string, completed, total int, preview []PreviewPair) Event {
	return Event{
		TaskID:    taskID,
		Type:      EventTypeProgress,
		Completed: completed,
		Total:     total,
		Preview:   preview,
	}
}

// NewCompleted builds the success terminal event carrying the full result.
func NewCompleted(taskID string, results []subtitle.TranslatedEntry, usage *llm.Usage) Event {
	return Event{
		TaskID:  taskID,
		Type:    EventTypeCompleted,
		Results: results,
		Usage:   usage,
	}
}

// NewError builds the failure terminal event.
func NewError(taskID, message string) Event {
	return Event{
		TaskID:  taskID,
		Type:    EventTypeError,
		Message: message,
	}
}

// NewCancelled builds the cancellation terminal event.
func NewCancelled(taskID, message string) Event {
	return Event{
		TaskID:  taskID,
		Type:    EventTypeCancelled,
		Message: message,
	}
}
