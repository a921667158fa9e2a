package tasks

import "context"

// Store persists task records for registry restart recovery.
type Store interface {
	LoadTasks(ctx context.Context) ([]*Task, error)
	UpsertTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, taskID string) error
	// DeleteTaskData removes auxiliary data (chunk checkpoints) for a task.
	DeleteTaskData(ctx context.Context, taskID string) error
}
