package tasks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/subtrans-engine/internal/llm"
	"github.com/MimeLyc/subtrans-engine/pkg/log"
)

// Executor runs one task to completion. It returns nil when every chunk
// succeeded, the context error when it stopped because the context was
// cancelled, and the fatal error otherwise.
type Executor func(ctx context.Context, task *Task) error

// Registry owns every live task record. All mutations go through its
// methods under one mutex; callers only ever see cloned snapshots, so a
// reader can never observe a half-updated record.
type Registry struct {
	workerCount int
	maxTasks    int
	store       Store

	mu        sync.RWMutex
	tasks     map[string]*Task
	dedupe    map[string]string
	cancels   map[string]context.CancelFunc
	started   bool
	onEvicted func(taskID string)

	rootCtx    context.Context
	rootCancel context.CancelFunc
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewRegistry(workerCount int, store Store) *Registry {
	if workerCount <= 0 {
		workerCount = 1
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	r := &Registry{
		workerCount: workerCount,
		maxTasks:    1000,
		store:       store,
		tasks:       make(map[string]*Task),
		dedupe:      make(map[string]string),
		cancels:     make(map[string]context.CancelFunc),
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		pendingIDs:  make(chan string, 1024),
		stopCh:      make(chan struct{}),
	}
	r.hydrateFromStore(context.Background())
	return r
}

// SetEvictionHook registers a callback invoked with the id of every task
// removed from the registry. Must be called before Start.
func (r *Registry) SetEvictionHook(hook func(taskID string)) {
	r.mu.Lock()
	r.onEvicted = hook
	r.mu.Unlock()
}

// Create registers a queued task for the request. When a live task for the
// same request key already exists, that task is returned and the second
// result is false.
func (r *Registry) Create(req Request) (*Task, bool) {
	now := time.Now()
	key := req.Key()

	r.mu.Lock()
	if id, ok := r.dedupe[key]; ok {
		if existing, exists := r.tasks[id]; exists {
			snapshot := cloneTask(existing)
			r.mu.Unlock()
			return snapshot, false
		}
		delete(r.dedupe, key)
	}

	task := &Task{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.tasks[task.ID] = task
	r.dedupe[key] = task.ID
	started := r.started
	snapshot := cloneTask(task)
	r.mu.Unlock()

	r.persistTask(snapshot)
	if started {
		r.enqueuePendingID(task.ID)
	}
	return snapshot, true
}

func (r *Registry) Get(id string) (*Task, bool) {
	r.mu.RLock()
	task, ok := r.tasks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneTask(task), true
}

// List returns snapshots of every task, newest first.
func (r *Registry) List() []*Task {
	r.mu.RLock()
	ret := make([]*Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		ret = append(ret, cloneTask(task))
	}
	r.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	return ret
}

func (r *Registry) Start(exec Executor) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true

	queued := make([]string, 0)
	for id, task := range r.tasks {
		if task.Status == StatusQueued {
			queued = append(queued, id)
		}
	}
	r.mu.Unlock()

	for _, id := range queued {
		r.enqueuePendingID(id)
	}

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(exec)
	}
}

// Stop aborts in-flight executors and waits for the workers to exit.
// Interrupted tasks keep their running record in the store and are requeued
// on the next hydration.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		r.rootCancel()
		close(r.stopCh)
		r.wg.Wait()
	})
}

func (r *Registry) worker(exec Executor) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			return
		case id := <-r.pendingIDs:
			ctx, cancel := context.WithCancel(r.rootCtx)
			task, ok := r.markRunning(id, cancel)
			if !ok {
				cancel()
				continue
			}

			err := exec(ctx, task)

			r.mu.Lock()
			delete(r.cancels, id)
			r.mu.Unlock()
			cancel()

			switch {
			case err == nil:
				r.markCompleted(id)
			case errors.Is(err, context.Canceled):
				if r.cancelRequested(id) {
					r.markCancelled(id)
				}
				// otherwise the registry is shutting down: the record
				// stays running and hydration requeues it
			default:
				r.markFailed(id, err)
			}
		}
	}
}

func (r *Registry) enqueuePendingID(id string) {
	select {
	case r.pendingIDs <- id:
	default:
		go func() { r.pendingIDs <- id }()
	}
}

// Cancel requests cooperative cancellation. A queued task goes terminal on
// the spot; a running one has its context cancelled and goes terminal when
// the executor unwinds. Cancelling a terminal task changes nothing.
func (r *Registry) Cancel(id string) (*Task, bool) {
	r.mu.Lock()
	task, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	if task.Status.Terminal() {
		snapshot := cloneTask(task)
		r.mu.Unlock()
		return snapshot, true
	}

	task.CancelRequested = true
	task.UpdatedAt = time.Now()

	var pruned []string
	if task.Status == StatusQueued {
		task.Status = StatusCancelled
		r.releaseDedupeLocked(task)
		pruned = r.pruneTerminalLocked()
	} else if cancel, exists := r.cancels[id]; exists {
		cancel()
	}
	snapshot := cloneTask(task)
	r.mu.Unlock()

	r.persistTask(snapshot)
	r.dropEvicted(pruned)
	return snapshot, true
}

// SetChunkPlan records how many chunks and entries the task will process.
func (r *Registry) SetChunkPlan(id string, chunks, entries int) (*Task, bool) {
	return r.mutate(id, func(task *Task) {
		task.CreatedChunks = chunks
		task.TotalEntries = entries
	})
}

// NoteChunkDone advances the completion counters after one chunk succeeded.
func (r *Registry) NoteChunkDone(id string, entries int) (*Task, bool) {
	return r.mutate(id, func(task *Task) {
		task.CompletedChunks++
		task.TranslatedEntries += entries
	})
}

// NoteChunkFailed counts a chunk that gave up after retries.
func (r *Registry) NoteChunkFailed(id string) (*Task, bool) {
	return r.mutate(id, func(task *Task) {
		task.FailedChunks++
	})
}

// AddUsage accumulates provider token usage onto the task.
func (r *Registry) AddUsage(id string, usage llm.Usage) {
	r.mutate(id, func(task *Task) {
		task.Usage.Add(usage)
	})
}

func (r *Registry) mutate(id string, fn func(task *Task)) (*Task, bool) {
	r.mu.Lock()
	task, ok := r.tasks[id]
	if !ok || task.Status.Terminal() {
		r.mu.Unlock()
		return nil, false
	}
	fn(task)
	task.UpdatedAt = time.Now()
	snapshot := cloneTask(task)
	r.mu.Unlock()

	r.persistTask(snapshot)
	return snapshot, true
}

func (r *Registry) cancelRequested(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	return ok && task.CancelRequested
}

// markRunning transitions a queued task to running and registers its cancel
// func in the same critical section, so a concurrent Cancel either still sees
// the task queued or finds the func to cancel the running context with.
func (r *Registry) markRunning(id string, cancel context.CancelFunc) (*Task, bool) {
	r.mu.Lock()
	task, ok := r.tasks[id]
	if !ok || task.Status != StatusQueued {
		r.mu.Unlock()
		return nil, false
	}
	task.Status = StatusRunning
	task.UpdatedAt = time.Now()
	r.cancels[id] = cancel
	snapshot := cloneTask(task)
	r.mu.Unlock()

	r.persistTask(snapshot)
	return snapshot, true
}

func (r *Registry) markCompleted(id string) {
	r.markTerminal(id, StatusCompleted, nil)
}

func (r *Registry) markCancelled(id string) {
	r.markTerminal(id, StatusCancelled, nil)
}

func (r *Registry) markFailed(id string, err error) {
	r.markTerminal(id, StatusFailed, err)
}

func (r *Registry) markTerminal(id string, status Status, err error) {
	r.mu.Lock()
	task, ok := r.tasks[id]
	if !ok || task.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	task.Status = status
	if err != nil {
		task.LastError = err.Error()
	}
	task.UpdatedAt = time.Now()
	r.releaseDedupeLocked(task)
	pruned := r.pruneTerminalLocked()
	snapshot := cloneTask(task)
	r.mu.Unlock()

	r.persistTask(snapshot)
	r.dropEvicted(pruned)
}

func (r *Registry) releaseDedupeLocked(task *Task) {
	if task == nil {
		return
	}
	key := task.Request.Key()
	if id, ok := r.dedupe[key]; ok && id == task.ID {
		delete(r.dedupe, key)
	}
}

func (r *Registry) pruneTerminalLocked() []string {
	if r.maxTasks <= 0 || len(r.tasks) <= r.maxTasks {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(r.tasks))
	for id, task := range r.tasks {
		if task == nil || !task.Status.Terminal() {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: task.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(r.tasks) - r.maxTasks
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		id := terminal[i].id
		r.releaseDedupeLocked(r.tasks[id])
		delete(r.tasks, id)
		pruned = append(pruned, id)
	}
	return pruned
}

// EvictTerminalBefore removes terminal tasks last updated before the cutoff
// and returns their ids.
func (r *Registry) EvictTerminalBefore(cutoff time.Time) []string {
	r.mu.Lock()
	evicted := make([]string, 0)
	for id, task := range r.tasks {
		if task == nil || !task.Status.Terminal() {
			continue
		}
		if task.UpdatedAt.Before(cutoff) {
			r.releaseDedupeLocked(task)
			delete(r.tasks, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	r.dropEvicted(evicted)
	return evicted
}

func (r *Registry) dropEvicted(ids []string) {
	if len(ids) == 0 {
		return
	}

	r.mu.RLock()
	hook := r.onEvicted
	r.mu.RUnlock()

	for _, id := range ids {
		if r.store != nil {
			if err := r.store.DeleteTaskData(context.Background(), id); err != nil {
				log.Error("Failed to delete data for evicted task %s: %v", id, err)
			}
			if err := r.store.DeleteTask(context.Background(), id); err != nil {
				log.Error("Failed to delete evicted task %s from store: %v", id, err)
			}
		}
		if hook != nil {
			hook(id)
		}
	}
}

func (r *Registry) hydrateFromStore(ctx context.Context) {
	if r.store == nil {
		return
	}
	loaded, err := r.store.LoadTasks(ctx)
	if err != nil {
		log.Error("Failed to load tasks from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*Task, 0)
	r.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		task := cloneTask(raw)
		switch {
		case task.CancelRequested && !task.Status.Terminal():
			// the cancel decision outlives the restart
			task.Status = StatusCancelled
			task.UpdatedAt = now
			toPersist = append(toPersist, cloneTask(task))
		case task.Status == StatusRunning:
			task.Status = StatusQueued
			task.UpdatedAt = now
			toPersist = append(toPersist, cloneTask(task))
		}
		r.tasks[task.ID] = task
		if !task.Status.Terminal() {
			r.dedupe[task.Request.Key()] = task.ID
		}
	}
	r.mu.Unlock()

	for _, task := range toPersist {
		r.persistTask(task)
	}
}

func (r *Registry) persistTask(task *Task) {
	if r.store == nil || task == nil {
		return
	}
	if err := r.store.UpsertTask(context.Background(), task); err != nil {
		log.Error("Failed to persist task %s: %v", task.ID, err)
	}
}
