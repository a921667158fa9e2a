package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/MimeLyc/subtrans-engine/internal/overlay"
	"github.com/MimeLyc/subtrans-engine/internal/persistence"
	"github.com/MimeLyc/subtrans-engine/internal/progress"
	"github.com/MimeLyc/subtrans-engine/internal/provider"
	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
	"github.com/MimeLyc/subtrans-engine/internal/tasks"
	"github.com/MimeLyc/subtrans-engine/pkg/log"
)

const (
	defaultChunkSize     = 50
	defaultContextWindow = 3
	defaultPreviewLimit  = 3
	defaultRetention     = 24 * time.Hour
)

// EntrySource hands the engine the ordered entries of one subtitle track.
type EntrySource interface {
	Entries(ctx context.Context, contentID string, trackIndex int) ([]subtitle.Entry, error)
}

// TrackLocator is the optional capability of a source that can also name the
// file a track came from, enabling translated-file write-back.
type TrackLocator interface {
	TrackPath(ctx context.Context, contentID string, trackIndex int) (string, error)
}

// CheckpointStore persists per-chunk translations so interrupted tasks
// resume instead of re-translating.
type CheckpointStore interface {
	SaveChunkCheckpoint(ctx context.Context, cp persistence.ChunkCheckpoint) error
	LoadChunkCheckpoints(ctx context.Context, taskID string) ([]persistence.ChunkCheckpoint, error)
}

// TranslationStore persists completed translations keyed by content and
// target language.
type TranslationStore interface {
	SaveTranslation(ctx context.Context, saved persistence.SavedTranslation) error
	LoadTranslation(ctx context.Context, contentID, targetLanguage string) (persistence.SavedTranslation, bool, error)
	DeleteTranslation(ctx context.Context, contentID, targetLanguage string) error
	ClearTranslation(ctx context.Context, contentID, targetLanguage string) error
}

// Options wires the engine's collaborators and policies.
type Options struct {
	Source       EntrySource
	Translator   provider.Translator
	Registry     *tasks.Registry
	Bus          *progress.Bus
	Translations TranslationStore
	// Checkpoints is optional; without it tasks always translate from
	// scratch after a restart and Results serves finished tasks from the
	// saved translation instead of per-chunk state.
	Checkpoints CheckpointStore

	// ChunkSize is the default entries-per-chunk when a request leaves it
	// unset.
	ChunkSize int
	// ContextWindow is the default K entries of cross-chunk context.
	ContextWindow int
	// PreviewLimit caps the original/translated pairs carried on progress
	// events.
	PreviewLimit int
	// HistoryLimit bounds the editing overlay's undo depth.
	HistoryLimit int
	// GlossaryDir holds the fallback glossary files when no per-track one
	// is found next to the subtitle.
	GlossaryDir string
	// WriteTranslatedFiles writes a translated .srt next to the source
	// track when a task completes.
	WriteTranslatedFiles bool

	// EvictionCron schedules the terminal-task janitor. Empty disables it.
	EvictionCron string
	// Retention is how long terminal tasks stay visible before eviction.
	Retention time.Duration
}

// Engine ties the subtitle source, chunker, provider adapter, task registry,
// progress bus and stores together behind the submit/cancel/observe surface.
type Engine struct {
	source       EntrySource
	translator   provider.Translator
	registry     *tasks.Registry
	bus          *progress.Bus
	translations TranslationStore
	checkpoints  CheckpointStore
	writer       subtitle.Writer

	chunkSize     int
	contextWindow int
	previewLimit  int
	historyLimit  int
	glossaryDir   string
	writeFiles    bool

	evictionCron string
	retention    time.Duration
	cron         *cron.Cron

	mu          sync.Mutex
	overlays    map[string]*overlay.Overlay
	lastJanitor time.Time
	lastEvicted int
}

func New(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if opts.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if opts.Translations == nil {
		return nil, fmt.Errorf("translation store is required")
	}

	e := &Engine{
		source:        opts.Source,
		translator:    opts.Translator,
		registry:      opts.Registry,
		bus:           opts.Bus,
		translations:  opts.Translations,
		checkpoints:   opts.Checkpoints,
		writer:        subtitle.NewWriter(),
		chunkSize:     opts.ChunkSize,
		contextWindow: opts.ContextWindow,
		previewLimit:  opts.PreviewLimit,
		historyLimit:  opts.HistoryLimit,
		glossaryDir:   opts.GlossaryDir,
		writeFiles:    opts.WriteTranslatedFiles,
		evictionCron:  opts.EvictionCron,
		retention:     opts.Retention,
		overlays:      make(map[string]*overlay.Overlay),
	}
	if e.chunkSize <= 0 {
		e.chunkSize = defaultChunkSize
	}
	if e.contextWindow <= 0 {
		e.contextWindow = defaultContextWindow
	}
	if e.previewLimit <= 0 {
		e.previewLimit = defaultPreviewLimit
	}
	if e.retention <= 0 {
		e.retention = defaultRetention
	}

	// Evicted tasks release their event-bus bookkeeping with them.
	e.registry.SetEvictionHook(e.bus.Forget)

	return e, nil
}

// Start launches the task workers and, when configured, the eviction
// janitor.
func (e *Engine) Start() error {
	if e.evictionCron != "" {
		c := cron.New()
		if _, err := c.AddFunc(e.evictionCron, e.runJanitor); err != nil {
			return fmt.Errorf("invalid eviction cron %q: %w", e.evictionCron, err)
		}
		c.Start()
		e.cron = c
	}

	e.registry.Start(e.execute)
	log.Info("Engine started")
	return nil
}

// Stop aborts in-flight tasks and waits for the workers to drain.
func (e *Engine) Stop() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	e.registry.Stop()
	log.Info("Engine stopped")
}

// Submit validates a request and queues a translation task. Submitting a
// request identical to a live task returns that task instead of a new one.
func (e *Engine) Submit(ctx context.Context, req tasks.Request) (*tasks.Task, error) {
	if strings.TrimSpace(req.ContentID) == "" {
		return nil, NewError(ErrValidation, "content id is required")
	}
	if req.TrackIndex < 0 {
		return nil, NewError(ErrValidation, "track index must not be negative").
			WithContext("track_index", req.TrackIndex)
	}
	if req.ChunkSize < 0 {
		return nil, NewError(ErrValidation, "chunk size must be positive").
			WithContext("chunk_size", req.ChunkSize)
	}
	if req.ContextWindow < 0 {
		return nil, NewError(ErrValidation, "context window must not be negative").
			WithContext("context_window", req.ContextWindow)
	}

	target, err := normalizeLanguage(req.TargetLanguage)
	if err != nil {
		return nil, NewErrorWithCause(ErrValidation, "unsupported target language", err).
			WithContext("target_language", req.TargetLanguage)
	}
	req.TargetLanguage = target

	if req.ChunkSize == 0 {
		req.ChunkSize = e.chunkSize
	}
	if req.ContextWindow == 0 {
		req.ContextWindow = e.contextWindow
	}

	// Resolving the track up front turns an unknown content or track into a
	// synchronous rejection instead of a task that fails later.
	entries, err := e.source.Entries(ctx, req.ContentID, req.TrackIndex)
	if err != nil {
		return nil, NewErrorWithCause(ErrValidation, "cannot load the requested track", err).
			WithContext("content_id", req.ContentID).
			WithContext("track_index", req.TrackIndex)
	}

	switch strings.ToLower(strings.TrimSpace(req.SourceLanguage)) {
	case "", "auto":
		base, _ := subtitle.DetectLanguage(entries).Base()
		req.SourceLanguage = base.String()
	default:
		source, err := normalizeLanguage(req.SourceLanguage)
		if err != nil {
			return nil, NewErrorWithCause(ErrValidation, "unsupported source language", err).
				WithContext("source_language", req.SourceLanguage)
		}
		req.SourceLanguage = source
	}

	task, created := e.registry.Create(req)
	if !created {
		log.Info("Request for %s track %d joins live task %s", req.ContentID, req.TrackIndex, task.ID)
	}
	return task, nil
}

// Cancel requests cooperative cancellation. A queued task goes terminal
// immediately; a running one unwinds through its in-flight chunk first.
func (e *Engine) Cancel(taskID string) (*tasks.Task, error) {
	task, ok := e.registry.Cancel(taskID)
	if !ok {
		return nil, NewError(ErrNotFound, "task not found").WithContext("task_id", taskID)
	}
	if task.Status == tasks.StatusCancelled {
		// Queued tasks never reach a worker, so their terminal event is
		// published here. The bus drops the duplicate when the task was
		// already finished.
		e.bus.Publish(progress.NewCancelled(task.ID, "translation cancelled"))
	}
	return task, nil
}

// Status returns a snapshot of one task.
func (e *Engine) Status(taskID string) (*tasks.Task, error) {
	task, ok := e.registry.Get(taskID)
	if !ok {
		return nil, NewError(ErrNotFound, "task not found").WithContext("task_id", taskID)
	}
	return task, nil
}

// List returns snapshots of all known tasks, newest first.
func (e *Engine) List() []*tasks.Task {
	return e.registry.List()
}

// Subscribe attaches to a task's progress stream. Subscribing to a terminal
// task yields an immediately closed stream; callers read the final state
// from the task record instead.
func (e *Engine) Subscribe(taskID string) (<-chan progress.Event, func(), error) {
	task, ok := e.registry.Get(taskID)
	if !ok {
		return nil, nil, NewError(ErrNotFound, "task not found").WithContext("task_id", taskID)
	}
	if task.Status.Terminal() {
		ch := make(chan progress.Event)
		close(ch)
		return ch, func() {}, nil
	}
	events, cancel := e.bus.Subscribe(taskID)
	return events, cancel, nil
}

// Results assembles everything the task has translated so far, in full track
// order. Untranslated entries carry an empty TranslatedText, so partial work
// stays retrievable after a failure or cancellation.
func (e *Engine) Results(ctx context.Context, taskID string) ([]subtitle.TranslatedEntry, error) {
	task, ok := e.registry.Get(taskID)
	if !ok {
		return nil, NewError(ErrNotFound, "task not found").WithContext("task_id", taskID)
	}

	entries, err := e.source.Entries(ctx, task.Request.ContentID, task.Request.TrackIndex)
	if err != nil {
		return nil, WrapError(err, ErrIO, "failed to load subtitle track")
	}

	texts := make(map[int]string, len(entries))
	cache, err := e.loadCheckpoints(ctx, taskID)
	if err != nil {
		return nil, WrapError(err, ErrIO, "failed to load chunk checkpoints")
	}
	for i, chunk := range e.buildChunks(entries, task.Request) {
		if translated, ok := cache.lookup(i, chunk); ok {
			applyChunkTexts(texts, chunk, translated)
		}
	}

	// Without a checkpoint store the chunk cache is always empty; the saved
	// translation still answers for tasks that finished.
	if len(texts) == 0 && e.checkpoints == nil {
		saved, found, err := e.translations.LoadTranslation(ctx, task.Request.ContentID, task.Request.TargetLanguage)
		if err != nil {
			return nil, WrapError(err, ErrIO, "failed to load translation")
		}
		if found {
			for _, entry := range saved.Entries {
				if entry.TranslatedText != "" {
					texts[entry.Index] = entry.TranslatedText
				}
			}
		}
	}

	return subtitle.MergeTranslations(entries, texts), nil
}

func normalizeLanguage(lang string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}
