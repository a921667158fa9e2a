package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/MimeLyc/subtrans-engine/internal/chunker"
	"github.com/MimeLyc/subtrans-engine/internal/glossary"
	"github.com/MimeLyc/subtrans-engine/internal/llm"
	"github.com/MimeLyc/subtrans-engine/internal/persistence"
	"github.com/MimeLyc/subtrans-engine/internal/progress"
	"github.com/MimeLyc/subtrans-engine/internal/provider"
	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
	"github.com/MimeLyc/subtrans-engine/internal/tasks"
	"github.com/MimeLyc/subtrans-engine/pkg/file"
	"github.com/MimeLyc/subtrans-engine/pkg/log"
)

// execute runs one task end to end and publishes its terminal event. The
// registry applies the matching status transition from the returned error
// after this unwinds.
func (e *Engine) execute(ctx context.Context, task *tasks.Task) error {
	results, err := e.translateTrack(ctx, task)
	switch {
	case err == nil:
		var usage *llm.Usage
		if snapshot, ok := e.registry.Get(task.ID); ok {
			u := snapshot.Usage
			usage = &u
		}
		e.bus.Publish(progress.NewCompleted(task.ID, results, usage))
		return nil
	case errors.Is(err, context.Canceled):
		if snapshot, ok := e.registry.Get(task.ID); ok && snapshot.CancelRequested {
			e.bus.Publish(progress.NewCancelled(task.ID, "translation cancelled"))
		}
		// on shutdown no event is published: the task is requeued after
		// restart and its stream picks up where it left off
		return err
	default:
		log.Error("Task %s failed: %v", task.ID, err)
		e.bus.Publish(progress.NewError(task.ID, failureMessage(err)))
		return err
	}
}

// translateTrack walks the track chunk by chunk, restoring finished chunks
// from checkpoints and stopping at the first chunk the provider gives up on.
func (e *Engine) translateTrack(ctx context.Context, task *tasks.Task) ([]subtitle.TranslatedEntry, error) {
	req := task.Request

	entries, err := e.source.Entries(ctx, req.ContentID, req.TrackIndex)
	if err != nil {
		return nil, WrapError(err, ErrIO, "failed to load subtitle track").
			WithContext("content_id", req.ContentID).
			WithContext("track_index", req.TrackIndex)
	}

	chunks := e.buildChunks(entries, req)
	e.registry.SetChunkPlan(task.ID, len(chunks), len(entries))

	cache, err := e.loadCheckpoints(ctx, task.ID)
	if err != nil {
		return nil, WrapError(err, ErrIO, "failed to load chunk checkpoints")
	}
	terms := e.loadGlossary(ctx, req)

	texts := make(map[int]string, len(entries))
	var translated []subtitle.TranslatedEntry
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// The previous chunk's output is this chunk's preceding context.
		chunk.PrecedingContext = chunker.TailContext(translated, req.ContextWindow)

		chunkTexts, restored := cache.lookup(i, chunk)
		if !restored {
			chunkTexts, err = e.translateChunk(ctx, task.ID, req, chunk, terms)
			if err != nil {
				return nil, err
			}
			e.saveCheckpoint(ctx, task.ID, i, chunk, chunkTexts)
		}

		applyChunkTexts(texts, chunk, chunkTexts)
		translated = append(translated, translatedChunk(chunk, chunkTexts)...)
		e.registry.NoteChunkDone(task.ID, len(chunk.Entries))
		e.publishProgress(task.ID, i+1, len(chunks), chunk, chunkTexts)
	}

	results := subtitle.MergeTranslations(entries, texts)
	e.persistResult(ctx, req, results)
	return results, nil
}

// translateChunk performs one provider call with glossary terms narrowed to
// the chunk. Cancellation is surfaced as the context error and never counts
// as a chunk failure.
func (e *Engine) translateChunk(ctx context.Context, taskID string, req tasks.Request, chunk chunker.Chunk, terms glossary.Glossary) ([]string, error) {
	preq := provider.Request{
		Chunk:          chunk,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Style:          req.Style,
		ModelID:        req.ModelID,
	}
	if len(terms) > 0 {
		if matched := glossary.Match(terms, entryTexts(chunk.Entries)); len(matched) > 0 {
			preq.Terms = matched
		}
	}

	result, err := e.translator.TranslateChunk(ctx, preq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.registry.NoteChunkFailed(taskID)
		return nil, wrapProviderError(err)
	}

	e.registry.AddUsage(taskID, result.Usage)
	return result.Texts, nil
}

func (e *Engine) buildChunks(entries []subtitle.Entry, req tasks.Request) []chunker.Chunk {
	return chunker.Build(entries, chunker.Options{
		MaxEntries:    req.ChunkSize,
		ContextWindow: req.ContextWindow,
	})
}

// checkpointCache indexes a task's stored chunk results for O(1) lookup
// during the chunk loop.
type checkpointCache struct {
	byChunk map[int]persistence.ChunkCheckpoint
}

func (e *Engine) loadCheckpoints(ctx context.Context, taskID string) (*checkpointCache, error) {
	cache := &checkpointCache{byChunk: make(map[int]persistence.ChunkCheckpoint)}
	if e.checkpoints == nil {
		return cache, nil
	}
	stored, err := e.checkpoints.LoadChunkCheckpoints(ctx, taskID)
	if err != nil {
		return nil, err
	}
	for _, cp := range stored {
		cache.byChunk[cp.ChunkIndex] = cp
	}
	return cache, nil
}

// lookup returns the stored texts for a chunk when the stored boundaries
// still describe it. A chunk whose boundaries moved, because the chunk size
// changed or the source file was edited, is translated again.
func (c *checkpointCache) lookup(index int, chunk chunker.Chunk) ([]string, bool) {
	cp, ok := c.byChunk[index]
	if !ok {
		return nil, false
	}
	if len(chunk.Entries) == 0 || len(cp.TranslatedTexts) != len(chunk.Entries) {
		return nil, false
	}
	if cp.EntryStart != chunk.Entries[0].Index || cp.EntryEnd != chunk.Entries[len(chunk.Entries)-1].Index {
		return nil, false
	}
	return cp.TranslatedTexts, true
}

func (e *Engine) saveCheckpoint(ctx context.Context, taskID string, index int, chunk chunker.Chunk, texts []string) {
	if e.checkpoints == nil || len(chunk.Entries) == 0 {
		return
	}
	cp := persistence.ChunkCheckpoint{
		TaskID:          taskID,
		ChunkIndex:      index,
		EntryStart:      chunk.Entries[0].Index,
		EntryEnd:        chunk.Entries[len(chunk.Entries)-1].Index,
		TranslatedTexts: texts,
	}
	if err := e.checkpoints.SaveChunkCheckpoint(ctx, cp); err != nil {
		log.Warn("Failed to checkpoint chunk %d of task %s: %v", index, taskID, err)
	}
}

func (e *Engine) publishProgress(taskID string, completed, total int, chunk chunker.Chunk, texts []string) {
	e.bus.Publish(progress.NewProgress(taskID, completed, total, previewPairs(chunk, texts, e.previewLimit)))
}

// previewPairs picks the last translated lines of the chunk so subscribers
// see the newest output.
func previewPairs(chunk chunker.Chunk, texts []string, limit int) []progress.PreviewPair {
	n := len(chunk.Entries)
	if len(texts) < n {
		n = len(texts)
	}
	if n == 0 {
		return nil
	}
	start := 0
	if limit > 0 && n > limit {
		start = n - limit
	}

	pairs := make([]progress.PreviewPair, 0, n-start)
	for i := start; i < n; i++ {
		pairs = append(pairs, progress.PreviewPair{
			Index:          chunk.Entries[i].Index,
			SourceText:     chunk.Entries[i].Text,
			TranslatedText: texts[i],
		})
	}
	return pairs
}

// loadGlossary finds the glossary for the language pair. A file next to the
// track or in one of its ancestor directories wins over the configured
// glossary directory, so a show can override library-wide terms.
func (e *Engine) loadGlossary(ctx context.Context, req tasks.Request) glossary.Glossary {
	var path string
	if locator, ok := e.source.(TrackLocator); ok {
		if trackPath, err := locator.TrackPath(ctx, req.ContentID, req.TrackIndex); err == nil {
			path = glossary.FindInAncestors(filepath.Dir(trackPath), req.SourceLanguage, req.TargetLanguage)
		}
	}
	if path == "" && e.glossaryDir != "" {
		candidate := glossary.FilePath(e.glossaryDir, req.SourceLanguage, req.TargetLanguage)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path == "" {
		return nil
	}

	g, err := glossary.Load(path)
	if err != nil {
		log.Warn("Failed to load glossary %s: %v", path, err)
		return nil
	}
	log.Info("Using glossary %s (%d terms)", path, len(g))
	return g
}

// persistResult stores the finished translation as the authoritative copy
// for its content and language, optionally writes the translated subtitle
// next to the source track, and drops any editing session still based on
// the previous result. Failures are logged, never fatal: the completed task
// already carries the result.
func (e *Engine) persistResult(ctx context.Context, req tasks.Request, results []subtitle.TranslatedEntry) {
	if len(results) == 0 {
		return
	}

	saved := persistence.SavedTranslation{
		ContentID:       req.ContentID,
		TargetLanguage:  req.TargetLanguage,
		Entries:         results,
		IsAuthoritative: true,
	}
	if err := e.translations.SaveTranslation(ctx, saved); err != nil {
		log.Error("Failed to save translation for %s (%s): %v", req.ContentID, req.TargetLanguage, err)
	} else {
		e.dropOverlay(req.ContentID, req.TargetLanguage)
	}

	if e.writeFiles {
		e.writeTranslatedFile(ctx, req, results)
	}
}

func (e *Engine) writeTranslatedFile(ctx context.Context, req tasks.Request, results []subtitle.TranslatedEntry) {
	locator, ok := e.source.(TrackLocator)
	if !ok {
		return
	}
	trackPath, err := locator.TrackPath(ctx, req.ContentID, req.TrackIndex)
	if err != nil {
		log.Warn("Cannot locate the track file for %s: %v", req.ContentID, err)
		return
	}

	outPath := file.ReplaceExt(trackPath, req.TargetLanguage+".srt")
	if err := e.writer.Write(outPath, results); err != nil {
		log.Error("Failed to write translated subtitle %s: %v", outPath, err)
		return
	}
	log.Info("Wrote translated subtitle %s", outPath)
}

func applyChunkTexts(texts map[int]string, chunk chunker.Chunk, chunkTexts []string) {
	for i, entry := range chunk.Entries {
		if i >= len(chunkTexts) {
			return
		}
		texts[entry.Index] = chunkTexts[i]
	}
}

func translatedChunk(chunk chunker.Chunk, texts []string) []subtitle.TranslatedEntry {
	out := make([]subtitle.TranslatedEntry, 0, len(chunk.Entries))
	for i, entry := range chunk.Entries {
		if i >= len(texts) {
			break
		}
		out = append(out, subtitle.TranslatedEntry{Entry: entry, TranslatedText: texts[i]})
	}
	return out
}

func entryTexts(entries []subtitle.Entry) []string {
	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Text
	}
	return texts
}

func wrapProviderError(err error) *EngineError {
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		if perr.Transient {
			return WrapError(err, ErrProviderTransient, "provider did not recover after retries")
		}
		return WrapError(err, ErrProviderPermanent, perr.Message)
	}
	return WrapError(err, ErrUnknown, "chunk translation failed")
}

// failureMessage extracts the most useful human-readable message from a task
// failure for the terminal error event.
func failureMessage(err error) string {
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		return perr.Message
	}
	var eerr *EngineError
	if errors.As(err, &eerr) {
		return eerr.Message
	}
	if err != nil {
		return err.Error()
	}
	return "translation failed"
}
