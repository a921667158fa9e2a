package engine

import (
	"context"

	"github.com/MimeLyc/subtrans-engine/internal/overlay"
	"github.com/MimeLyc/subtrans-engine/internal/persistence"
	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

func overlayKey(contentID, lang string) string {
	return contentID + "|" + lang
}

// editOverlay returns the live editing session for a stored translation,
// creating one from the stored result on first use. Sessions are in-memory;
// edits only reach the store through SaveEdits.
func (e *Engine) editOverlay(ctx context.Context, contentID, targetLanguage string) (*overlay.Overlay, string, error) {
	lang, err := normalizeLanguage(targetLanguage)
	if err != nil {
		return nil, "", NewErrorWithCause(ErrValidation, "unsupported target language", err).
			WithContext("target_language", targetLanguage)
	}
	key := overlayKey(contentID, lang)

	e.mu.Lock()
	if ov, ok := e.overlays[key]; ok {
		e.mu.Unlock()
		return ov, lang, nil
	}
	e.mu.Unlock()

	saved, found, err := e.translations.LoadTranslation(ctx, contentID, lang)
	if err != nil {
		return nil, "", WrapError(err, ErrIO, "failed to load translation").
			WithContext("content_id", contentID).
			WithContext("target_language", lang)
	}
	if !found {
		return nil, "", NewError(ErrNotFound, "no saved translation to edit").
			WithContext("content_id", contentID).
			WithContext("target_language", lang)
	}

	ov := overlay.New(saved.Entries, e.historyLimit)

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.overlays[key]; ok {
		// another caller created the session while we loaded
		return existing, lang, nil
	}
	e.overlays[key] = ov
	return ov, lang, nil
}

func (e *Engine) dropOverlay(contentID, lang string) {
	e.mu.Lock()
	delete(e.overlays, overlayKey(contentID, lang))
	e.mu.Unlock()
}

// EditLine overrides the translated text of one entry in the editing
// session.
func (e *Engine) EditLine(ctx context.Context, contentID, targetLanguage string, index int, newText string) error {
	ov, _, err := e.editOverlay(ctx, contentID, targetLanguage)
	if err != nil {
		return err
	}
	if err := ov.Update(index, newText); err != nil {
		return NewErrorWithCause(ErrValidation, "cannot edit entry", err).
			WithContext("index", index)
	}
	return nil
}

// UndoEdit steps the editing session one mutation backwards. Returns false
// when there is nothing to undo.
func (e *Engine) UndoEdit(ctx context.Context, contentID, targetLanguage string) (bool, error) {
	ov, _, err := e.editOverlay(ctx, contentID, targetLanguage)
	if err != nil {
		return false, err
	}
	return ov.Undo(), nil
}

// RedoEdit re-applies the last undone mutation. Returns false when there is
// nothing to redo.
func (e *Engine) RedoEdit(ctx context.Context, contentID, targetLanguage string) (bool, error) {
	ov, _, err := e.editOverlay(ctx, contentID, targetLanguage)
	if err != nil {
		return false, err
	}
	return ov.Redo(), nil
}

// ResetLine removes the override for one entry, restoring its stored text.
// Returns false when the entry had no override.
func (e *Engine) ResetLine(ctx context.Context, contentID, targetLanguage string, index int) (bool, error) {
	ov, _, err := e.editOverlay(ctx, contentID, targetLanguage)
	if err != nil {
		return false, err
	}
	return ov.Reset(index), nil
}

// ResetAllEdits drops every override in the editing session. The previous
// state stays reachable through UndoEdit.
func (e *Engine) ResetAllEdits(ctx context.Context, contentID, targetLanguage string) error {
	ov, _, err := e.editOverlay(ctx, contentID, targetLanguage)
	if err != nil {
		return err
	}
	ov.ResetAll()
	return nil
}

// EditedResult returns the stored translation with the session's overrides
// applied. Overridden entries carry Edited=true.
func (e *Engine) EditedResult(ctx context.Context, contentID, targetLanguage string) ([]subtitle.TranslatedEntry, error) {
	ov, _, err := e.editOverlay(ctx, contentID, targetLanguage)
	if err != nil {
		return nil, err
	}
	return ov.Merged(), nil
}

// SaveEdits persists the merged editing session as the stored result. The
// session stays open, so further edits continue from the same state.
func (e *Engine) SaveEdits(ctx context.Context, contentID, targetLanguage string) error {
	ov, lang, err := e.editOverlay(ctx, contentID, targetLanguage)
	if err != nil {
		return err
	}

	saved := persistence.SavedTranslation{
		ContentID:       contentID,
		TargetLanguage:  lang,
		Entries:         ov.Merged(),
		Edited:          ov.EditCount() > 0,
		IsAuthoritative: true,
	}
	if err := e.translations.SaveTranslation(ctx, saved); err != nil {
		return WrapError(err, ErrIO, "failed to save edited translation").
			WithContext("content_id", contentID).
			WithContext("target_language", lang)
	}
	return nil
}
