package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/MimeLyc/subtrans-engine/internal/persistence"
	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

// SaveTranslation persists entries as the authoritative stored result for a
// content and target language, replacing whatever was there. Any editing
// session based on the previous result is discarded.
func (e *Engine) SaveTranslation(ctx context.Context, contentID, targetLanguage string, entries []subtitle.TranslatedEntry, edited bool) error {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return NewError(ErrValidation, "content id is required")
	}
	lang, err := normalizeLanguage(targetLanguage)
	if err != nil {
		return NewErrorWithCause(ErrValidation, "unsupported target language", err).
			WithContext("target_language", targetLanguage)
	}
	if len(entries) == 0 {
		return NewError(ErrValidation, "nothing to save").
			WithContext("content_id", contentID)
	}

	saved := persistence.SavedTranslation{
		ContentID:       contentID,
		TargetLanguage:  lang,
		Entries:         entries,
		Edited:          edited,
		IsAuthoritative: true,
	}
	if err := e.translations.SaveTranslation(ctx, saved); err != nil {
		return WrapError(err, ErrIO, "failed to save translation").
			WithContext("content_id", contentID).
			WithContext("target_language", lang)
	}

	e.dropOverlay(contentID, lang)
	return nil
}

// LoadTranslation returns the stored result for a content and target
// language.
func (e *Engine) LoadTranslation(ctx context.Context, contentID, targetLanguage string) (persistence.SavedTranslation, error) {
	lang, err := normalizeLanguage(targetLanguage)
	if err != nil {
		return persistence.SavedTranslation{}, NewErrorWithCause(ErrValidation, "unsupported target language", err).
			WithContext("target_language", targetLanguage)
	}

	saved, found, err := e.translations.LoadTranslation(ctx, contentID, lang)
	if err != nil {
		return persistence.SavedTranslation{}, WrapError(err, ErrIO, "failed to load translation").
			WithContext("content_id", contentID).
			WithContext("target_language", lang)
	}
	if !found {
		return persistence.SavedTranslation{}, NewError(ErrNotFound, "no saved translation").
			WithContext("content_id", contentID).
			WithContext("target_language", lang)
	}
	return saved, nil
}

// DeleteTranslation removes the stored result. Deleting a missing one is an
// error, so a client learns it named the wrong content or language.
func (e *Engine) DeleteTranslation(ctx context.Context, contentID, targetLanguage string) error {
	lang, err := normalizeLanguage(targetLanguage)
	if err != nil {
		return NewErrorWithCause(ErrValidation, "unsupported target language", err).
			WithContext("target_language", targetLanguage)
	}

	if err := e.translations.DeleteTranslation(ctx, contentID, lang); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return NewError(ErrNotFound, "no saved translation").
				WithContext("content_id", contentID).
				WithContext("target_language", lang)
		}
		return WrapError(err, ErrIO, "failed to delete translation").
			WithContext("content_id", contentID).
			WithContext("target_language", lang)
	}

	e.dropOverlay(contentID, lang)
	return nil
}

// ClearTranslation removes the stored result if present. Clearing an absent
// one succeeds, so retries and cleanup scripts stay simple.
func (e *Engine) ClearTranslation(ctx context.Context, contentID, targetLanguage string) error {
	lang, err := normalizeLanguage(targetLanguage)
	if err != nil {
		return NewErrorWithCause(ErrValidation, "unsupported target language", err).
			WithContext("target_language", targetLanguage)
	}

	if err := e.translations.ClearTranslation(ctx, contentID, lang); err != nil {
		return WrapError(err, ErrIO, "failed to clear translation").
			WithContext("content_id", contentID).
			WithContext("target_language", lang)
	}

	e.dropOverlay(contentID, lang)
	return nil
}
