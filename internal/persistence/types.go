package persistence

import (
	"errors"
	"time"

	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

// ErrNotFound marks a delete or lookup that matched nothing.
var ErrNotFound = errors.New("not found")

// ChunkCheckpoint records one chunk's finished translations so an
// interrupted task can resume without re-buying the provider calls.
type ChunkCheckpoint struct {
	TaskID          string
	ChunkIndex      int
	EntryStart      int
	EntryEnd        int
	TranslatedTexts []string
	UpdatedAt       time.Time
}

// SavedTranslation is a persisted result keyed by content and target
// language. IsAuthoritative=false marks placeholder or sample data that a
// real result must always win over.
type SavedTranslation struct {
	ContentID       string
	TargetLanguage  string
	Entries         []subtitle.TranslatedEntry
	Edited          bool
	IsAuthoritative bool
	UpdatedAt       time.Time
}
