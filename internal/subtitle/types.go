package subtitle

import (
	"fmt"

	"golang.org/x/text/language"
)

// Reader is the interface for reading subtitle tracks
type Reader interface {
	Read(path string) (*Track, error)
}

// Writer is the interface for writing subtitle tracks
type Writer interface {
	Write(path string, entries []TranslatedEntry) error
}

// Entry represents a single timed subtitle line. Times are seconds.
type Entry struct {
	Index     int     `json:"index"`      // 1-based position within the track
	StartTime float64 `json:"start_time"` // start time in seconds
	EndTime   float64 `json:"end_time"`   // end time in seconds
	Text      string  `json:"text"`       // original subtitle text
}

// TranslatedEntry is an Entry plus its translation state. An empty
// TranslatedText means the entry has not been translated.
type TranslatedEntry struct {
	Entry
	TranslatedText string `json:"translated_text"`
	Edited         bool   `json:"edited,omitempty"`
}

// Track represents a parsed subtitle file
type Track struct {
	Entries  []Entry
	Language language.Tag
	Format   string // e.g. SRT
	Path     string
}

// ValidateEntries checks the structural invariants of a track: indexes are
// unique and strictly increasing, and every entry ends after it starts.
func ValidateEntries(entries []Entry) error {
	lastIndex := 0
	for i, e := range entries {
		if e.Index < 1 {
			return fmt.Errorf("entry %d: index %d is not positive", i, e.Index)
		}
		if e.Index <= lastIndex {
			return fmt.Errorf("entry %d: index %d does not increase (previous %d)", i, e.Index, lastIndex)
		}
		if e.StartTime >= e.EndTime {
			return fmt.Errorf("entry %d: start %.3f is not before end %.3f", e.Index, e.StartTime, e.EndTime)
		}
		lastIndex = e.Index
	}
	return nil
}
