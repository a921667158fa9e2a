package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// DefaultWriter is the default subtitle file writer
type DefaultWriter struct{}

// NewWriter creates a new subtitle file writer
func NewWriter() Writer {
	return &DefaultWriter{}
}

// Write writes the entries to an SRT file at the given path.
func (w *DefaultWriter) Write(path string, entries []TranslatedEntry) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	return WriteSRT(file, entries)
}

// WriteSRT renders entries as SRT. Untranslated entries fall back to their
// original text so the output track stays complete.
func WriteSRT(w io.Writer, entries []TranslatedEntry) error {
	buf := bufio.NewWriter(w)

	for _, entry := range entries {
		fmt.Fprintf(buf, "%d\n", entry.Index)
		fmt.Fprintf(buf, "%s --> %s\n", SecondsToWire(entry.StartTime), SecondsToWire(entry.EndTime))

		text := entry.TranslatedText
		if text == "" {
			text = entry.Text
		}
		fmt.Fprintf(buf, "%s\n\n", text)
	}

	return buf.Flush()
}
