package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DefaultReader is the default subtitle file reader
type DefaultReader struct{}

// NewReader creates a new subtitle file reader
func NewReader() Reader {
	return &DefaultReader{}
}

// Read reads an SRT subtitle file from disk.
func (r *DefaultReader) Read(path string) (*Track, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".srt") {
		return nil, fmt.Errorf("only SRT format subtitle files are supported: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}

	return ReadSRTBytes(data, path)
}

// ReadSRTBytes parses SRT content from memory. The path is recorded on the
// returned track for diagnostics only.
func ReadSRTBytes(data []byte, path string) (*Track, error) {
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	current := Entry{}
	state := "index" // "index" -> "time" -> "text"
	var textLines []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch state {
		case "index":
			if line == "" {
				continue
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				continue // skip stray non-index lines
			}
			current.Index = index
			state = "time"

		case "time":
			if line == "" {
				continue
			}
			start, end, err := parseTimeline(line)
			if err != nil {
				return nil, fmt.Errorf("failed to parse time: %w", err)
			}
			current.StartTime = start
			current.EndTime = end
			state = "text"
			textLines = textLines[:0]

		case "text":
			if line == "" {
				// subtitle text ends
				if len(textLines) > 0 {
					current.Text = strings.Join(textLines, "\n")
					entries = append(entries, current)
					current = Entry{}
				}
				state = "index"
				textLines = textLines[:0]
			} else {
				textLines = append(textLines, line)
			}
		}
	}

	// handle the last block when the file does not end with a blank line
	if state == "text" && len(textLines) > 0 {
		current.Text = strings.Join(textLines, "\n")
		entries = append(entries, current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan subtitle content: %w", err)
	}

	return &Track{
		Entries:  entries,
		Language: DetectLanguage(entries),
		Format:   "SRT",
		Path:     path,
	}, nil
}

// parseTimeline parses an SRT timeline such as
// "00:02:16,612 --> 00:02:19,376" into start and end seconds.
func parseTimeline(line string) (float64, float64, error) {
	parts := strings.Split(line, " --> ")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timeline: %s", line)
	}

	start, err := WireToSeconds(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := WireToSeconds(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// DetectLanguage guesses the dominant language of a track by majority vote
// over per-entry detections.
func DetectLanguage(entries []Entry) language.Tag {
	if len(entries) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, entry := range entries {
		lang := whatlanggo.DetectLang(entry.Text).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}

	return language.All.Make(topLang)
}
