package library

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

// Source serves the parsed, validated entries of catalog tracks. Concurrent
// requests for the same track share a single parse, and parsed tracks stay
// cached until Invalidate.
type Source struct {
	scanner *Scanner
	reader  subtitle.Reader

	group singleflight.Group

	mu     sync.RWMutex
	parsed map[string][]subtitle.Entry
}

func NewSource(scanner *Scanner, reader subtitle.Reader) *Source {
	return &Source{
		scanner: scanner,
		reader:  reader,
		parsed:  make(map[string][]subtitle.Entry),
	}
}

// Entries returns the ordered entries of one track. The returned slice is a
// copy; callers may mutate it freely. Parse failures are not cached, so a
// later call retries the file.
func (s *Source) Entries(ctx context.Context, contentID string, trackIndex int) ([]subtitle.Entry, error) {
	key := fmt.Sprintf("%s|%d", contentID, trackIndex)

	s.mu.RLock()
	cached, ok := s.parsed[key]
	s.mu.RUnlock()
	if ok {
		return cloneEntries(cached), nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Re-check under the flight: a caller that lost the race above
		// may start a fresh flight after the first one already stored
		// its result.
		s.mu.RLock()
		cached, ok := s.parsed[key]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		track, err := s.scanner.Resolve(ctx, contentID, trackIndex)
		if err != nil {
			return nil, err
		}
		parsed, err := s.reader.Read(track.Path)
		if err != nil {
			return nil, fmt.Errorf("read track %s: %w", track.Path, err)
		}
		if err := subtitle.ValidateEntries(parsed.Entries); err != nil {
			return nil, fmt.Errorf("track %s: %w", track.Path, err)
		}

		s.mu.Lock()
		s.parsed[key] = parsed.Entries
		s.mu.Unlock()
		return parsed.Entries, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneEntries(v.([]subtitle.Entry)), nil
}

// TrackPath returns the subtitle file behind a track, for callers that write
// derived files next to it.
func (s *Source) TrackPath(ctx context.Context, contentID string, trackIndex int) (string, error) {
	track, err := s.scanner.Resolve(ctx, contentID, trackIndex)
	if err != nil {
		return "", err
	}
	return track.Path, nil
}

// Invalidate drops all parsed tracks and the scanner's catalog cache, so the
// next request re-reads the filesystem.
func (s *Source) Invalidate() {
	s.mu.Lock()
	s.parsed = make(map[string][]subtitle.Entry)
	s.mu.Unlock()
	s.scanner.Invalidate()
}

func cloneEntries(entries []subtitle.Entry) []subtitle.Entry {
	return append([]subtitle.Entry(nil), entries...)
}
