package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// ErrUnknownTrack is wrapped by Resolve when a content id or track index
// does not exist in the catalog.
var ErrUnknownTrack = errors.New("unknown track")

type scannerOptions struct {
	cacheTTL time.Duration
}

type Option func(*scannerOptions)

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *scannerOptions) {
		o.cacheTTL = ttl
	}
}

type scanCache struct {
	version uint64
	scanned time.Time
	catalog *Catalog
}

// Scanner builds a Catalog of the .srt files under a single content root.
// Scans are cached for a short TTL; Invalidate forces the next Scan to hit
// the filesystem again.
type Scanner struct {
	root string

	mu            sync.RWMutex
	cacheTTL      time.Duration
	cache         *scanCache
	configVersion uint64
}

func NewScanner(root string, opts ...Option) *Scanner {
	options := scannerOptions{
		cacheTTL: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Scanner{
		root:     root,
		cacheTTL: options.cacheTTL,
	}
}

func (s *Scanner) Root() string {
	return s.root
}

func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.configVersion++
	s.mu.Unlock()
}

type trackFile struct {
	path     string
	language string
}

func (s *Scanner) Scan(ctx context.Context) (*Catalog, error) {
	s.mu.RLock()
	version := s.configVersion
	cacheTTL := s.cacheTTL
	if s.cache != nil && s.cache.version == version && (cacheTTL <= 0 || time.Since(s.cache.scanned) < cacheTTL) {
		cached := cloneCatalog(s.cache.catalog)
		s.mu.RUnlock()
		return cached, nil
	}
	root := s.root
	s.mu.RUnlock()

	ret := &Catalog{
		Root:     root,
		Contents: make([]Content, 0),
	}

	// A missing root is not an error: the volume may simply not be
	// mounted yet. The scan just comes back empty.
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return ret, nil
		}
		return nil, err
	}

	tracksByContent := make(map[string][]trackFile)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != ".srt" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		stem := strings.TrimSuffix(rel, filepath.Ext(rel))
		base, token := splitTrackStem(stem)
		id := filepath.ToSlash(base)
		tracksByContent[id] = append(tracksByContent[id], trackFile{
			path:     path,
			language: trackLanguage(token),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(tracksByContent))
	for id := range tracksByContent {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		files := tracksByContent[id]
		sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })

		content := Content{
			ID:     id,
			Name:   filepath.Base(filepath.FromSlash(id)),
			Tracks: make([]TrackInfo, 0, len(files)),
		}
		for i, f := range files {
			content.Tracks = append(content.Tracks, TrackInfo{
				Index:    i,
				Path:     f.path,
				Language: f.language,
			})
		}
		ret.Contents = append(ret.Contents, content)
	}

	s.mu.Lock()
	if s.configVersion == version {
		s.cache = &scanCache{
			version: version,
			scanned: time.Now(),
			catalog: cloneCatalog(ret),
		}
	}
	s.mu.Unlock()

	return ret, nil
}

// Resolve maps a (contentID, trackIndex) pair to the subtitle file behind it.
func (s *Scanner) Resolve(ctx context.Context, contentID string, trackIndex int) (TrackInfo, error) {
	catalog, err := s.Scan(ctx)
	if err != nil {
		return TrackInfo{}, err
	}

	for _, content := range catalog.Contents {
		if content.ID != contentID {
			continue
		}
		if trackIndex < 0 || trackIndex >= len(content.Tracks) {
			return TrackInfo{}, fmt.Errorf("content %q has no track %d: %w", contentID, trackIndex, ErrUnknownTrack)
		}
		return content.Tracks[trackIndex], nil
	}
	return TrackInfo{}, fmt.Errorf("content %q not found under %s: %w", contentID, catalog.Root, ErrUnknownTrack)
}

// splitTrackStem splits an extension-less file stem into the content base
// name and a trailing language token, if the last dot-separated token is a
// recognized language code. "ep01.eng" -> ("ep01", "eng"); "ep01" and
// "Show.S01E05" keep their full stem.
func splitTrackStem(stem string) (base string, token string) {
	lastDot := strings.LastIndex(stem, ".")
	if lastDot <= 0 {
		return stem, ""
	}
	candidate := strings.ToLower(stem[lastDot+1:])
	if !isLanguageToken(candidate) {
		return stem, ""
	}
	return stem[:lastDot], candidate
}

// trackLanguage normalizes a filename language token to its ISO 639-1 base
// code. "fre" -> "fr", "chs"/"cht" -> "zh". Returns "" for unrecognized or
// empty tokens.
func trackLanguage(token string) string {
	switch token {
	case "chs", "cht":
		return "zh"
	}
	return normalizeLangCode(token)
}

func normalizeLangCode(token string) string {
	if token == "" {
		return ""
	}
	tag, err := language.Parse(token)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

func isLanguageToken(token string) bool {
	if token == "" {
		return false
	}
	if normalizeLangCode(token) != "" {
		return true
	}
	switch token {
	case "chs", "cht":
		return true
	default:
		return false
	}
}

func cloneCatalog(src *Catalog) *Catalog {
	if src == nil {
		return nil
	}

	dst := &Catalog{
		Root:     src.Root,
		Contents: make([]Content, len(src.Contents)),
	}
	copy(dst.Contents, src.Contents)
	for i := range dst.Contents {
		dst.Contents[i].Tracks = append([]TrackInfo(nil), src.Contents[i].Tracks...)
	}
	return dst
}
