package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStub(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))
}

func TestScanner_GroupsTracksByContent(t *testing.T) {
	tmp := t.TempDir()
	writeStub(t, filepath.Join(tmp, "Show", "Season 1", "ep01.srt"))
	writeStub(t, filepath.Join(tmp, "Show", "Season 1", "ep01.eng.srt"))
	writeStub(t, filepath.Join(tmp, "Show", "Season 1", "ep02.srt"))
	writeStub(t, filepath.Join(tmp, "Movie", "film.fre.srt"))

	scanner := NewScanner(tmp)
	catalog, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tmp, catalog.Root)
	require.Len(t, catalog.Contents, 3)

	film := catalog.Contents[0]
	assert.Equal(t, "Movie/film", film.ID)
	assert.Equal(t, "film", film.Name)
	require.Len(t, film.Tracks, 1)
	assert.Equal(t, 0, film.Tracks[0].Index)
	assert.Equal(t, "fr", film.Tracks[0].Language)

	ep01 := catalog.Contents[1]
	assert.Equal(t, "Show/Season 1/ep01", ep01.ID)
	assert.Equal(t, "ep01", ep01.Name)
	require.Len(t, ep01.Tracks, 2)
	// Tracks are ordered by path, so the labelled file comes first.
	assert.Equal(t, filepath.Join(tmp, "Show", "Season 1", "ep01.eng.srt"), ep01.Tracks[0].Path)
	assert.Equal(t, "en", ep01.Tracks[0].Language)
	assert.Equal(t, filepath.Join(tmp, "Show", "Season 1", "ep01.srt"), ep01.Tracks[1].Path)
	assert.Equal(t, "", ep01.Tracks[1].Language)

	assert.Equal(t, "Show/Season 1/ep02", catalog.Contents[2].ID)
}

func TestScanner_IgnoresOtherExtensions(t *testing.T) {
	tmp := t.TempDir()
	writeStub(t, filepath.Join(tmp, "Show", "ep01.srt"))
	writeStub(t, filepath.Join(tmp, "Show", "ep01.mkv"))
	writeStub(t, filepath.Join(tmp, "Show", "ep01.ass"))
	writeStub(t, filepath.Join(tmp, "Show", "notes.txt"))

	scanner := NewScanner(tmp)
	catalog, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, catalog.Contents, 1)
	assert.Equal(t, "Show/ep01", catalog.Contents[0].ID)
	require.Len(t, catalog.Contents[0].Tracks, 1)
}

func TestScanner_MissingRootYieldsEmptyCatalog(t *testing.T) {
	scanner := NewScanner(filepath.Join(t.TempDir(), "not-mounted"))
	catalog, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, catalog.Contents)
}

func TestScanner_Scan_UsesCacheUntilInvalidate(t *testing.T) {
	tmp := t.TempDir()
	writeStub(t, filepath.Join(tmp, "Show", "ep01.srt"))

	scanner := NewScanner(tmp, WithCacheTTL(10*time.Second))

	catalog, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog.Contents, 1)

	// Mutating the returned catalog must not leak into the cache.
	catalog.Contents[0].Name = "mutated"

	writeStub(t, filepath.Join(tmp, "Show", "ep02.srt"))

	catalog, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog.Contents, 1)
	assert.Equal(t, "ep01", catalog.Contents[0].Name)

	scanner.Invalidate()

	catalog, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog.Contents, 2)
}

func TestScanner_ResolveTrack(t *testing.T) {
	tmp := t.TempDir()
	plain := filepath.Join(tmp, "Show", "ep01.srt")
	labelled := filepath.Join(tmp, "Show", "ep01.eng.srt")
	writeStub(t, plain)
	writeStub(t, labelled)

	scanner := NewScanner(tmp)

	track, err := scanner.Resolve(context.Background(), "Show/ep01", 0)
	require.NoError(t, err)
	assert.Equal(t, labelled, track.Path)

	track, err = scanner.Resolve(context.Background(), "Show/ep01", 1)
	require.NoError(t, err)
	assert.Equal(t, plain, track.Path)

	_, err = scanner.Resolve(context.Background(), "Show/ep99", 0)
	assert.ErrorIs(t, err, ErrUnknownTrack)

	_, err = scanner.Resolve(context.Background(), "Show/ep01", 2)
	assert.ErrorIs(t, err, ErrUnknownTrack)

	_, err = scanner.Resolve(context.Background(), "Show/ep01", -1)
	assert.ErrorIs(t, err, ErrUnknownTrack)
}

func TestSplitTrackStem(t *testing.T) {
	tests := []struct {
		stem      string
		wantBase  string
		wantToken string
	}{
		{"ep01", "ep01", ""},
		{"ep01.eng", "ep01", "eng"},
		{"ep01.zh-CN", "ep01", "zh-cn"},
		{"ep01.chs", "ep01", "chs"},
		{"ep01.forced", "ep01.forced", ""},
		{"Show.S01E05", "Show.S01E05", ""},
		{".hidden", ".hidden", ""},
	}
	for _, tt := range tests {
		t.Run(tt.stem, func(t *testing.T) {
			base, token := splitTrackStem(tt.stem)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestTrackLanguage(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"en", "en"},
		{"eng", "en"},
		{"fre", "fr"},
		{"fra", "fr"},
		{"chi", "zh"},
		{"chs", "zh"},
		{"cht", "zh"},
		{"jpn", "ja"},
		{"forced", ""},
		{"default", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, trackLanguage(tt.token))
		})
	}
}
