package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:02,500
Hello there.

2
00:00:03,000 --> 00:00:04,000
General Kenobi!
`

const rewrittenSRT = `1
00:00:01,000 --> 00:00:02,500
Updated line.
`

func writeTrack(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestSource(t *testing.T, reader subtitle.Reader) (*Source, string) {
	t.Helper()
	tmp := t.TempDir()
	writeTrack(t, filepath.Join(tmp, "Show", "ep01.srt"), sampleSRT)
	if reader == nil {
		reader = subtitle.NewReader()
	}
	return NewSource(NewScanner(tmp), reader), tmp
}

func TestSource_EntriesParsesTrack(t *testing.T) {
	source, _ := newTestSource(t, nil)

	entries, err := source.Entries(context.Background(), "Show/ep01", 0)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, "Hello there.", entries[0].Text)
	assert.InDelta(t, 1.0, entries[0].StartTime, 1e-9)
	assert.InDelta(t, 2.5, entries[0].EndTime, 1e-9)
	assert.Equal(t, 2, entries[1].Index)
	assert.Equal(t, "General Kenobi!", entries[1].Text)
}

func TestSource_EntriesReturnsACopy(t *testing.T) {
	source, _ := newTestSource(t, nil)

	first, err := source.Entries(context.Background(), "Show/ep01", 0)
	require.NoError(t, err)
	first[0].Text = "mutated"

	second, err := source.Entries(context.Background(), "Show/ep01", 0)
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", second[0].Text)
}

func TestSource_UnknownTrack(t *testing.T) {
	source, _ := newTestSource(t, nil)

	_, err := source.Entries(context.Background(), "Show/ep99", 0)
	assert.ErrorIs(t, err, ErrUnknownTrack)

	_, err = source.Entries(context.Background(), "Show/ep01", 3)
	assert.ErrorIs(t, err, ErrUnknownTrack)
}

func TestSource_TrackPath(t *testing.T) {
	source, tmp := newTestSource(t, nil)

	path, err := source.TrackPath(context.Background(), "Show/ep01", 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "Show", "ep01.srt"), path)

	_, err = source.TrackPath(context.Background(), "Show/ep99", 0)
	assert.ErrorIs(t, err, ErrUnknownTrack)
}

// gatedReader blocks inside Read until released so a test can hold a parse
// in flight while more callers pile up behind it.
type gatedReader struct {
	inner   subtitle.Reader
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (r *gatedReader) Read(path string) (*subtitle.Track, error) {
	r.calls.Add(1)
	select {
	case r.entered <- struct{}{}:
	default:
	}
	<-r.release
	return r.inner.Read(path)
}

func TestSource_ConcurrentCallersShareOneParse(t *testing.T) {
	reader := &gatedReader{
		inner:   subtitle.NewReader(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	source, _ := newTestSource(t, reader)

	const callers = 8
	results := make([][]subtitle.Entry, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = source.Entries(context.Background(), "Show/ep01", 0)
		}()
	}

	<-reader.entered
	close(reader.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 2)
	}
	assert.Equal(t, int32(1), reader.calls.Load())
}

func TestSource_ParseFailureIsRetried(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "Show", "ep01.srt")
	writeTrack(t, path, "1\nnot a timeline\n")

	source := NewSource(NewScanner(tmp), subtitle.NewReader())

	_, err := source.Entries(context.Background(), "Show/ep01", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read track")

	writeTrack(t, path, sampleSRT)

	entries, err := source.Entries(context.Background(), "Show/ep01", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSource_RejectsOutOfOrderIndexes(t *testing.T) {
	tmp := t.TempDir()
	writeTrack(t, filepath.Join(tmp, "Show", "ep01.srt"), `2
00:00:01,000 --> 00:00:02,000
Second first.

1
00:00:03,000 --> 00:00:04,000
First second.
`)

	source := NewSource(NewScanner(tmp), subtitle.NewReader())

	_, err := source.Entries(context.Background(), "Show/ep01", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not increase")
}

func TestSource_InvalidateRereadsTrack(t *testing.T) {
	source, tmp := newTestSource(t, nil)
	path := filepath.Join(tmp, "Show", "ep01.srt")

	entries, err := source.Entries(context.Background(), "Show/ep01", 0)
	require.NoError(t, err)
	require.Equal(t, "Hello there.", entries[0].Text)

	writeTrack(t, path, rewrittenSRT)

	entries, err = source.Entries(context.Background(), "Show/ep01", 0)
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", entries[0].Text)

	source.Invalidate()

	entries, err = source.Entries(context.Background(), "Show/ep01", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Updated line.", entries[0].Text)
}
