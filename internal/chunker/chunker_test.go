package chunker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

func makeEntries(n int) []subtitle.Entry {
	entries := make([]subtitle.Entry, 0, n)
	for i := 1; i <= n; i++ {
		entries = append(entries, subtitle.Entry{
			Index:     i,
			StartTime: float64(i - 1),
			EndTime:   float64(i),
			Text:      fmt.Sprintf("line %d", i),
		})
	}
	return entries
}

func indexesOf(entries []subtitle.Entry) []int {
	indexes := make([]int, 0, len(entries))
	for _, e := range entries {
		indexes = append(indexes, e.Index)
	}
	return indexes
}

func TestBuildCoversInputExactly(t *testing.T) {
	for _, n := range []int{1, 2, 5, 17, 100} {
		for _, size := range []int{1, 2, 3, 10, 250} {
			entries := makeEntries(n)
			chunks := Build(entries, Options{MaxEntries: size})

			var flattened []subtitle.Entry
			for _, c := range chunks {
				require.NotEmpty(t, c.Entries, "n=%d size=%d", n, size)
				flattened = append(flattened, c.Entries...)
			}
			assert.Equal(t, entries, flattened, "n=%d size=%d", n, size)
		}
	}
}

func TestBuildEmptyTrack(t *testing.T) {
	assert.Nil(t, Build(nil, Options{MaxEntries: 5}))
}

func TestBuildSpecExampleSizes(t *testing.T) {
	// 3 entries with chunk size 2 split into [1,2] and [3]
	chunks := Build(makeEntries(3), Options{MaxEntries: 2})
	require.Len(t, chunks, 2)
	assert.Equal(t, []int{1, 2}, indexesOf(chunks[0].Entries))
	assert.Equal(t, []int{3}, indexesOf(chunks[1].Entries))
}

func TestBuildFollowingContextHint(t *testing.T) {
	chunks := Build(makeEntries(7), Options{MaxEntries: 3, ContextWindow: 2})
	require.Len(t, chunks, 3)

	assert.Equal(t, []int{4, 5}, indexesOf(chunks[0].FollowingContextHint))
	assert.Equal(t, []int{7}, indexesOf(chunks[1].FollowingContextHint))
	assert.Empty(t, chunks[2].FollowingContextHint, "last chunk has nothing after it")

	// hints are source entries only, preceding context starts empty
	for _, c := range chunks {
		assert.Empty(t, c.PrecedingContext)
	}
}

func TestBuildCostBudget(t *testing.T) {
	entries := makeEntries(4)
	unitCost := func(subtitle.Entry) int { return 10 }

	chunks := Build(entries, Options{MaxEntries: 10, MaxCost: 25, Cost: unitCost})
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0].Entries, 2)
	assert.Len(t, chunks[1].Entries, 2)
}

func TestBuildOversizedEntryStillChunked(t *testing.T) {
	entries := makeEntries(3)
	bigCost := func(subtitle.Entry) int { return 1000 }

	chunks := Build(entries, Options{MaxEntries: 10, MaxCost: 25, Cost: bigCost})
	require.Len(t, chunks, 3, "every oversized entry becomes its own chunk")
	for i, c := range chunks {
		assert.Equal(t, []int{i + 1}, indexesOf(c.Entries))
	}
}

func TestBuildNonPositiveSizeFallsBackToOne(t *testing.T) {
	chunks := Build(makeEntries(3), Options{MaxEntries: 0})
	require.Len(t, chunks, 3)
}

func TestTailContext(t *testing.T) {
	translated := []subtitle.TranslatedEntry{
		{Entry: subtitle.Entry{Index: 1}, TranslatedText: "a"},
		{Entry: subtitle.Entry{Index: 2}, TranslatedText: "b"},
		{Entry: subtitle.Entry{Index: 3}, TranslatedText: "c"},
	}

	tail := TailContext(translated, 2)
	require.Len(t, tail, 2)
	assert.Equal(t, 2, tail[0].Index)
	assert.Equal(t, 3, tail[1].Index)

	assert.Len(t, TailContext(translated, 5), 3)
	assert.Nil(t, TailContext(translated, 0))
	assert.Nil(t, TailContext(nil, 2))
}
