package overlay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

func baseEntries() []subtitle.TranslatedEntry {
	return []subtitle.TranslatedEntry{
		{Entry: subtitle.Entry{Index: 1, StartTime: 0, EndTime: 1, Text: "Hello"}, TranslatedText: "Bonjour"},
		{Entry: subtitle.Entry{Index: 2, StartTime: 1, EndTime: 2, Text: "World"}, TranslatedText: "Monde"},
		{Entry: subtitle.Entry{Index: 3, StartTime: 2, EndTime: 3, Text: "Bye"}, TranslatedText: "Au revoir"},
	}
}

func TestOverlayUpdateAndMerge(t *testing.T) {
	base := baseEntries()
	o := New(base, 10)

	require.NoError(t, o.Update(2, "Le Monde"))

	merged := o.Merged()
	require.Len(t, merged, 3)
	assert.Equal(t, "Bonjour", merged[0].TranslatedText)
	assert.False(t, merged[0].Edited)
	assert.Equal(t, "Le Monde", merged[1].TranslatedText)
	assert.True(t, merged[1].Edited)

	// the caller's base slice is untouched
	assert.Equal(t, "Monde", base[1].TranslatedText)
	assert.False(t, base[1].Edited)

	assert.Equal(t, 1, o.EditCount())
	assert.Equal(t, map[int]string{2: "Le Monde"}, o.Edits())
}

func TestOverlayRejectsUnknownIndex(t *testing.T) {
	o := New(baseEntries(), 10)
	err := o.Update(99, "nope")
	require.Error(t, err)
	assert.Equal(t, 0, o.EditCount())
	assert.False(t, o.CanUndo(), "a rejected update must not burn history")
}

func TestOverlayUndoRedo(t *testing.T) {
	o := New(baseEntries(), 10)

	require.NoError(t, o.Update(1, "Salut"))
	require.NoError(t, o.Update(1, "Coucou"))

	assert.True(t, o.Undo())
	assert.Equal(t, map[int]string{1: "Salut"}, o.Edits())

	assert.True(t, o.Undo())
	assert.Equal(t, 0, o.EditCount())
	assert.False(t, o.Undo(), "nothing left to undo")

	assert.True(t, o.Redo())
	assert.Equal(t, map[int]string{1: "Salut"}, o.Edits())
	assert.True(t, o.Redo())
	assert.Equal(t, map[int]string{1: "Coucou"}, o.Edits())
	assert.False(t, o.Redo(), "nothing left to redo")
}

func TestOverlayNewEditClearsRedo(t *testing.T) {
	o := New(baseEntries(), 10)

	require.NoError(t, o.Update(1, "Salut"))
	require.True(t, o.Undo())
	require.True(t, o.CanRedo())

	require.NoError(t, o.Update(2, "Le Monde"))
	assert.False(t, o.CanRedo(), "a fresh edit abandons the redo branch")
}

func TestOverlayHistoryCapacityDropsOldest(t *testing.T) {
	o := New(baseEntries(), 3)

	for i := 1; i <= 5; i++ {
		require.NoError(t, o.Update(1, fmt.Sprintf("v%d", i)))
	}

	// only the last three snapshots survive
	steps := 0
	for o.Undo() {
		steps++
	}
	assert.Equal(t, 3, steps)
	assert.Equal(t, map[int]string{1: "v2"}, o.Edits(), "undo bottoms out at the oldest retained snapshot")
}

func TestOverlayReset(t *testing.T) {
	o := New(baseEntries(), 10)

	require.NoError(t, o.Update(1, "Salut"))
	require.NoError(t, o.Update(2, "Le Monde"))

	assert.True(t, o.Reset(1))
	assert.Equal(t, map[int]string{2: "Le Monde"}, o.Edits())
	assert.False(t, o.Reset(1), "no override left for this entry")

	// reset is undoable like any other mutation
	require.True(t, o.Undo())
	assert.Equal(t, map[int]string{1: "Salut", 2: "Le Monde"}, o.Edits())
}

func TestOverlayResetAll(t *testing.T) {
	o := New(baseEntries(), 10)

	require.NoError(t, o.Update(1, "Salut"))
	require.NoError(t, o.Update(3, "Ciao"))

	o.ResetAll()
	assert.Equal(t, 0, o.EditCount())

	merged := o.Merged()
	assert.Equal(t, "Bonjour", merged[0].TranslatedText)
	assert.False(t, merged[0].Edited)

	require.True(t, o.Undo())
	assert.Equal(t, 2, o.EditCount(), "reset-all is one undoable step")

	// reset-all on a clean overlay records nothing
	o2 := New(baseEntries(), 10)
	o2.ResetAll()
	assert.False(t, o2.CanUndo())
}

func TestOverlayMergedIsACopy(t *testing.T) {
	o := New(baseEntries(), 10)
	require.NoError(t, o.Update(1, "Salut"))

	merged := o.Merged()
	merged[0].TranslatedText = "tampered"

	again := o.Merged()
	assert.Equal(t, "Salut", again[0].TranslatedText)
}
