package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []Entry {
	return []Entry{
		{Index: 1, StartTime: 0.0, EndTime: 1.0, Text: "Hi"},
		{Index: 2, StartTime: 1.0, EndTime: 2.5, Text: "there"},
		{Index: 3, StartTime: 2.5, EndTime: 4.0, Text: "friend"},
	}
}

func TestMergeTranslationsPartial(t *testing.T) {
	texts := map[int]string{1: "Salut", 2: "toi"}

	merged := MergeTranslations(sampleEntries(), texts)
	require.Len(t, merged, 3)

	assert.Equal(t, "Salut", merged[0].TranslatedText)
	assert.Equal(t, "toi", merged[1].TranslatedText)
	assert.Empty(t, merged[2].TranslatedText, "untranslated entry keeps empty translation")

	// original order and timing survive the merge
	assert.Equal(t, 1, merged[0].Index)
	assert.Equal(t, 2.5, merged[2].StartTime)
	assert.Equal(t, "friend", merged[2].Text)
}

func TestMergeTranslationsEmptyTrack(t *testing.T) {
	merged := MergeTranslations(nil, map[int]string{1: "x"})
	assert.Empty(t, merged)
}

func TestApplyEdits(t *testing.T) {
	merged := MergeTranslations(sampleEntries(), map[int]string{1: "Salut", 2: "toi", 3: "mon ami"})

	edited := ApplyEdits(merged, map[int]string{2: "vous"})
	assert.Equal(t, "Salut", edited[0].TranslatedText)
	assert.False(t, edited[0].Edited)
	assert.Equal(t, "vous", edited[1].TranslatedText)
	assert.True(t, edited[1].Edited)

	// the base slice is untouched
	assert.Equal(t, "toi", merged[1].TranslatedText)
	assert.False(t, merged[1].Edited)
}

func TestApplyEditsNoEdits(t *testing.T) {
	merged := MergeTranslations(sampleEntries(), nil)
	assert.Equal(t, merged, ApplyEdits(merged, nil))
}

func TestCoverage(t *testing.T) {
	done, total := Coverage(sampleEntries(), map[int]string{1: "a", 3: "c"})
	assert.Equal(t, 2, done)
	assert.Equal(t, 3, total)

	done, total = Coverage(nil, nil)
	assert.Zero(t, done)
	assert.Zero(t, total)
}
