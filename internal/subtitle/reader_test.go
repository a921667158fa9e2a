package subtitle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestDetectLanguage(t *testing.T) {
	entries := []Entry{
		{Text: "Hello, world!"},
		{Text: "こんにちは、世界!"},
		{Text: "こんにちは、世界!"},
		{Text: "Привет, мир!"},
	}
	lang := DetectLanguage(entries)
	assert.Equal(t, language.Japanese, lang)
}

func TestDetectLanguageEmpty(t *testing.T) {
	assert.Equal(t, language.Und, DetectLanguage(nil))
}

func TestReadRejectsNonSRT(t *testing.T) {
	r := NewReader()
	_, err := r.Read("subs.vtt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SRT")
}

func TestReadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episode.srt")
	content := "1\r\n00:00:01,000 --> 00:00:02,500\r\nHello\r\nthere\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000\r\nfriend\r\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	track, err := NewReader().Read(path)
	require.NoError(t, err)
	require.Len(t, track.Entries, 2)

	assert.Equal(t, 1, track.Entries[0].Index)
	assert.Equal(t, 1.0, track.Entries[0].StartTime)
	assert.Equal(t, 2.5, track.Entries[0].EndTime)
	assert.Equal(t, "Hello\nthere", track.Entries[0].Text)
	assert.Equal(t, "friend", track.Entries[1].Text)
	assert.Equal(t, path, track.Path)
}

func TestReadMalformedTimeline(t *testing.T) {
	data := []byte("1\n00:00:01.000 -> 00:00:02,000\nHello\n")
	_, err := ReadSRTBytes(data, "bad.srt")
	require.Error(t, err)
}

func TestValidateEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr string
	}{
		{
			name: "valid",
			entries: []Entry{
				{Index: 1, StartTime: 0, EndTime: 1, Text: "a"},
				{Index: 2, StartTime: 1, EndTime: 2.5, Text: "b"},
			},
		},
		{name: "empty ok", entries: nil},
		{
			name:    "zero index",
			entries: []Entry{{Index: 0, StartTime: 0, EndTime: 1}},
			wantErr: "not positive",
		},
		{
			name: "duplicate index",
			entries: []Entry{
				{Index: 1, StartTime: 0, EndTime: 1},
				{Index: 1, StartTime: 1, EndTime: 2},
			},
			wantErr: "does not increase",
		},
		{
			name:    "start after end",
			entries: []Entry{{Index: 1, StartTime: 2, EndTime: 1}},
			wantErr: "not before end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntries(tt.entries)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
