package glossary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name       string
		sourceLang string
		targetLang string
		expected   string
	}{
		{"simple codes", "en", "fr", "glossary.en-fr.json"},
		{"BCP47 tags", "zh-CN", "en-US", "glossary.zh-en.json"},
		{"mixed", "en", "zh-CN", "glossary.en-zh.json"},
		{"regional", "pt-BR", "ja", "glossary.pt-ja.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Filename(tt.sourceLang, tt.targetLang))
		})
	}
}

func TestFilePath(t *testing.T) {
	result := FilePath("/media/shows/DanDaDan", "en", "zh")
	assert.Equal(t, filepath.Join("/media/shows/DanDaDan", "glossary.en-zh.json"), result)
}

func TestFindInAncestors(t *testing.T) {
	root := t.TempDir()
	season1 := filepath.Join(root, "season1")
	episode1 := filepath.Join(season1, "episode1")
	require.NoError(t, os.MkdirAll(episode1, 0o755))

	path := filepath.Join(root, "glossary.en-zh.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hello":"world"}`), 0o644))

	assert.Equal(t, path, FindInAncestors(episode1, "en", "zh"))
	assert.Equal(t, path, FindInAncestors(season1, "en", "zh"))
	assert.Equal(t, path, FindInAncestors(root, "en", "zh"))
	assert.Empty(t, FindInAncestors(episode1, "en", "ja"))
}

func TestFindInAncestors_ClosestWins(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "child")
	require.NoError(t, os.MkdirAll(child, 0o755))

	rootGlossary := filepath.Join(root, "glossary.en-zh.json")
	childGlossary := filepath.Join(child, "glossary.en-zh.json")
	require.NoError(t, os.WriteFile(rootGlossary, []byte(`{"a":"b"}`), 0o644))
	require.NoError(t, os.WriteFile(childGlossary, []byte(`{"c":"d"}`), 0o644))

	assert.Equal(t, childGlossary, FindInAncestors(child, "en", "zh"))
}

func TestLoadAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.en-zh.json")

	original := Glossary{
		"Momo Ayase":   "绫濑桃",
		"Okarun":       "奥卡轮",
		"Turbo Granny": "涡轮婆婆",
	}

	require.NoError(t, Save(path, original))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/glossary.json")
	assert.Error(t, err)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
