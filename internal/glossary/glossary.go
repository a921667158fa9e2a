package glossary

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/text/language"
)

// Glossary maps source language terms to the target terms a translation
// must use verbatim.
type Glossary map[string]string

// Filename returns the glossary filename for a language pair, using
// 2-letter base codes (e.g. "glossary.en-fr.json").
func Filename(sourceLang, targetLang string) string {
	src := normalizeLanguageCode(sourceLang)
	tgt := normalizeLanguageCode(targetLang)
	return "glossary." + src + "-" + tgt + ".json"
}

// FilePath returns the full glossary path in the given directory.
func FilePath(dir, sourceLang, targetLang string) string {
	return filepath.Join(dir, Filename(sourceLang, targetLang))
}

// FindInAncestors walks up from startDir looking for a glossary file for
// the language pair. Returns the first found path or empty string; the
// closest directory wins, so a show-level glossary overrides a library-wide
// one.
func FindInAncestors(startDir, sourceLang, targetLang string) string {
	filename := Filename(sourceLang, targetLang)
	currentDir := startDir

	for {
		candidate := filepath.Join(currentDir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Load reads a glossary from a JSON file.
func Load(path string) (Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var g Glossary
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	return g, nil
}

// Save writes a glossary to a JSON file with indentation.
func Save(path string, g Glossary) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// normalizeLanguageCode parses a language string and returns its 2-letter base code.
func normalizeLanguageCode(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	return base.String()
}
