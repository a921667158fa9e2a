package glossary

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Match filters the glossary to the terms that appear in the given texts,
// so a prompt only carries mappings the chunk can actually use. Matching is
// case-sensitive (proper nouns) and requires word boundaries: "Dan" does
// not match inside "DanDaDan".
func Match(g Glossary, texts []string) Glossary {
	matched := make(Glossary)

	for source, target := range g {
		for _, text := range texts {
			if containsWord(text, source) {
				matched[source] = target
				break
			}
		}
	}
	return matched
}

// ContainsWordFold reports whether term occurs in text on word boundaries,
// ignoring case.
func ContainsWordFold(text, term string) bool {
	return containsWord(strings.ToLower(text), strings.ToLower(term))
}

func containsWord(text, term string) bool {
	if term == "" {
		return false
	}

	// Boundaries only exist in scripts that separate words with spaces. A
	// term edged by Han/kana/hangul runes sits inside unspaced text, so that
	// edge matches by plain containment.
	first, _ := utf8.DecodeRuneInString(term)
	last, _ := utf8.DecodeLastRuneInString(term)
	checkBefore := needsBoundary(first)
	checkAfter := needsBoundary(last)

	for start := 0; start <= len(text)-len(term); {
		idx := strings.Index(text[start:], term)
		if idx < 0 {
			return false
		}
		abs := start + idx
		if (!checkBefore || boundaryBefore(text, abs)) &&
			(!checkAfter || boundaryAfter(text, abs+len(term))) {
			return true
		}
		start = abs + 1
	}
	return false
}

func needsBoundary(r rune) bool {
	if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
		return false
	}
	return !unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

func boundaryBefore(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, pos int) bool {
	if pos >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[pos:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
