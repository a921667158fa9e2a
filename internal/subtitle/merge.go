package subtitle

// MergeTranslations merges per-entry translated texts back into full-track
// order. Entries without a translation keep an empty TranslatedText, so a
// partially translated track is still returned in its entirety.
func MergeTranslations(entries []Entry, texts map[int]string) []TranslatedEntry {
	merged := make([]TranslatedEntry, 0, len(entries))
	for _, entry := range entries {
		te := TranslatedEntry{Entry: entry}
		if text, ok := texts[entry.Index]; ok {
			te.TranslatedText = text
		}
		merged = append(merged, te)
	}
	return merged
}

// ApplyEdits overlays manual per-entry overrides on top of merged entries,
// marking overridden entries as edited.
func ApplyEdits(entries []TranslatedEntry, edits map[int]string) []TranslatedEntry {
	if len(edits) == 0 {
		return entries
	}
	out := make([]TranslatedEntry, len(entries))
	copy(out, entries)
	for i := range out {
		if text, ok := edits[out[i].Index]; ok {
			out[i].TranslatedText = text
			out[i].Edited = true
		}
	}
	return out
}

// Coverage counts how many entries have a translation.
func Coverage(entries []Entry, texts map[int]string) (done int, total int) {
	total = len(entries)
	for _, entry := range entries {
		if _, ok := texts[entry.Index]; ok {
			done++
		}
	}
	return done, total
}
