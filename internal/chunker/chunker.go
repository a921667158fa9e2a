package chunker

import (
	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

// Chunk is one provider-sized batch of subtitle entries plus the context
// carried across batch boundaries. Entries of consecutive chunks are
// contiguous and never overlap; the context fields may.
type Chunk struct {
	// Entries are the lines this chunk translates.
	Entries []subtitle.Entry
	// PrecedingContext holds the last K already-translated entries of the
	// previous chunk. Empty for the first chunk, attached during execution
	// once the previous chunk's translations exist.
	PrecedingContext []subtitle.TranslatedEntry
	// FollowingContextHint holds the next K source entries past the chunk
	// boundary. They steer terminology only and are never translated here.
	FollowingContextHint []subtitle.Entry
}

// Options controls how a track is partitioned.
type Options struct {
	// MaxEntries closes a chunk after this many entries. Values below 1
	// fall back to 1.
	MaxEntries int
	// ContextWindow is K, the number of context entries carried on each
	// side of a chunk boundary.
	ContextWindow int
	// MaxCost optionally closes a chunk early once the summed entry cost
	// reaches this budget. Zero disables cost-based closing.
	MaxCost int
	// Cost scores one entry against MaxCost. Defaults to a rough
	// byte-per-token estimate when nil.
	Cost func(e subtitle.Entry) int
}

// Build partitions entries into ordered chunks. Chunking is purely
// positional: a chunk closes when the entry count or the cost budget is
// reached, never on sentence boundaries. An entry whose own cost exceeds the
// budget still becomes a one-entry chunk.
func Build(entries []subtitle.Entry, opts Options) []Chunk {
	if len(entries) == 0 {
		return nil
	}

	maxEntries := opts.MaxEntries
	if maxEntries < 1 {
		maxEntries = 1
	}
	cost := opts.Cost
	if cost == nil {
		cost = defaultCost
	}

	var chunks []Chunk
	start := 0
	for start < len(entries) {
		end := start
		budget := 0
		for end < len(entries) && end-start < maxEntries {
			entryCost := cost(entries[end])
			if opts.MaxCost > 0 && end > start && budget+entryCost > opts.MaxCost {
				break
			}
			budget += entryCost
			end++
		}

		chunks = append(chunks, Chunk{
			Entries:              entries[start:end],
			FollowingContextHint: followingHint(entries, end, opts.ContextWindow),
		})
		start = end
	}

	return chunks
}

// TailContext returns the last k translated entries, preserving order. It is
// the preceding-context window handed to the next chunk.
func TailContext(translated []subtitle.TranslatedEntry, k int) []subtitle.TranslatedEntry {
	if k <= 0 || len(translated) == 0 {
		return nil
	}
	if len(translated) <= k {
		return translated
	}
	return translated[len(translated)-k:]
}

func followingHint(entries []subtitle.Entry, from, k int) []subtitle.Entry {
	if k <= 0 || from >= len(entries) {
		return nil
	}
	to := from + k
	if to > len(entries) {
		to = len(entries)
	}
	return entries[from:to]
}

// defaultCost estimates provider tokens from text length, roughly four bytes
// per token.
func defaultCost(e subtitle.Entry) int {
	return len(e.Text)/4 + 1
}
