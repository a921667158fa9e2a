package overlay

import (
	"fmt"
	"sync"

	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

const defaultHistoryLimit = 50

// Overlay holds sparse manual edits over an immutable base result. Edits
// live in a map keyed by entry index; the base is never mutated. Undo and
// redo move whole-overlay snapshots between two bounded stacks, so a
// sequence of edits can be stepped backwards and forwards without touching
// task state.
type Overlay struct {
	mu       sync.Mutex
	base     []subtitle.TranslatedEntry
	known    map[int]struct{}
	edits    map[int]string
	undo     []map[int]string
	redo     []map[int]string
	capacity int
}

// New builds an overlay over a copy of base. historyLimit bounds the undo
// stack; values below 1 fall back to the default.
func New(base []subtitle.TranslatedEntry, historyLimit int) *Overlay {
	if historyLimit < 1 {
		historyLimit = defaultHistoryLimit
	}
	copied := make([]subtitle.TranslatedEntry, len(base))
	copy(copied, base)

	known := make(map[int]struct{}, len(base))
	for _, entry := range base {
		known[entry.Index] = struct{}{}
	}
	return &Overlay{
		base:     copied,
		known:    known,
		edits:    make(map[int]string),
		capacity: historyLimit,
	}
}

// Update overrides the translated text of one entry.
func (o *Overlay) Update(index int, newText string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.known[index]; !ok {
		return fmt.Errorf("no entry with index %d", index)
	}
	o.pushUndoLocked()
	o.edits[index] = newText
	return nil
}

// Reset removes the override for one entry. Returns false when the entry
// had no override.
func (o *Overlay) Reset(index int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.edits[index]; !ok {
		return false
	}
	o.pushUndoLocked()
	delete(o.edits, index)
	return true
}

// ResetAll drops every override. The previous state remains reachable via
// Undo.
func (o *Overlay) ResetAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.edits) == 0 {
		return
	}
	o.pushUndoLocked()
	o.edits = make(map[int]string)
}

// Undo restores the overlay to its state before the last mutation.
func (o *Overlay) Undo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.undo) == 0 {
		return false
	}
	o.redo = append(o.redo, o.edits)
	o.edits = o.undo[len(o.undo)-1]
	o.undo = o.undo[:len(o.undo)-1]
	return true
}

// Redo re-applies the last undone mutation.
func (o *Overlay) Redo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.redo) == 0 {
		return false
	}
	o.undo = append(o.undo, o.edits)
	o.edits = o.redo[len(o.redo)-1]
	o.redo = o.redo[:len(o.redo)-1]
	return true
}

// CanUndo reports whether Undo would change anything.
func (o *Overlay) CanUndo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.undo) > 0
}

// CanRedo reports whether Redo would change anything.
func (o *Overlay) CanRedo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.redo) > 0
}

// EditCount reports the number of live overrides.
func (o *Overlay) EditCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.edits)
}

// Edits returns a copy of the live overrides.
func (o *Overlay) Edits() map[int]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneEdits(o.edits)
}

// Merged returns the base entries with overrides applied. Overridden
// entries carry Edited=true.
func (o *Overlay) Merged() []subtitle.TranslatedEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	merged := make([]subtitle.TranslatedEntry, len(o.base))
	copy(merged, o.base)
	for i := range merged {
		if text, ok := o.edits[merged[i].Index]; ok {
			merged[i].TranslatedText = text
			merged[i].Edited = true
		}
	}
	return merged
}

// pushUndoLocked snapshots the current overlay before a mutation. A new
// mutation invalidates the redo branch.
func (o *Overlay) pushUndoLocked() {
	o.undo = append(o.undo, cloneEdits(o.edits))
	if len(o.undo) > o.capacity {
		o.undo = o.undo[1:]
	}
	o.redo = nil
}

func cloneEdits(edits map[int]string) map[int]string {
	copied := make(map[int]string, len(edits))
	for k, v := range edits {
		copied[k] = v
	}
	return copied
}
