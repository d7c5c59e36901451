// Package history maintains the visible dialogue window for one session.
//
// A Window is an append-only log anchored by a permanent system message.
// Selection re-runs a deterministic newest-first budget walk on every call;
// messages that no longer fit are deactivated permanently, so eviction is
// monotonic for the lifetime of the window.
package history

import (
	"sync"
	"time"
)

// Window owns an ordered log of messages under a hard token budget.
//
// The entry at index 0 is the anchor: it is never evicted, never
// deactivated, and its token cost is always charged against the budget.
// One writer per session is assumed; the lock keeps inspection reads safe
// alongside that writer.
type Window struct {
	maxBudgetTokens int

	mu     sync.RWMutex
	log    []*Message
	nextID int
}

// NewWindow creates a window seeded with its anchor message.
func NewWindow(maxBudgetTokens int, anchorRole Role, anchorContent string, anchorTokens int) *Window {
	w := &Window{maxBudgetTokens: maxBudgetTokens}
	w.log = append(w.log, &Message{
		ID:        w.nextID,
		Role:      anchorRole,
		Content:   anchorContent,
		Tokens:    anchorTokens,
		Timestamp: time.Now(),
		Active:    true,
	})
	w.nextID++
	return w
}

// Budget returns the window's token budget.
func (w *Window) Budget() int { return w.maxBudgetTokens }

// Len returns the total number of logged messages, including the anchor
// and deactivated entries.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.log)
}

// Append records a new active message and returns a copy of it. Existing
// entries are untouched; IDs strictly increase and are never reused.
func (w *Window) Append(role Role, content string, tokens int) Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	msg := &Message{
		ID:        w.nextID,
		Role:      role,
		Content:   content,
		Tokens:    tokens,
		Timestamp: time.Now(),
		Active:    true,
	}
	w.nextID++
	w.log = append(w.log, msg)
	return *msg
}

// SelectActive returns the anchor plus the most recent active messages that
// fit the budget, in chronological order, as copies.
//
// The walk runs newest to oldest with the anchor's tokens pre-charged. An
// active message that does not fit is deactivated on the spot and the walk
// continues to older entries, so this is a hard cutoff with tail eviction,
// not a sliding window. Already-inactive messages are never reconsidered.
func (w *Window) SelectActive() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	selected := w.selectActiveLocked()
	out := make([]Message, len(selected))
	for i, msg := range selected {
		out[i] = *msg
	}
	return out
}

// selectActiveLocked runs the budget walk. Caller holds the write lock:
// the walk flips Active flags.
func (w *Window) selectActiveLocked() []*Message {
	if len(w.log) == 0 {
		return nil
	}

	anchor := w.log[0]
	total := anchor.Tokens

	var chosen []*Message
	for i := len(w.log) - 1; i >= 1; i-- {
		msg := w.log[i]
		if !msg.Active {
			continue
		}
		if total+msg.Tokens > w.maxBudgetTokens {
			msg.Active = false
			continue
		}
		chosen = append(chosen, msg)
		total += msg.Tokens
	}

	selected := make([]*Message, 0, len(chosen)+1)
	selected = append(selected, anchor)
	for i := len(chosen) - 1; i >= 0; i-- {
		selected = append(selected, chosen[i])
	}
	return selected
}

// BuildContext projects the active selection down to role/content pairs for
// the generation call.
func (w *Window) BuildContext() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	selected := w.selectActiveLocked()
	entries := make([]Entry, len(selected))
	for i, msg := range selected {
		entries[i] = Entry{Role: msg.Role, Content: msg.Content}
	}
	return entries
}

// Messages returns a copy of the full log, anchor first, including inactive
// entries. Intended for inspection endpoints.
func (w *Window) Messages() []Message {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Message, len(w.log))
	for i, msg := range w.log {
		out[i] = *msg
	}
	return out
}
