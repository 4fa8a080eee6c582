// Package conversation implements the per-user conversational step register
// backing every "ask a question, wait for a free-text reply" flow in the bot.
//
// The register is global and enforced: a user has at most one pending step
// across the entire system, whichever module owns it. Beginning a new flow
// overwrites any pending flow from any module, which is also the only way a
// user can abandon a half-finished one (there is no cancel command).
// Steps are namespaced by module ("auth:await_email", "store:await_quantity")
// so the dispatcher can route a free-text message to the owning module with
// a prefix check.
//
// All state is ephemeral process memory; nothing survives a restart.
package conversation

import (
	"strings"
	"sync"
)

// Entry is one user's pending conversational position: the current step plus
// the fields accumulated across prior turns (e.g. email collected before
// password, subject and message collected before priority).
type Entry struct {
	Step   string
	Fields map[string]string
}

// Tracker is the global step register, keyed by Telegram user id.
// Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	entries map[int64]*Entry
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[int64]*Entry)}
}

// Begin creates (or overwrites) the user's entry with the given step and
// initial fields. Passing nil fields starts with an empty set.
func (t *Tracker) Begin(userID int64, step string, fields map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &Entry{Step: step, Fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		e.Fields[k] = v
	}
	t.entries[userID] = e
}

// Step returns the user's pending step tag, or ok=false when no flow is
// active.
func (t *Tracker) Step(userID int64) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[userID]
	if !ok {
		return "", false
	}
	return e.Step, true
}

// InModule reports whether the user's pending step belongs to the given
// module namespace (e.g. InModule(id, "store") for "store:await_quantity").
func (t *Tracker) InModule(userID int64, module string) bool {
	step, ok := t.Step(userID)
	return ok && strings.HasPrefix(step, module+":")
}

// Advance moves the user's pending flow to the next step, keeping its
// accumulated fields. It is a no-op when no flow is active.
func (t *Tracker) Advance(userID int64, step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[userID]; ok {
		e.Step = step
	}
}

// SetField records one accumulated input on the user's pending flow.
// It is a no-op when no flow is active.
func (t *Tracker) SetField(userID int64, key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[userID]; ok {
		e.Fields[key] = value
	}
}

// Field returns one accumulated input ("" when absent or no flow is active).
func (t *Tracker) Field(userID int64, key string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[userID]; ok {
		return e.Fields[key]
	}
	return ""
}

// End removes the user's entry, completing or abandoning the flow.
func (t *Tracker) End(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, userID)
}
