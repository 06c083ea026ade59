package history

import (
	"sync"

	"github.com/google/uuid"
)

// Action describes how the current location was reached.
type Action string

const (
	// ActionNone marks commits that did not come from a history change,
	// such as the router's initial load or a hard reload.
	ActionNone    Action = ""
	ActionPush    Action = "PUSH"
	ActionReplace Action = "REPLACE"
	ActionPop     Action = "POP"
)

// Listener is notified after the history cursor moves.
type Listener func(loc Location, action Action)

// History is the navigation stack the router drives.
type History interface {
	// Location returns the current location.
	Location() Location

	// Push adds a new entry after the current one, dropping forward entries.
	Push(path string, state State)

	// Replace swaps the current entry.
	Replace(path string, state State)

	// Go moves the cursor by delta entries, clamped to the stack.
	Go(delta int)

	// Back is Go(-1).
	Back()

	// Forward is Go(1).
	Forward()

	// Listen registers l and returns a function that removes it.
	Listen(l Listener) (unlisten func())
}

// MemoryHistory is an in-memory History, safe for concurrent use.
// Listeners run synchronously, outside the internal lock, in
// registration order.
type MemoryHistory struct {
	mu        sync.Mutex
	entries   []Location
	index     int
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn Listener
}

// NewMemory creates a MemoryHistory whose single entry is initialPath.
func NewMemory(initialPath string, state State) *MemoryHistory {
	return &MemoryHistory{
		entries: []Location{newLocation(initialPath, state)},
	}
}

func newLocation(path string, state State) Location {
	pathname, search := ParsePath(path)
	return Location{
		Pathname: pathname,
		Search:   search,
		State:    state.Clone(),
		Key:      uuid.NewString()[:8],
	}
}

// Location returns the current location.
func (h *MemoryHistory) Location() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Len returns the number of entries in the stack.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Index returns the cursor position.
func (h *MemoryHistory) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

// Push adds a new entry after the current one.
func (h *MemoryHistory) Push(path string, state State) {
	loc := newLocation(path, state)

	h.mu.Lock()
	h.entries = append(h.entries[:h.index+1], loc)
	h.index = len(h.entries) - 1
	ls := h.snapshotListeners()
	h.mu.Unlock()

	notify(ls, loc, ActionPush)
}

// Replace swaps the current entry.
func (h *MemoryHistory) Replace(path string, state State) {
	loc := newLocation(path, state)

	h.mu.Lock()
	h.entries[h.index] = loc
	ls := h.snapshotListeners()
	h.mu.Unlock()

	notify(ls, loc, ActionReplace)
}

// Go moves the cursor by delta. Moves past either end are clamped; a move
// that leaves the cursor in place notifies nobody.
func (h *MemoryHistory) Go(delta int) {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 {
		next = 0
	}
	if next > len(h.entries)-1 {
		next = len(h.entries) - 1
	}
	if next == h.index {
		h.mu.Unlock()
		return
	}
	h.index = next
	loc := h.entries[next]
	ls := h.snapshotListeners()
	h.mu.Unlock()

	notify(ls, loc, ActionPop)
}

// Back moves one entry back.
func (h *MemoryHistory) Back() { h.Go(-1) }

// Forward moves one entry forward.
func (h *MemoryHistory) Forward() { h.Go(1) }

// Listen registers l.
func (h *MemoryHistory) Listen(l Listener) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, listener{id: id, fn: l})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, ls := range h.listeners {
			if ls.id == id {
				h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

func (h *MemoryHistory) snapshotListeners() []Listener {
	out := make([]Listener, len(h.listeners))
	for i, l := range h.listeners {
		out[i] = l.fn
	}
	return out
}

func notify(ls []Listener, loc Location, action Action) {
	for _, l := range ls {
		l(loc, action)
	}
}
