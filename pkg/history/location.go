package history

import (
	"encoding/json"
	"maps"
	"strings"
)

// Event tags the reason a navigation happened. The router consults it when
// deciding whether a new location can reuse the current entry's data.
type Event string

const (
	EventNone            Event = ""
	EventModal           Event = "modal"
	EventSlice           Event = "slice"
	EventSpaces          Event = "spaces"
	EventFieldVisibility Event = "fieldVisibility"
)

// ModalSelector identifies the sample (and group) shown in the modal.
type ModalSelector struct {
	ID      string `json:"id"`
	GroupID string `json:"groupId,omitempty"`
}

// State is the in-memory navigation state stored with a Location.
type State struct {
	Event           Event           `json:"event,omitempty"`
	View            json.RawMessage `json:"view,omitempty"`
	SavedViewSlug   string          `json:"savedViewSlug,omitempty"`
	FieldVisibility json.RawMessage `json:"fieldVisibility,omitempty"`
	Modal           *ModalSelector  `json:"modalSelector,omitempty"`
	GroupSlice      string          `json:"groupSlice,omitempty"`
	Spaces          json.RawMessage `json:"spaces,omitempty"`

	// Extra carries route-specific variables that have no dedicated field.
	Extra map[string]any `json:"extra,omitempty"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.View = cloneRaw(s.View)
	out.FieldVisibility = cloneRaw(s.FieldVisibility)
	out.Spaces = cloneRaw(s.Spaces)
	if s.Modal != nil {
		m := *s.Modal
		out.Modal = &m
	}
	if s.Extra != nil {
		out.Extra = maps.Clone(s.Extra)
	}
	return out
}

// Variables returns the state as a variable bag. JSON-valued fields are
// decoded; empty fields are omitted.
func (s State) Variables() map[string]any {
	vars := make(map[string]any, len(s.Extra)+6)
	maps.Copy(vars, s.Extra)

	if v, ok := decodeRaw(s.View); ok {
		vars["view"] = v
	}
	if s.SavedViewSlug != "" {
		vars["savedViewSlug"] = s.SavedViewSlug
	}
	if v, ok := decodeRaw(s.FieldVisibility); ok {
		vars["fieldVisibilityStage"] = v
	}
	if s.GroupSlice != "" {
		vars["groupSlice"] = s.GroupSlice
	}
	if v, ok := decodeRaw(s.Spaces); ok {
		vars["spaces"] = v
	}
	if s.Modal != nil {
		vars["modal"] = map[string]any{"id": s.Modal.ID, "groupId": s.Modal.GroupID}
	}
	return vars
}

// Location is one entry of the history stack.
type Location struct {
	// Pathname is the URL path, including any reverse-proxy prefix.
	Pathname string

	// Search is the query string including the leading "?", or empty.
	Search string

	// State is the navigation state pushed with this location.
	State State

	// Key uniquely identifies this history entry.
	Key string
}

// Path returns Pathname followed by Search.
func (l Location) Path() string {
	return l.Pathname + l.Search
}

// ParsePath splits "path?query" into a pathname and a search string that
// keeps its leading "?". Fragments are dropped.
func ParsePath(path string) (pathname, search string) {
	path, _, _ = strings.Cut(path, "#")
	pathname, query, found := strings.Cut(path, "?")
	if pathname == "" {
		pathname = "/"
	}
	if found && query != "" {
		search = "?" + query
	}
	return pathname, search
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}

func decodeRaw(r json.RawMessage) (any, bool) {
	if len(r) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(r, &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}
