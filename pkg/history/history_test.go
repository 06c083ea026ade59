package history

import (
	"encoding/json"
	"reflect"
	"testing"
)

type recorded struct {
	path   string
	action Action
}

func record(h History) *[]recorded {
	var out []recorded
	h.Listen(func(loc Location, action Action) {
		out = append(out, recorded{path: loc.Path(), action: action})
	})
	return &out
}

func TestMemoryHistoryPushReplacePop(t *testing.T) {
	h := NewMemory("/", State{})
	got := record(h)

	h.Push("/datasets/quickstart?view=slug", State{SavedViewSlug: "slug"})
	h.Push("/datasets/other", State{})
	h.Replace("/datasets/other?view=v2", State{})
	h.Back()
	h.Forward()
	h.Forward() // clamped, no notification

	want := []recorded{
		{"/datasets/quickstart?view=slug", ActionPush},
		{"/datasets/other", ActionPush},
		{"/datasets/other?view=v2", ActionReplace},
		{"/datasets/quickstart?view=slug", ActionPop},
		{"/datasets/other?view=v2", ActionPop},
	}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("notifications = %v, want %v", *got, want)
	}
	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3", h.Len())
	}
}

func TestMemoryHistoryPushDropsForwardEntries(t *testing.T) {
	h := NewMemory("/a", State{})
	h.Push("/b", State{})
	h.Push("/c", State{})
	h.Go(-2)
	h.Push("/d", State{})

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	if loc := h.Location(); loc.Pathname != "/d" {
		t.Errorf("Location().Pathname = %q, want /d", loc.Pathname)
	}
	h.Forward()
	if h.Index() != 1 {
		t.Errorf("Forward past end moved cursor to %d", h.Index())
	}
}

func TestListenUnsubscribe(t *testing.T) {
	h := NewMemory("/", State{})
	calls := 0
	stop := h.Listen(func(Location, Action) { calls++ })

	h.Push("/a", State{})
	stop()
	h.Push("/b", State{})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPushCopiesState(t *testing.T) {
	h := NewMemory("/", State{})
	st := State{View: json.RawMessage(`[{"_cls":"Limit"}]`), Extra: map[string]any{"k": 1}}
	h.Push("/x", st)

	st.View[0] = '{'
	st.Extra["k"] = 2

	loc := h.Location()
	if string(loc.State.View) != `[{"_cls":"Limit"}]` {
		t.Errorf("stored view mutated: %s", loc.State.View)
	}
	if loc.State.Extra["k"] != 1 {
		t.Errorf("stored extra mutated: %v", loc.State.Extra)
	}
	if loc.Key == "" {
		t.Error("Location.Key should be set")
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in, pathname, search string
	}{
		{"/datasets/a?view=b", "/datasets/a", "?view=b"},
		{"/datasets/a?", "/datasets/a", ""},
		{"", "/", ""},
		{"?proxy=/p", "/", "?proxy=/p"},
		{"/a#frag", "/a", ""},
	}
	for _, tt := range tests {
		p, s := ParsePath(tt.in)
		if p != tt.pathname || s != tt.search {
			t.Errorf("ParsePath(%q) = (%q, %q), want (%q, %q)", tt.in, p, s, tt.pathname, tt.search)
		}
	}
}

func TestStateVariables(t *testing.T) {
	st := State{
		View:          json.RawMessage(`[{"_cls":"fiftyone.core.stages.Limit","kwargs":[["limit",5]]}]`),
		SavedViewSlug: "my-view",
		GroupSlice:    "left",
		Modal:         &ModalSelector{ID: "s1", GroupID: "g1"},
		Extra:         map[string]any{"search": "q"},
	}

	vars := st.Variables()
	if vars["savedViewSlug"] != "my-view" {
		t.Errorf("savedViewSlug = %v", vars["savedViewSlug"])
	}
	if vars["groupSlice"] != "left" {
		t.Errorf("groupSlice = %v", vars["groupSlice"])
	}
	if vars["search"] != "q" {
		t.Errorf("search = %v", vars["search"])
	}
	if _, ok := vars["view"].([]any); !ok {
		t.Errorf("view should decode to a slice, got %T", vars["view"])
	}
	if _, ok := vars["spaces"]; ok {
		t.Error("empty spaces should be omitted")
	}

	if got := (State{View: json.RawMessage("null")}).Variables(); len(got) != 0 {
		t.Errorf("null view should be omitted, got %v", got)
	}
}
