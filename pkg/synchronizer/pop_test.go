package synchronizer

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/state"
)

var (
	indexRoute = &router.Route{
		Path:      "/",
		Component: router.Lazy(router.Component{Name: "IndexPage"}),
	}
	datasetRoute = &router.Route{
		Path:         "/datasets/:name",
		Component:    router.Lazy(router.Component{Name: "DatasetPage"}),
		Query:        router.Lazy(gql.NewQuery("DatasetPageQuery", "query DatasetPageQuery($name: String!) { dataset(name: $name) }")),
		SearchParams: map[string]string{"view": "savedViewSlug"},
		DatasetName: func(vars gql.Variables) string {
			name, _ := vars["name"].(string)
			return name
		},
	}
)

func datasetEntry(name string, st history.State) *router.Entry {
	return &router.Entry{
		Location:  history.Location{Pathname: "/datasets/" + name, State: st},
		Route:     datasetRoute,
		Variables: gql.Variables{"name": name},
	}
}

func indexEntry() *router.Entry {
	return &router.Entry{
		Location:  history.Location{Pathname: "/"},
		Route:     indexRoute,
		Variables: gql.Variables{},
	}
}

func (f *fixture) mutations(t *testing.T, want ...string) []gqlCall {
	t.Helper()
	calls := f.env.Mutations()
	got := f.env.MutationNames()
	if len(want) == 0 && len(got) == 0 {
		return nil
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mutations = %v, want %v", got, want)
	}
	out := make([]gqlCall, len(calls))
	for i, c := range calls {
		out[i] = gqlCall{c.Name, c.Variables}
	}
	return out
}

type gqlCall struct {
	name string
	vars gql.Variables
}

func rawString(v any) string {
	switch v := v.(type) {
	case json.RawMessage:
		return string(v)
	case nil:
		return "<nil>"
	default:
		return "<not raw>"
	}
}

func TestReconcile_ViewChangeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	prev := datasetEntry("a", history.State{View: json.RawMessage(`[]`)})
	next := datasetEntry("b", history.State{View: json.RawMessage(`[{"_cls":"Limit"}]`)})

	f.sync.Reconcile(prev, next)
	calls := f.mutations(t, "setView")
	vars := calls[0].vars
	if vars["datasetName"] != "b" || vars["savedViewSlug"] != nil || vars["subscription"] != "sub-1" {
		t.Errorf("setView vars = %v", vars)
	}
	if got := rawString(vars["view"]); got != `[{"_cls":"Limit"}]` {
		t.Errorf("view = %s", got)
	}

	f.env.Reset()
	f.sync.Reconcile(prev, next)
	f.mutations(t)
}

func TestReconcile_SavedViewSlugFromVariables(t *testing.T) {
	f := newFixture(t)
	prev := datasetEntry("a", history.State{})
	next := datasetEntry("a", history.State{})
	next.Variables["savedViewSlug"] = "my-view"

	f.sync.Reconcile(prev, next)
	calls := f.mutations(t, "setView")
	if calls[0].vars["savedViewSlug"] != "my-view" {
		t.Errorf("savedViewSlug = %v", calls[0].vars["savedViewSlug"])
	}
	if got := rawString(calls[0].vars["view"]); got != `[]` {
		t.Errorf("empty view should be sent as [], got %s", got)
	}
}

func TestReconcile_SliceAndSpacesFollowView(t *testing.T) {
	f := newFixture(t)
	state.Apply(f.session, state.SelectedSamples, []string{"s1"})

	prev := datasetEntry("a", history.State{})
	next := datasetEntry("b", history.State{
		GroupSlice: "left",
		Spaces:     json.RawMessage(`{"id":"root"}`),
	})

	f.sync.Reconcile(prev, next)
	calls := f.mutations(t, "setView", "setSpaces", "setGroupSlice")
	if calls[2].vars["slice"] != "left" {
		t.Errorf("slice = %v", calls[2].vars["slice"])
	}
	if got := rawString(calls[1].vars["spaces"]); got != `{"id":"root"}` {
		t.Errorf("spaces = %s", got)
	}

	if got := state.Get(f.session, state.GroupSlice); got != "left" {
		t.Errorf("session slice = %q", got)
	}
	if len(state.Get(f.session, state.SelectedSamples)) != 0 {
		t.Error("selection should be cleared")
	}
}

func TestReconcile_SliceOnly(t *testing.T) {
	f := newFixture(t)
	view := json.RawMessage(`[{"_cls":"Exists"}]`)
	prev := datasetEntry("a", history.State{View: view, GroupSlice: "left"})
	next := datasetEntry("a", history.State{View: view, GroupSlice: "right"})

	f.sync.Reconcile(prev, next)
	f.mutations(t, "setGroupSlice")
}

func TestReconcile_UsesServerBaseline(t *testing.T) {
	f := newFixture(t)
	prev := datasetEntry("a", history.State{})
	next := datasetEntry("b", history.State{View: json.RawMessage(`[]`)})

	// The server already shows next, e.g. after a state_update.
	f.sync.Server().Set(SnapshotOf(next))
	f.sync.Reconcile(prev, next)
	f.mutations(t)
}

func TestReconcile_NoDataset(t *testing.T) {
	f := newFixture(t)
	state.Apply(f.session, state.GroupSlice, "left")

	f.sync.Reconcile(datasetEntry("a", history.State{}), indexEntry())
	calls := f.mutations(t, "setDataset")
	if v, ok := calls[0].vars["name"]; !ok || v != nil {
		t.Errorf("name = %v, want explicit nil", v)
	}
	if got := state.Get(f.session, state.GroupSlice); got != "" {
		t.Errorf("session not reset, slice = %q", got)
	}

	f.env.Reset()
	f.sync.Reconcile(datasetEntry("a", history.State{}), indexEntry())
	f.mutations(t)
}

func TestReconcile_Modal(t *testing.T) {
	f := newFixture(t)
	base := datasetEntry("a", history.State{})
	open := datasetEntry("a", history.State{
		Event: history.EventModal,
		Modal: &history.ModalSelector{ID: "s1", GroupID: "g1"},
	})

	f.sync.Reconcile(base, open)
	calls := f.mutations(t, "setSample")
	if calls[0].vars["id"] != "s1" || calls[0].vars["groupId"] != "g1" {
		t.Errorf("setSample vars = %v", calls[0].vars)
	}
	if m := state.Get(f.session, state.ModalSelector); m == nil || m.ID != "s1" {
		t.Errorf("modal = %v", m)
	}

	f.env.Reset()
	f.sync.Reconcile(base, open)
	f.mutations(t)

	// Closing the modal clears its labels.
	state.Apply(f.session, state.SelectedLabels, []state.SelectedLabel{{LabelID: "l1"}})
	f.env.Reset()
	f.sync.Reconcile(open, base)
	calls = f.mutations(t, "setSample")
	if calls[0].vars["id"] != nil {
		t.Errorf("id = %v, want nil", calls[0].vars["id"])
	}
	if state.Get(f.session, state.ModalSelector) != nil {
		t.Error("modal should be closed")
	}
	if len(state.Get(f.session, state.SelectedLabels)) != 0 {
		t.Error("labels should be cleared")
	}
}

func TestReconcile_FailureResends(t *testing.T) {
	f := newFixture(t)
	fail := stderrors.New("server unavailable")
	f.env.Handle("setView", func(gql.Variables) (*gql.Response, error) { return nil, fail })

	prev := datasetEntry("a", history.State{})
	next := datasetEntry("b", history.State{})
	f.sync.Reconcile(prev, next)

	if errs := f.errors(); len(errs) != 1 || !stderrors.Is(errs[0], fail) {
		t.Fatalf("errors = %v", errs)
	}
	if _, known := f.sync.Server().Get(); known {
		t.Error("failed mutation should forget the server state")
	}

	f.env.HandleData("setView", `{}`)
	f.env.Reset()
	f.sync.Reconcile(prev, next)
	f.mutations(t, "setView")
}

// routed replaces the fixture's synchronizer with one that follows a
// router over a memory history at path, and loads path.
func (f *fixture) routed(t *testing.T, path string) (*router.Router, *history.MemoryHistory) {
	t.Helper()
	f.sync.Close()

	hist := history.NewMemory(path, history.State{})
	rt := router.New(router.Options{
		Routes:      []*router.Route{indexRoute, datasetRoute},
		History:     hist,
		Environment: f.env,
		Scheduler:   router.Immediate,
	})
	t.Cleanup(rt.Close)

	f.sync = New(Options{
		Router:       rt,
		Session:      f.session,
		Environment:  f.env,
		Dialer:       f.pipe,
		Registries:   f.regs,
		Subscription: "sub-1",
	})
	t.Cleanup(f.sync.Close)

	if _, err := rt.Load(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	return rt, hist
}

func TestSynchronizer_PopThroughRouter(t *testing.T) {
	f := newFixture(t)
	rt, hist := f.routed(t, "/datasets/a")
	if snap, _ := f.sync.Server().Get(); snap.Dataset != "a" {
		t.Fatalf("loaded dataset = %q", snap.Dataset)
	}

	rt.Push("/datasets/b", history.State{})
	waitFor(t, func() bool {
		snap, _ := f.sync.Server().Get()
		return snap.Dataset == "b"
	})
	f.mutations(t)

	hist.Back()
	waitFor(t, func() bool { return len(f.env.Mutations()) > 0 })
	calls := f.mutations(t, "setView")
	if calls[0].vars["datasetName"] != "a" {
		t.Errorf("datasetName = %v", calls[0].vars["datasetName"])
	}
}

func TestSynchronizer_ModalBackAndForwardThroughRouter(t *testing.T) {
	f := newFixture(t)
	rt, hist := f.routed(t, "/datasets/a")
	loaded, _ := rt.Get(false)

	// Opening the modal records the sample the way the modal writer does.
	modal := &history.ModalSelector{ID: "s1"}
	f.sync.Server().SetSample(modal)
	state.Apply(f.session, state.ModalSelector, modal)
	rt.Push("/datasets/a", history.State{Event: history.EventModal, Modal: modal})
	waitFor(t, func() bool {
		e, _ := rt.Get(false)
		return e != nil && e.State.Modal != nil
	})
	f.mutations(t)

	state.Apply(f.session, state.SelectedLabels, []state.SelectedLabel{{LabelID: "l1"}})
	hist.Back()
	waitFor(t, func() bool { return len(f.env.Mutations()) > 0 })
	calls := f.mutations(t, "setSample")
	if calls[0].vars["id"] != nil || calls[0].vars["groupId"] != nil {
		t.Errorf("close vars = %v", calls[0].vars)
	}
	if got := state.Get(f.session, state.ModalSelector); got != nil {
		t.Errorf("modal = %+v, want closed", got)
	}
	if len(state.Get(f.session, state.SelectedLabels)) != 0 {
		t.Error("labels should be cleared with the modal")
	}

	f.env.Reset()
	hist.Forward()
	waitFor(t, func() bool { return len(f.env.Mutations()) > 0 })
	if calls := f.mutations(t, "setSample"); calls[0].vars["id"] != "s1" {
		t.Errorf("reopen id = %v", calls[0].vars["id"])
	}
	if got := state.Get(f.session, state.ModalSelector); got == nil || got.ID != "s1" {
		t.Errorf("modal = %+v, want s1", got)
	}

	if n := len(f.env.Fetches()); n != 1 {
		t.Errorf("fetches = %d, want the page data to be kept", n)
	}
	if e, _ := rt.Get(false); !e.SharesQuery(loaded) {
		t.Error("modal navigations should keep the loaded query")
	}
}
