package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/gql/gqltest"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/routes"
	"github.com/fiftyone-dev/appsync/pkg/state"
	"github.com/fiftyone-dev/appsync/pkg/stream"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

type harness struct {
	t       *testing.T
	history *history.MemoryHistory
	env     *gqltest.Environment
	router  *router.Router
	session *state.Store
	sync    *synchronizer.Synchronizer
	pipe    *stream.Pipe
	commits chan *router.Entry

	mu   sync.Mutex
	errs []error
}

func newHarness(t *testing.T, path string) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		history: history.NewMemory(path, history.State{}),
		env:     gqltest.New(),
		session: state.New(),
		pipe:    stream.NewPipe(),
		commits: make(chan *router.Entry, 16),
	}
	handleError := func(err error) {
		h.mu.Lock()
		h.errs = append(h.errs, err)
		h.mu.Unlock()
	}

	h.router = router.New(router.Options{
		Routes:      routes.Routes(),
		History:     h.history,
		Environment: h.env,
		HandleError: handleError,
		Scheduler:   router.Immediate,
	})

	regs := synchronizer.NewRegistries()
	Register(regs)
	h.sync = synchronizer.New(synchronizer.Options{
		Router:       h.router,
		Session:      h.session,
		Environment:  h.env,
		Dialer:       h.pipe,
		Registries:   regs,
		Subscription: "sub-1",
		HandleError:  handleError,
	})
	h.router.Subscribe(func(e *router.Entry, _ history.Action, _ *router.Entry) {
		h.commits <- e
	}, nil)

	t.Cleanup(func() {
		h.sync.Close()
		h.router.Close()
	})
	return h
}

func (h *harness) load() *router.Entry {
	h.t.Helper()
	entry, err := h.router.Load(context.Background(), false)
	if err != nil {
		h.t.Fatalf("Load: %v", err)
	}
	h.nextCommit()
	h.env.Reset()
	return entry
}

func (h *harness) nextCommit() *router.Entry {
	h.t.Helper()
	select {
	case e := <-h.commits:
		h.waitCurrent(e)
		return e
	case <-time.After(5 * time.Second):
		h.t.Fatal("timed out waiting for commit")
		return nil
	}
}

func (h *harness) waitCurrent(e *router.Entry) {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if got, _ := h.router.Get(false); got == e {
			return
		}
		if time.Now().After(deadline) {
			h.t.Fatal("entry never became current")
		}
		time.Sleep(time.Millisecond)
	}
}

// settle waits for in-flight navigations by closing the router.
func (h *harness) settle() {
	h.router.Close()
}

func (h *harness) event(name synchronizer.EventName, data string) error {
	h.t.Helper()
	return h.sync.HandleEvent(context.Background(), stream.Event{Name: string(name), Data: json.RawMessage(data)})
}

func (h *harness) mustEvent(name synchronizer.EventName, data string) {
	h.t.Helper()
	if err := h.event(name, data); err != nil {
		h.t.Fatalf("%s: %v", name, err)
	}
}

func (h *harness) mutation(name string) gql.Variables {
	h.t.Helper()
	calls := h.env.Mutations()
	if len(calls) != 1 || calls[0].Name != name {
		h.t.Fatalf("mutations = %v, want [%s]", h.env.MutationNames(), name)
	}
	if calls[0].Variables["subscription"] != "sub-1" {
		h.t.Errorf("subscription = %v", calls[0].Variables["subscription"])
	}
	return calls[0].Variables
}

func (h *harness) errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

func TestRegister_CoversEverything(t *testing.T) {
	regs := synchronizer.NewRegistries()
	Register(regs)
	if err := regs.Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestStateUpdate(t *testing.T) {
	h := newHarness(t, "/")
	h.load()

	h.mustEvent(synchronizer.EventStateUpdate, `{"state": {
		"dataset": "quickstart",
		"saved_view_slug": "my-view",
		"selected": ["a"],
		"group_slice": "left"
	}}`)

	entry := h.nextCommit()
	if entry.Pathname != "/datasets/quickstart" || entry.Search != "?view=my-view" {
		t.Errorf("location = %s", entry.Path())
	}
	if entry.DatasetName() != "quickstart" {
		t.Errorf("dataset = %q", entry.DatasetName())
	}
	if got := state.Get(h.session, state.SelectedSamples); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("selected = %v", got)
	}
	if got := state.Get(h.session, state.GroupSlice); got != "left" {
		t.Errorf("slice = %q", got)
	}
	if names := h.env.MutationNames(); len(names) != 0 {
		t.Errorf("server state was echoed: %v", names)
	}

	// The same state again changes nothing.
	n := h.history.Len()
	h.mustEvent(synchronizer.EventStateUpdate, `{"state": {
		"dataset": "quickstart",
		"saved_view_slug": "my-view",
		"group_slice": "left"
	}}`)
	if h.history.Len() != n {
		t.Error("identical state should not navigate")
	}
}

func TestStateUpdate_NoDataset(t *testing.T) {
	h := newHarness(t, "/datasets/quickstart")
	h.load()

	h.mustEvent(synchronizer.EventStateUpdate, `{"state": {"dataset": null}}`)
	if entry := h.nextCommit(); entry.Pathname != "/" {
		t.Errorf("location = %s", entry.Path())
	}
}

func TestEvents_InvalidPayload(t *testing.T) {
	h := newHarness(t, "/")
	for _, name := range []synchronizer.EventName{
		synchronizer.EventStateUpdate,
		synchronizer.EventSelectSamples,
		synchronizer.EventSetSample,
	} {
		err := h.event(name, `{"state": [`)
		if !errors.HasCode(err, errors.CodeStreamPayload) {
			t.Errorf("%s: err = %v, want %s", name, err, errors.CodeStreamPayload)
		}
	}
}

func TestEvents_ApplySession(t *testing.T) {
	tests := []struct {
		name  string
		event synchronizer.EventName
		data  string
		check func(t *testing.T, s *state.Store)
	}{
		{
			name:  "select samples",
			event: synchronizer.EventSelectSamples,
			data:  `{"sample_ids": ["a", "b"]}`,
			check: func(t *testing.T, s *state.Store) {
				if got := state.Get(s, state.SelectedSamples); !reflect.DeepEqual(got, []string{"a", "b"}) {
					t.Errorf("selected = %v", got)
				}
			},
		},
		{
			name:  "clear samples",
			event: synchronizer.EventSelectSamples,
			data:  `{}`,
			check: func(t *testing.T, s *state.Store) {
				if got := state.Get(s, state.SelectedSamples); got == nil || len(got) != 0 {
					t.Errorf("selected = %#v, want empty", got)
				}
			},
		},
		{
			name:  "select labels",
			event: synchronizer.EventSelectLabels,
			data:  `{"labels": [{"labelId": "l1", "sampleId": "s1", "field": "ground_truth"}]}`,
			check: func(t *testing.T, s *state.Store) {
				want := []state.SelectedLabel{{LabelID: "l1", SampleID: "s1", Field: "ground_truth"}}
				if got := state.Get(s, state.SelectedLabels); !reflect.DeepEqual(got, want) {
					t.Errorf("labels = %v", got)
				}
			},
		},
		{
			name:  "color scheme",
			event: synchronizer.EventSetColorScheme,
			data:  `{"color_scheme": {"colorPool": ["#fff"], "colorBy": "value"}}`,
			check: func(t *testing.T, s *state.Store) {
				got := state.Get(s, state.ColorScheme)
				if got.ColorBy != "value" || !reflect.DeepEqual(got.ColorPool, []string{"#fff"}) {
					t.Errorf("scheme = %+v", got)
				}
				if got.Opacity != 0.7 {
					t.Errorf("opacity = %v, want default", got.Opacity)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "/")
			h.mustEvent(tt.event, tt.data)
			tt.check(t, h.session)
			if names := h.env.MutationNames(); len(names) != 0 {
				t.Errorf("mutations = %v", names)
			}
		})
	}
}

func TestSetGroupSlice_KeepsPageData(t *testing.T) {
	h := newHarness(t, "/datasets/quickstart")
	h.load()

	h.mustEvent(synchronizer.EventSetGroupSlice, `{"slice": "right"}`)
	h.settle()

	if got := state.Get(h.session, state.GroupSlice); got != "right" {
		t.Errorf("slice = %q", got)
	}
	loc := h.history.Location()
	if loc.State.GroupSlice != "right" || loc.State.Event != history.EventSlice {
		t.Errorf("state = %+v", loc.State)
	}
	if n := len(h.env.Fetches()); n != 0 {
		t.Errorf("fetches = %d, want the page data to be kept", n)
	}
	if snap, _ := h.sync.Server().Get(); snap.GroupSlice != "right" {
		t.Errorf("server slice = %q", snap.GroupSlice)
	}
}

func TestSetFieldVisibilityStage_Refetches(t *testing.T) {
	h := newHarness(t, "/datasets/quickstart")
	h.load()

	h.mustEvent(synchronizer.EventSetFieldVisibilityStage, `{"stage": {"_cls": "SelectFields"}}`)
	entry := h.nextCommit()

	if got := string(state.Get(h.session, state.FieldVisibilityStage)); got != `{"_cls": "SelectFields"}` {
		t.Errorf("stage = %s", got)
	}
	if entry.Variables["fieldVisibilityStage"] == nil {
		t.Error("page query should see the stage")
	}
	if n := len(h.env.Fetches()); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestSetSample(t *testing.T) {
	h := newHarness(t, "/datasets/quickstart")
	h.load()

	h.mustEvent(synchronizer.EventSetSample, `{"sample_id": "s1", "group_id": "g1"}`)
	want := &history.ModalSelector{ID: "s1", GroupID: "g1"}
	if got := state.Get(h.session, state.ModalSelector); !reflect.DeepEqual(got, want) {
		t.Errorf("modal = %+v", got)
	}
	if got, _ := h.sync.Server().Sample(); !reflect.DeepEqual(got, want) {
		t.Errorf("server sample = %+v", got)
	}
	if loc := h.history.Location(); !reflect.DeepEqual(loc.State.Modal, want) {
		t.Errorf("location modal = %+v", loc.State.Modal)
	}

	state.Apply(h.session, state.SelectedLabels, []state.SelectedLabel{{LabelID: "l1"}})
	h.mustEvent(synchronizer.EventSetSample, `{}`)
	if state.Get(h.session, state.ModalSelector) != nil {
		t.Error("modal should be closed")
	}
	if len(state.Get(h.session, state.SelectedLabels)) != 0 {
		t.Error("labels should be cleared with the modal")
	}
}

func TestRefresh(t *testing.T) {
	h := newHarness(t, "/datasets/quickstart")
	h.load()

	h.mustEvent(synchronizer.EventRefresh, `{"state": {"dataset": "quickstart", "selected": ["x"]}}`)
	h.nextCommit()

	fetches := h.env.Fetches()
	if len(fetches) != 1 || fetches[0].Policy != gql.NetworkOnly {
		t.Errorf("fetches = %+v, want one network-only fetch", fetches)
	}
	if got := state.Get(h.session, state.SelectedSamples); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("selected = %v", got)
	}
}

func TestRefresh_FailureDoesNotBlockEvents(t *testing.T) {
	h := newHarness(t, "/datasets/quickstart")
	first := h.load()

	boom := stderrors.New("dataset deleted")
	h.env.Handle("DatasetPageQuery", func(gql.Variables) (*gql.Response, error) {
		return nil, boom
	})
	release := h.env.Hold(func(name string, _ gql.Variables) bool { return name == "DatasetPageQuery" })

	h.mustEvent(synchronizer.EventRefresh, `{"state": {"dataset": "quickstart"}}`)
	h.mustEvent(synchronizer.EventSelectSamples, `{"sample_ids": ["a"]}`)
	if got := state.Get(h.session, state.SelectedSamples); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("selected = %v while the refresh is in flight", got)
	}

	release()
	deadline := time.Now().Add(5 * time.Second)
	for len(h.errors()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh failure never reported")
		}
		time.Sleep(time.Millisecond)
	}
	if errs := h.errors(); len(errs) != 1 || !stderrors.Is(errs[0], boom) {
		t.Errorf("errors = %v", errs)
	}
	if got, _ := h.router.Get(false); got != first {
		t.Error("loaded entry should stay current")
	}
}

func TestCloseEvents(t *testing.T) {
	tests := []struct {
		name   string
		event  synchronizer.EventName
		data   any
		closes bool
	}{
		{"close session", synchronizer.EventCloseSession, nil, true},
		{"deactivate this cell", synchronizer.EventDeactivateNotebookCell, map[string]string{"subscription": "sub-1"}, true},
		{"deactivate other cell", synchronizer.EventDeactivateNotebookCell, map[string]string{"subscription": "sub-2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "/")
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- h.sync.Run(ctx) }()
			<-h.pipe.Dialed()

			if err := h.pipe.Send(string(tt.event), tt.data); err != nil {
				t.Fatal(err)
			}

			select {
			case err := <-done:
				if !tt.closes {
					t.Fatalf("Run returned %v", err)
				}
				if err != nil {
					t.Errorf("Run = %v, want nil", err)
				}
			case <-time.After(100 * time.Millisecond):
				if tt.closes {
					t.Fatal("connection not closed")
				}
			}
		})
	}
}

func TestReactivateNotebookCell(t *testing.T) {
	h := newHarness(t, "/")
	h.load()

	h.mustEvent(synchronizer.EventReactivateNotebookCell, `{"subscription": "sub-2"}`)
	if n := len(h.env.Fetches()); n != 0 {
		t.Errorf("other cell reloaded: %d fetches", n)
	}

	h.mustEvent(synchronizer.EventReactivateNotebookCell, `{"subscription": "sub-1"}`)
	h.nextCommit()
	if n := len(h.env.Fetches()); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}
