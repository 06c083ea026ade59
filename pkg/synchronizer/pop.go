package synchronizer

import (
	"bytes"
	"encoding/json"

	"github.com/google/go-cmp/cmp"

	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/state"
)

// Reconcile brings the server in line with next after a back/forward
// navigation away from prev. Mutations are sent only for what differs
// from the state last synchronized with the server (or from prev when
// nothing has been synchronized yet), so repeating a reconciliation sends
// nothing.
func (s *Synchronizer) Reconcile(prev, next *router.Entry) {
	var prevState history.State
	if prev != nil {
		prevState = prev.State
	}
	if prevState.Event == history.EventModal || next.State.Event == history.EventModal {
		s.reconcileModal(next)
		return
	}

	state.Apply(s.session, state.SelectedLabels, state.SelectedLabels.Default())
	state.Apply(s.session, state.SelectedSamples, state.SelectedSamples.Default())

	base, known := s.server.Get()
	if !known && prev != nil {
		base, known = SnapshotOf(prev), true
	}
	target := SnapshotOf(next)

	if target.Dataset == "" {
		if known && base.Dataset == "" {
			return
		}
		s.session.Reset()
		s.server.Set(Snapshot{})
		s.commit(SetDataset, gql.Variables{"subscription": s.subscription, "name": nil}, nil)
		return
	}

	viewChanged := !known ||
		base.Dataset != target.Dataset ||
		base.SavedViewSlug != target.SavedViewSlug ||
		!router.ViewsEqual(base.View, target.View)
	sliceChanged := target.GroupSlice != "" && (!known || base.GroupSlice != target.GroupSlice)
	spacesChanged := len(target.Spaces) > 0 && (!known || !rawEqual(base.Spaces, target.Spaces))

	state.Apply(s.session, state.GroupSlice, target.GroupSlice)
	state.Apply(s.session, state.Spaces, target.Spaces)
	s.server.Set(target)

	// Slice and spaces settings refer to the view, so they follow it.
	followUp := func() {
		if spacesChanged {
			s.commit(SetSpaces, gql.Variables{
				"subscription": s.subscription,
				"spaces":       target.Spaces,
			}, nil)
		}
		if sliceChanged {
			s.commit(SetGroupSlice, gql.Variables{
				"subscription": s.subscription,
				"view":         ViewOrEmpty(target.View),
				"slice":        target.GroupSlice,
			}, nil)
		}
	}

	if !viewChanged {
		followUp()
		return
	}

	vars := gql.Variables{
		"subscription":  s.subscription,
		"view":          ViewOrEmpty(target.View),
		"datasetName":   target.Dataset,
		"savedViewSlug": nil,
	}
	if target.SavedViewSlug != "" {
		vars["savedViewSlug"] = target.SavedViewSlug
	}
	s.commit(SetView, vars, followUp)
}

// reconcileModal syncs the modal sample. Selected labels belong to the
// modal and are cleared when it closes.
func (s *Synchronizer) reconcileModal(next *router.Entry) {
	modal := next.State.Modal

	state.Apply(s.session, state.ModalSelector, modal)
	if modal == nil {
		state.Apply(s.session, state.SelectedLabels, state.SelectedLabels.Default())
	}

	if synced, ok := s.server.Sample(); ok && cmp.Equal(synced, modal) {
		return
	}
	s.server.SetSample(modal)

	vars := gql.Variables{"subscription": s.subscription, "id": nil, "groupId": nil}
	if modal != nil {
		vars["id"] = modal.ID
		if modal.GroupID != "" {
			vars["groupId"] = modal.GroupID
		}
	}
	s.commit(SetSample, vars, nil)
}

// ViewOrEmpty returns view, or an empty view stage list when view is unset.
func ViewOrEmpty(view json.RawMessage) json.RawMessage {
	if len(view) == 0 || bytes.Equal(view, []byte("null")) {
		return json.RawMessage("[]")
	}
	return view
}

func rawEqual(a, b json.RawMessage) bool {
	return router.ViewsEqual(a, b)
}
