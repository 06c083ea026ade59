package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/routes"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

// current returns the committed entry, or nil.
func current(hc *synchronizer.HandlerContext) *router.Entry {
	if hc.Router == nil {
		return nil
	}
	entry, err := hc.Router.Get(false)
	if err != nil {
		return nil
	}
	return entry
}

// currentDataset returns the dataset of the committed entry. It fails when
// no dataset page is shown.
func currentDataset(hc *synchronizer.HandlerContext) (string, error) {
	entry := current(hc)
	if entry == nil {
		return "", errors.New(errors.CodeNoEntry)
	}
	name := entry.DatasetName()
	if name == "" {
		return "", errors.New(errors.CodeNoEntry).WithDetail("no dataset is loaded")
	}
	return name, nil
}

// currentView returns the view of the committed entry, or an empty view.
func currentView(hc *synchronizer.HandlerContext) json.RawMessage {
	var view json.RawMessage
	if entry := current(hc); entry != nil {
		view = entry.State.View
	}
	return synchronizer.ViewOrEmpty(view)
}

// replaceState rewrites the state of the current location. The event tag
// tells the router whether the page query must be fetched again.
func replaceState(hc *synchronizer.HandlerContext, event history.Event, update func(*history.State)) {
	if hc.Router == nil {
		return
	}
	loc := hc.Router.Location()
	st := loc.State.Clone()
	st.Event = event
	update(&st)
	hc.Router.Replace(loc.Path(), st)
}

// pushState pushes the current path with a modified state.
func pushState(hc *synchronizer.HandlerContext, event history.Event, update func(*history.State)) {
	if hc.Router == nil {
		return
	}
	loc := hc.Router.Location()
	st := loc.State.Clone()
	st.Event = event
	update(&st)
	hc.Router.Push(loc.Path(), st)
}

// reload refetches the current page in the background so that events
// keep flowing while the query is in flight. Failures go to the error
// handler.
func reload(ctx context.Context, hc *synchronizer.HandlerContext) {
	if hc.Router == nil {
		return
	}
	go func() {
		if _, err := hc.Router.Load(ctx, true); err != nil && ctx.Err() == nil {
			hc.HandleError(err)
		}
	}()
}

// navigate pushes the page for snap unless it is already shown.
func navigate(hc *synchronizer.HandlerContext, snap synchronizer.Snapshot, fieldVisibility json.RawMessage) {
	if hc.Router == nil {
		return
	}
	if entry := current(hc); entry != nil && synchronizer.SnapshotOf(entry).Equal(snap) {
		return
	}
	hc.Router.Push(routes.DatasetURL(hc.Router, snap.Dataset, snap.SavedViewSlug), history.State{
		View:            snap.View,
		SavedViewSlug:   snap.SavedViewSlug,
		GroupSlice:      snap.GroupSlice,
		Spaces:          snap.Spaces,
		FieldVisibility: fieldVisibility,
	})
}

// valueOf asserts a written or set value to T. A nil value yields the zero
// T.
func valueOf[T any](name string, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("handlers: %s: unexpected value type %T", name, v)
	}
	return t, nil
}

// rawOf encodes a view-like value. Raw JSON passes through.
func rawOf(name string, v any) (json.RawMessage, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("handlers: %s: %w", name, err)
		}
		return raw, nil
	}
}
