package handlers

import (
	"context"
	"encoding/json"

	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/state"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

// WriteSelectedSamples sends the sample selection to the server.
func WriteSelectedSamples(hc *synchronizer.HandlerContext) synchronizer.ValueHandler {
	return func(ctx context.Context, value any) error {
		selected, err := valueOf[[]string](string(state.SelectedSamples.Name()), value)
		if err != nil {
			return err
		}
		if selected == nil {
			selected = []string{}
		}
		hc.Commit(ctx, synchronizer.SetSelected, gql.Variables{"selected": selected}, nil)
		return nil
	}
}

// WriteSelectedLabels sends the label selection to the server.
func WriteSelectedLabels(hc *synchronizer.HandlerContext) synchronizer.ValueHandler {
	return func(ctx context.Context, value any) error {
		labels, err := valueOf[[]state.SelectedLabel](string(state.SelectedLabels.Name()), value)
		if err != nil {
			return err
		}
		if labels == nil {
			labels = []state.SelectedLabel{}
		}
		hc.Commit(ctx, synchronizer.SetSelectedLabels, gql.Variables{"selectedLabels": labels}, nil)
		return nil
	}
}

// WriteColorScheme sends the color scheme to the server.
func WriteColorScheme(hc *synchronizer.HandlerContext) synchronizer.ValueHandler {
	return func(ctx context.Context, value any) error {
		scheme, err := valueOf[state.ColorConfig](string(state.ColorScheme.Name()), value)
		if err != nil {
			return err
		}
		hc.Commit(ctx, synchronizer.SetColorScheme, gql.Variables{"colorScheme": scheme}, nil)
		return nil
	}
}

// WriteGroupSlice sends the group slice to the server and records it in
// the location.
func WriteGroupSlice(hc *synchronizer.HandlerContext) synchronizer.ValueHandler {
	return func(ctx context.Context, value any) error {
		slice, err := valueOf[string](string(state.GroupSlice.Name()), value)
		if err != nil {
			return err
		}

		view := currentView(hc)
		replaceState(hc, history.EventSlice, func(st *history.State) { st.GroupSlice = slice })
		hc.Commit(ctx, synchronizer.SetGroupSlice, gql.Variables{"view": view, "slice": slice}, func(*gql.Response) {
			hc.Server.Update(func(s *synchronizer.Snapshot) { s.GroupSlice = slice })
		})
		return nil
	}
}

// WriteSpaces sends the spaces layout to the server and records it in the
// location.
func WriteSpaces(hc *synchronizer.HandlerContext) synchronizer.ValueHandler {
	return func(ctx context.Context, value any) error {
		spaces, err := valueOf[json.RawMessage](string(state.Spaces.Name()), value)
		if err != nil {
			return err
		}

		replaceState(hc, history.EventSpaces, func(st *history.State) { st.Spaces = spaces })
		hc.Commit(ctx, synchronizer.SetSpaces, gql.Variables{"spaces": spaces}, func(*gql.Response) {
			hc.Server.Update(func(s *synchronizer.Snapshot) { s.Spaces = spaces })
		})
		return nil
	}
}

// WriteFieldVisibilityStage sends the field visibility to the server and
// records it in the location.
func WriteFieldVisibilityStage(hc *synchronizer.HandlerContext) synchronizer.ValueHandler {
	return func(ctx context.Context, value any) error {
		stage, err := valueOf[json.RawMessage](string(state.FieldVisibilityStage.Name()), value)
		if err != nil {
			return err
		}

		replaceState(hc, history.EventFieldVisibility, func(st *history.State) { st.FieldVisibility = stage })
		hc.Commit(ctx, synchronizer.SetFieldVisibilityStage, gql.Variables{"stage": stage}, nil)
		return nil
	}
}

// WriteModalSelector opens or closes the modal. Opening pushes a history
// entry so that going back closes the modal again.
func WriteModalSelector(hc *synchronizer.HandlerContext) synchronizer.ValueHandler {
	return func(ctx context.Context, value any) error {
		modal, err := valueOf[*history.ModalSelector](string(state.ModalSelector.Name()), value)
		if err != nil {
			return err
		}

		vars := gql.Variables{"id": nil, "groupId": nil}
		if modal != nil {
			vars["id"] = modal.ID
			if modal.GroupID != "" {
				vars["groupId"] = modal.GroupID
			}
		} else {
			state.Apply(hc.Session, state.SelectedLabels, state.SelectedLabels.Default())
		}

		hc.Server.SetSample(modal)
		pushState(hc, history.EventModal, func(st *history.State) { st.Modal = modal })
		hc.Commit(ctx, synchronizer.SetSample, vars, nil)
		return nil
	}
}
