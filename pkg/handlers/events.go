package handlers

import (
	"context"
	"encoding/json"

	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/state"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

// SessionState is the session as the server describes it in state_update
// and refresh events.
type SessionState struct {
	Dataset              string                `json:"dataset"`
	View                 json.RawMessage       `json:"view"`
	SavedViewSlug        string                `json:"saved_view_slug"`
	Selected             []string              `json:"selected"`
	SelectedLabels       []state.SelectedLabel `json:"selected_labels"`
	ColorScheme          *state.ColorConfig    `json:"color_scheme"`
	GroupSlice           string                `json:"group_slice"`
	Spaces               json.RawMessage       `json:"spaces"`
	FieldVisibilityStage json.RawMessage       `json:"field_visibility_stage"`
}

// Snapshot returns the server-tracked part of the state.
func (s SessionState) Snapshot() synchronizer.Snapshot {
	return synchronizer.Snapshot{
		Dataset:       s.Dataset,
		View:          s.View,
		SavedViewSlug: s.SavedViewSlug,
		GroupSlice:    s.GroupSlice,
		Spaces:        s.Spaces,
	}
}

// apply writes the state into the session without notifying writers.
func (s SessionState) apply(session *state.Store) {
	selected := s.Selected
	if selected == nil {
		selected = state.SelectedSamples.Default()
	}
	labels := s.SelectedLabels
	if labels == nil {
		labels = state.SelectedLabels.Default()
	}
	state.Apply(session, state.SelectedSamples, selected)
	state.Apply(session, state.SelectedLabels, labels)
	if s.ColorScheme != nil {
		state.Apply(session, state.ColorScheme, *s.ColorScheme)
	}
	state.Apply(session, state.GroupSlice, s.GroupSlice)
	state.Apply(session, state.Spaces, s.Spaces)
	state.Apply(session, state.FieldVisibilityStage, s.FieldVisibilityStage)
}

type statePayload struct {
	State SessionState `json:"state"`
}

func decode(event synchronizer.EventName, data json.RawMessage, v any) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.New(errors.CodeStreamPayload).WithSubject(string(event)).Wrap(err)
	}
	return nil
}

// StateUpdate applies a server session state and navigates to its page.
func StateUpdate(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p statePayload
		if err := decode(synchronizer.EventStateUpdate, data, &p); err != nil {
			return err
		}

		p.State.apply(hc.Session)
		snap := p.State.Snapshot()
		hc.Server.Set(snap)
		navigate(hc, snap, p.State.FieldVisibilityStage)
		return nil
	}
}

// Refresh applies a server session state and reloads the current page
// from the network.
func Refresh(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p statePayload
		if err := decode(synchronizer.EventRefresh, data, &p); err != nil {
			return err
		}

		p.State.apply(hc.Session)
		hc.Server.Set(p.State.Snapshot())
		reload(ctx, hc)
		return nil
	}
}

// SelectSamples applies the server's sample selection.
func SelectSamples(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p struct {
			SampleIDs []string `json:"sample_ids"`
		}
		if err := decode(synchronizer.EventSelectSamples, data, &p); err != nil {
			return err
		}
		if p.SampleIDs == nil {
			p.SampleIDs = state.SelectedSamples.Default()
		}
		state.Apply(hc.Session, state.SelectedSamples, p.SampleIDs)
		return nil
	}
}

// SelectLabels applies the server's label selection.
func SelectLabels(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p struct {
			Labels []state.SelectedLabel `json:"labels"`
		}
		if err := decode(synchronizer.EventSelectLabels, data, &p); err != nil {
			return err
		}
		if p.Labels == nil {
			p.Labels = state.SelectedLabels.Default()
		}
		state.Apply(hc.Session, state.SelectedLabels, p.Labels)
		return nil
	}
}

// SetColorScheme applies the server's color scheme.
func SetColorScheme(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		p := struct {
			ColorScheme state.ColorConfig `json:"color_scheme"`
		}{ColorScheme: state.ColorScheme.Default()}
		if err := decode(synchronizer.EventSetColorScheme, data, &p); err != nil {
			return err
		}
		state.Apply(hc.Session, state.ColorScheme, p.ColorScheme)
		return nil
	}
}

// SetGroupSlice applies the server's group slice. The location is
// replaced with a slice navigation, which keeps the page data.
func SetGroupSlice(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p struct {
			Slice string `json:"slice"`
		}
		if err := decode(synchronizer.EventSetGroupSlice, data, &p); err != nil {
			return err
		}

		state.Apply(hc.Session, state.GroupSlice, p.Slice)
		hc.Server.Update(func(s *synchronizer.Snapshot) { s.GroupSlice = p.Slice })
		replaceState(hc, history.EventSlice, func(st *history.State) { st.GroupSlice = p.Slice })
		return nil
	}
}

// SetSpaces applies the server's spaces layout.
func SetSpaces(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p struct {
			Spaces json.RawMessage `json:"spaces"`
		}
		if err := decode(synchronizer.EventSetSpaces, data, &p); err != nil {
			return err
		}

		state.Apply(hc.Session, state.Spaces, p.Spaces)
		hc.Server.Update(func(s *synchronizer.Snapshot) { s.Spaces = p.Spaces })
		replaceState(hc, history.EventSpaces, func(st *history.State) { st.Spaces = p.Spaces })
		return nil
	}
}

// SetFieldVisibilityStage applies the server's field visibility. The page
// is fetched again because visible fields change the query result.
func SetFieldVisibilityStage(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p struct {
			Stage json.RawMessage `json:"stage"`
		}
		if err := decode(synchronizer.EventSetFieldVisibilityStage, data, &p); err != nil {
			return err
		}

		state.Apply(hc.Session, state.FieldVisibilityStage, p.Stage)
		replaceState(hc, history.EventFieldVisibility, func(st *history.State) { st.FieldVisibility = p.Stage })
		return nil
	}
}

// SetSample opens the modal on the server's sample, or closes it when no
// sample is given.
func SetSample(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p struct {
			SampleID string `json:"sample_id"`
			GroupID  string `json:"group_id"`
		}
		if err := decode(synchronizer.EventSetSample, data, &p); err != nil {
			return err
		}

		var modal *history.ModalSelector
		if p.SampleID != "" || p.GroupID != "" {
			modal = &history.ModalSelector{ID: p.SampleID, GroupID: p.GroupID}
		}
		state.Apply(hc.Session, state.ModalSelector, modal)
		if modal == nil {
			state.Apply(hc.Session, state.SelectedLabels, state.SelectedLabels.Default())
		}
		hc.Server.SetSample(modal)
		replaceState(hc, history.EventModal, func(st *history.State) { st.Modal = modal })
		return nil
	}
}

// CloseSession closes the event connection.
func CloseSession(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		hc.Logger.Info("session closed by server")
		hc.Cancel()
		return nil
	}
}

type cellPayload struct {
	Subscription string `json:"subscription"`
}

// DeactivateNotebookCell closes the connection when the server hands the
// session to another notebook cell.
func DeactivateNotebookCell(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p cellPayload
		if err := decode(synchronizer.EventDeactivateNotebookCell, data, &p); err != nil {
			return err
		}
		if p.Subscription != hc.Subscription {
			return nil
		}
		hc.Logger.Info("notebook cell deactivated")
		hc.Cancel()
		return nil
	}
}

// ReactivateNotebookCell reloads the page when this cell becomes active
// again.
func ReactivateNotebookCell(hc *synchronizer.HandlerContext) synchronizer.EventHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p cellPayload
		if err := decode(synchronizer.EventReactivateNotebookCell, data, &p); err != nil {
			return err
		}
		if p.Subscription == hc.Subscription {
			reload(ctx, hc)
		}
		return nil
	}
}
