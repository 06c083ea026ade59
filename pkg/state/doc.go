// Package state holds the session record shared by the UI and the session
// synchronizer: selections, color scheme, group slice, spaces,
// field-visibility stage and the modal selector.
//
// Values are addressed by typed keys:
//
//	samples := state.Get(store, state.SelectedSamples)
//	err := state.Write(store, state.GroupSlice, "left")
//
// Write is the UI path: it stores the value and then notifies observers,
// which is how local writes reach the server. Apply stores a value without
// notifying anyone and is used when the value came from the server.
package state
