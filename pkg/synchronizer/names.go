package synchronizer

// EventName names a server-push event.
type EventName string

// Server events.
const (
	EventStateUpdate             EventName = "state_update"
	EventRefresh                 EventName = "refresh"
	EventSelectSamples           EventName = "select_samples"
	EventSelectLabels            EventName = "select_labels"
	EventSetColorScheme          EventName = "set_color_scheme"
	EventSetGroupSlice           EventName = "set_group_slice"
	EventSetSpaces               EventName = "set_spaces"
	EventSetFieldVisibilityStage EventName = "set_field_visibility_stage"
	EventSetSample               EventName = "set_sample"
	EventCloseSession            EventName = "close_session"
	EventDeactivateNotebookCell  EventName = "deactivate_notebook_cell"
	EventReactivateNotebookCell  EventName = "reactivate_notebook_cell"
)

// Events lists every event the server emits.
func Events() []EventName {
	return []EventName{
		EventStateUpdate,
		EventRefresh,
		EventSelectSamples,
		EventSelectLabels,
		EventSetColorScheme,
		EventSetGroupSlice,
		EventSetSpaces,
		EventSetFieldVisibilityStage,
		EventSetSample,
		EventCloseSession,
		EventDeactivateNotebookCell,
		EventReactivateNotebookCell,
	}
}

// SetterName names a session value that is set explicitly rather than
// written through the session store.
type SetterName string

// Setters.
const (
	SetterView          SetterName = "view"
	SetterDatasetName   SetterName = "datasetName"
	SetterSavedViewSlug SetterName = "savedViewSlug"
)

// Setters lists every setter.
func Setters() []SetterName {
	return []SetterName{SetterView, SetterDatasetName, SetterSavedViewSlug}
}
