package handlers

import (
	"github.com/fiftyone-dev/appsync/pkg/state"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

// Register installs every event handler, writer and setter.
func Register(regs *synchronizer.Registries) {
	regs.Events.Register(synchronizer.EventStateUpdate, StateUpdate)
	regs.Events.Register(synchronizer.EventRefresh, Refresh)
	regs.Events.Register(synchronizer.EventSelectSamples, SelectSamples)
	regs.Events.Register(synchronizer.EventSelectLabels, SelectLabels)
	regs.Events.Register(synchronizer.EventSetColorScheme, SetColorScheme)
	regs.Events.Register(synchronizer.EventSetGroupSlice, SetGroupSlice)
	regs.Events.Register(synchronizer.EventSetSpaces, SetSpaces)
	regs.Events.Register(synchronizer.EventSetFieldVisibilityStage, SetFieldVisibilityStage)
	regs.Events.Register(synchronizer.EventSetSample, SetSample)
	regs.Events.Register(synchronizer.EventCloseSession, CloseSession)
	regs.Events.Register(synchronizer.EventDeactivateNotebookCell, DeactivateNotebookCell)
	regs.Events.Register(synchronizer.EventReactivateNotebookCell, ReactivateNotebookCell)

	regs.Writers.Register(state.SelectedSamples.Name(), WriteSelectedSamples)
	regs.Writers.Register(state.SelectedLabels.Name(), WriteSelectedLabels)
	regs.Writers.Register(state.ColorScheme.Name(), WriteColorScheme)
	regs.Writers.Register(state.GroupSlice.Name(), WriteGroupSlice)
	regs.Writers.Register(state.Spaces.Name(), WriteSpaces)
	regs.Writers.Register(state.FieldVisibilityStage.Name(), WriteFieldVisibilityStage)
	regs.Writers.Register(state.ModalSelector.Name(), WriteModalSelector)

	regs.Setters.Register(synchronizer.SetterView, SetView)
	regs.Setters.Register(synchronizer.SetterDatasetName, SetDatasetName)
	regs.Setters.Register(synchronizer.SetterSavedViewSlug, SetSavedViewSlug)
}
