package state

import (
	"encoding/json"

	"github.com/fiftyone-dev/appsync/pkg/history"
)

// Name identifies a session field.
type Name string

// Key is a typed handle on a session field.
type Key[T any] struct {
	name Name
	def  func() T
}

// NewKey creates a key. def produces the field's default value and is
// called on every reset.
func NewKey[T any](name Name, def func() T) Key[T] {
	return Key[T]{name: name, def: def}
}

// Name returns the field name.
func (k Key[T]) Name() Name {
	return k.name
}

// Default returns a fresh default value.
func (k Key[T]) Default() T {
	if k.def == nil {
		var zero T
		return zero
	}
	return k.def()
}

// SelectedLabel identifies a selected label instance.
type SelectedLabel struct {
	LabelID     string `json:"labelId"`
	SampleID    string `json:"sampleId"`
	Field       string `json:"field"`
	FrameNumber *int   `json:"frameNumber,omitempty"`
}

// ColorConfig is the app color scheme.
type ColorConfig struct {
	ColorPool         []string        `json:"colorPool,omitempty"`
	ColorBy           string          `json:"colorBy,omitempty"`
	Opacity           float64         `json:"opacity,omitempty"`
	MultiColorKeypts  bool            `json:"multicolorKeypoints,omitempty"`
	ShowSkeletons     bool            `json:"showSkeletons,omitempty"`
	Fields            json.RawMessage `json:"fields,omitempty"`
	DefaultMaskTarget json.RawMessage `json:"defaultMaskTargetsColors,omitempty"`
}

// Session fields.
var (
	SelectedSamples = NewKey[[]string]("selectedSamples", func() []string { return []string{} })
	SelectedLabels  = NewKey[[]SelectedLabel]("selectedLabels", func() []SelectedLabel { return []SelectedLabel{} })
	ColorScheme     = NewKey[ColorConfig]("colorScheme", func() ColorConfig { return ColorConfig{Opacity: 0.7} })

	GroupSlice           = NewKey[string]("groupSlice", nil)
	Spaces               = NewKey[json.RawMessage]("spaces", nil)
	FieldVisibilityStage = NewKey[json.RawMessage]("fieldVisibilityStage", nil)
	ModalSelector        = NewKey[*history.ModalSelector]("modalSelector", nil)
)

// field is the untyped view of a key used by the store.
type field struct {
	name Name
	def  func() any
}

func (k Key[T]) field() field {
	return field{name: k.name, def: func() any { return k.Default() }}
}

// fields lists every session field.
var fields = []field{
	SelectedSamples.field(),
	SelectedLabels.field(),
	ColorScheme.field(),
	GroupSlice.field(),
	Spaces.field(),
	FieldVisibilityStage.field(),
	ModalSelector.field(),
}

// Names returns the names of all session fields.
func Names() []Name {
	out := make([]Name, len(fields))
	for i, f := range fields {
		out[i] = f.name
	}
	return out
}
