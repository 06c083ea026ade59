package router

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"

	"github.com/fiftyone-dev/appsync/pkg/history"
)

// ReusePolicy lists the navigation events whose transitions keep the
// current page data. A navigation tagged with such an event (on either
// side) to the same pathname and view does not refetch.
type ReusePolicy map[history.Event]bool

// DefaultReusePolicy returns the policy for modal, group slice and spaces
// navigations.
func DefaultReusePolicy() ReusePolicy {
	return ReusePolicy{
		history.EventModal:  true,
		history.EventSlice:  true,
		history.EventSpaces: true,
	}
}

// Allows reports whether e is a reusable event.
func (p ReusePolicy) Allows(e history.Event) bool {
	return e != history.EventNone && p[e]
}

// IsReusable reports whether next can be served by the entry built for
// current.
func IsReusable(current, next history.Location, policy ReusePolicy) bool {
	if !policy.Allows(current.State.Event) && !policy.Allows(next.State.Event) {
		return false
	}
	return current.Pathname == next.Pathname && ViewsEqual(current.State.View, next.State.View)
}

// ViewsEqual compares two encoded views by value. Empty and null views
// are equal.
func ViewsEqual(a, b json.RawMessage) bool {
	return cmp.Equal(decodeView(a), decodeView(b))
}

func decodeView(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
