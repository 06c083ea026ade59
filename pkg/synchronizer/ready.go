package synchronizer

// ReadyState is the connection state of a Synchronizer.
type ReadyState int

const (
	Connecting ReadyState = iota
	Open
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// View is what the app shows for a ReadyState.
type View int

const (
	// ViewLoading is shown while connecting.
	ViewLoading View = iota

	// ViewApp is the app itself, shown only while open.
	ViewApp

	// ViewSetup prompts the user to reconnect or start a session.
	ViewSetup
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewApp:
		return "app"
	case ViewSetup:
		return "setup"
	default:
		return "unknown"
	}
}

// ViewFor returns the view shown in state s.
func ViewFor(s ReadyState) View {
	switch s {
	case Open:
		return ViewApp
	case Closed:
		return ViewSetup
	default:
		return ViewLoading
	}
}
