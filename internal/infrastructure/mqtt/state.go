package mqtt

// State represents the session connection state.
//
// Transitions only run Disconnected -> Connecting -> Connected -> Disconnected.
// A failed connect returns from Connecting to Disconnected.
type State uint32

// Session states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
