package conn

// State is the connection lifecycle state. Transitions are driven only by
// the Manager; other components read it to gate sending.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name used in logs and the status API
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}
