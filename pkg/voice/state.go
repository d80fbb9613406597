package voice

// ConnectionState models the session connection lifecycle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// transitions is the explicit state transition table. Any state may move to
// StateError on an unrecoverable fault; StateError is recoverable by a new
// connect attempt.
var transitions = map[ConnectionState][]ConnectionState{
	StateDisconnected: {StateConnecting, StateError},
	StateConnecting:   {StateConnected, StateDisconnected, StateError},
	StateConnected:    {StateDisconnected, StateError},
	StateError:        {StateConnecting, StateDisconnected, StateError},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Idle reports whether a new connect attempt may start from this state.
func (s ConnectionState) Idle() bool {
	return s == StateDisconnected || s == StateError
}
