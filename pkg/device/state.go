package device

// ConnState is the connection state of a backend.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Error
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	}
	return "unknown"
}
