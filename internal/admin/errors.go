package admin

// Error is the completion status carried by every Result. ErrNone means the
// call succeeded; everything else describes how it failed.
type Error int

const (
	ErrNone Error = iota
	ErrOverlongResponse
	ErrReadingFromSocket
	ErrSocketNotReady
	ErrDeserializationFailed
	ErrSerializationFailed
	ErrTimeout
	ErrNoCookie
	ErrInternal
)

// String returns the human-readable description of the error.
func (e Error) String() string {
	switch e {
	case ErrNone:
		return "Success"
	case ErrOverlongResponse:
		return "Overlong response message"
	case ErrReadingFromSocket:
		return "Error reading from socket, check errno."
	case ErrSocketNotReady:
		return "Socket not ready for reading"
	case ErrDeserializationFailed:
		return "Failed to deserialize response"
	case ErrSerializationFailed:
		return "Failed to serialize request"
	case ErrTimeout:
		return "Timed out waiting for a response"
	case ErrNoCookie:
		return "Cookie request returned with no cookie"
	default:
		return "Internal error"
	}
}

// Error implements the error interface so a failed Result's status can be
// returned directly from the typed convenience calls.
func (e Error) Error() string {
	return e.String()
}
