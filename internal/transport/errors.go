package transport

import "fmt"

// The three attempt-level error kinds. All are non-fatal to the fleet:
// the owning agent records a failed attempt and waits for its next slot.

// ResolutionError reports that a hostname yielded no usable address.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ConnectError reports that no candidate address accepted a connection
// within the timeout. Err holds the last candidate's failure.
type ConnectError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports a failed or short write on an established
// connection. Written is the number of bytes that made it out.
type SendError struct {
	Written int
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send after %d bytes: %v", e.Written, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
