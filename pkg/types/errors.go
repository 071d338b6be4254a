package types

import "fmt"

// BridgeError wraps errors from the autopilot link with additional context.
type BridgeError struct {
	Err         error
	Message     string
	Recoverable bool
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge error: %s: %v", e.Message, e.Err)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}
