package notifier

import "fmt"

// DeliveryError wraps a transport failure for one message.
type DeliveryError struct {
	ChatID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to chat %s: %v", e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
