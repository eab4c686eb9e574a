package tokens

import "fmt"

// Error represents errors that can occur while counting tokens
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tokens.%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("tokens.%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
