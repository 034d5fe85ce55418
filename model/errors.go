package model

import "fmt"

// ErrMissingField is returned by Validate when a required field is empty.
type ErrMissingField string

func (e ErrMissingField) Error() string {
	return fmt.Sprintf("%s is required", string(e))
}
