package devices

import "fmt"

// UnknownDescriptionTypeError reports a utility record whose type is not
// water, electricity or heating.
type UnknownDescriptionTypeError struct {
	Type string
}

func (e *UnknownDescriptionTypeError) Error() string {
	return fmt.Sprintf("devices: unknown utility type %q", e.Type)
}
