package membership

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressResolution is matched by every *AddressResolutionError.
	ErrAddressResolution = errors.New("address resolution failed")

	ErrMemberNotFound = errors.New("member not found")

	ErrIdentityChanged = errors.New("member identity changed")
)

// AddressResolutionError is returned when a member address cannot be resolved.
type AddressResolutionError struct {
	Host string
	Port int
	Err  error
}

func (e *AddressResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s:%d: %s", e.Host, e.Port, e.Err)
}

func (e *AddressResolutionError) Unwrap() error {
	return e.Err
}

func (e *AddressResolutionError) Is(target error) bool {
	return target == ErrAddressResolution
}
