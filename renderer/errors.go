package renderer

import "fmt"

// AllocationError reports a render target that cannot be created with the
// requested size or format.
type AllocationError struct {
	Member string
	Size   Size
	Format string
	Reason string
	Err    error
}

func (e *AllocationError) Error() string {
	msg := fmt.Sprintf("allocate %s %s", e.Size, e.Format)
	if e.Member != "" {
		msg = fmt.Sprintf("member %q: %s", e.Member, msg)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AllocationError) Unwrap() error { return e.Err }

// DuplicateMemberError is returned when a member id is already in the chain.
type DuplicateMemberError struct {
	ID string
}

func (e *DuplicateMemberError) Error() string {
	return fmt.Sprintf("swap chain already has a member %q", e.ID)
}
