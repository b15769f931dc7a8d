package flex

import (
	"errors"
	"fmt"
)

// Domain errors for solver operations.
var (
	// ErrDataModel indicates particle arrays of inconsistent length.
	ErrDataModel = errors.New("flex: inconsistent particle data model")

	// ErrIndexOutOfRange indicates a particle, simplex or collider index outside its array.
	ErrIndexOutOfRange = errors.New("flex: index out of range")

	// ErrInvalidConfig indicates a solver or constraint parameter outside its valid range.
	ErrInvalidConfig = errors.New("flex: invalid configuration")

	// ErrMalformedGeometry indicates a collider header or baked geometry that cannot be evaluated.
	ErrMalformedGeometry = errors.New("flex: malformed collider geometry")

	// ErrStaleHandle indicates a handle whose resource has been released.
	ErrStaleHandle = errors.New("flex: stale handle")

	// ErrParticleReferenced indicates an attempt to release a particle still used by a constraint.
	ErrParticleReferenced = errors.New("flex: particle referenced by a live constraint")

	// ErrDestroyed indicates use of a solver after Destroy.
	ErrDestroyed = errors.New("flex: solver destroyed")
)

// DataModelError reports the first particle array whose length disagrees
// with the position array.
type DataModelError struct {
	Field string
	Want  int
	Got   int
}

func (e *DataModelError) Error() string {
	return fmt.Sprintf("%v: %s has %d entries, want %d", ErrDataModel, e.Field, e.Got, e.Want)
}

func (e *DataModelError) Unwrap() error {
	return ErrDataModel
}

// IndexError reports an out of range index at an API boundary.
type IndexError struct {
	Kind  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%v: %s %d not in [0, %d)", ErrIndexOutOfRange, e.Kind, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

// CheckIndex returns an *IndexError when i is outside [0, n).
func CheckIndex(kind string, i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{Kind: kind, Index: i, Len: n}
	}
	return nil
}

// GeometryError wraps a rejected collider registration.
type GeometryError struct {
	Shape  string
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrMalformedGeometry, e.Shape, e.Reason)
}

func (e *GeometryError) Unwrap() error {
	return ErrMalformedGeometry
}
