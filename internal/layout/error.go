package layout

import (
	"fmt"
	"strings"

	"kiln/internal/hier"
)

// ErrorKind enumerates types of layout calculation errors.
type ErrorKind uint8

const (
	// ErrRecursiveClass indicates a class that contains itself by value.
	ErrRecursiveClass ErrorKind = iota + 1
	// ErrNotAClass indicates a record query on a non-class type.
	ErrNotAClass
	// ErrOverflow indicates a size computation left the int64 range.
	ErrOverflow
	// ErrNoVirtualBase indicates a virtual-base offset query against a
	// hierarchy that does not contain that virtual base.
	ErrNoVirtualBase
)

// Error represents a failure during memory layout calculation.
type Error struct {
	Kind  ErrorKind
	Type  hier.TypeID
	Cycle []hier.TypeID // for ErrRecursiveClass
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ErrRecursiveClass:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive class has infinite size (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive class has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case ErrNotAClass:
		return fmt.Sprintf("record layout requested for non-class type#%d", e.Type)
	case ErrOverflow:
		return fmt.Sprintf("layout size overflow (type#%d)", e.Type)
	case ErrNoVirtualBase:
		return fmt.Sprintf("type#%d is not a virtual base of the queried hierarchy", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
