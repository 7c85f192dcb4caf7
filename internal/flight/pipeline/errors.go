package pipeline

import (
	"fmt"
	"strings"
)

// Role is the flight quantity a column carries.
type Role string

const (
	RoleLatitude  Role = "latitude"
	RoleLongitude Role = "longitude"
	RoleAltitude  Role = "altitude"
	RoleSpeed     Role = "speed"
)

// DecodeError is returned when no candidate encoding could decode the payload.
type DecodeError struct {
	Tried []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unable to decode file, tried encodings: %s", strings.Join(e.Tried, ", "))
}

// ParseError is returned when the text yields no header or no usable row.
type ParseError struct {
	Reason  string
	Dropped int
}

func (e *ParseError) Error() string {
	if e.Dropped > 0 {
		return fmt.Sprintf("unable to parse flight log: %s (%d malformed rows skipped)", e.Reason, e.Dropped)
	}
	return "unable to parse flight log: " + e.Reason
}

// ColumnResolutionError lists the roles that could not be mapped to a column.
// It is recoverable by supplying the columns explicitly.
type ColumnResolutionError struct {
	Roles    []Role
	Explicit bool
}

func (e *ColumnResolutionError) Error() string {
	names := make([]string, 0, len(e.Roles))
	for _, r := range e.Roles {
		names = append(names, string(r))
	}

	if e.Explicit {
		return "selected columns do not exist for: " + strings.Join(names, ", ")
	}
	return "cannot find columns for: " + strings.Join(names, ", ")
}
