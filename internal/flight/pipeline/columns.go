package pipeline

import (
	"strings"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
)

type rolePattern struct {
	role    Role
	needles []string
}

// First matching column wins; there is no scoring between several matches.
var rolePatterns = []rolePattern{
	{role: RoleLatitude, needles: []string{"lat"}},
	{role: RoleLongitude, needles: []string{"lon"}},
	{role: RoleAltitude, needles: []string{"alt", "height"}},
	{role: RoleSpeed, needles: []string{"speed"}},
}

// ResolveHeuristic maps each role to the first column whose lowercased name
// contains one of the role's substrings.
func ResolveHeuristic(columns []string) (entity.ColumnRoles, error) {
	lowered := make([]string, len(columns))
	for i, col := range columns {
		lowered[i] = strings.ToLower(col)
	}

	roles := entity.ColumnRoles{Mode: entity.ResolveModeHeuristic}
	var missing []Role
	for _, p := range rolePatterns {
		col, ok := firstMatch(columns, lowered, p.needles)
		if !ok {
			missing = append(missing, p.role)
			continue
		}
		setRole(&roles, p.role, col)
	}

	if len(missing) > 0 {
		return entity.ColumnRoles{}, &ColumnResolutionError{Roles: missing}
	}
	return roles, nil
}

func firstMatch(columns, lowered, needles []string) (string, bool) {
	for i, name := range lowered {
		for _, needle := range needles {
			if strings.Contains(name, needle) {
				return columns[i], true
			}
		}
	}
	return "", false
}

// ResolveExplicit checks caller supplied column names against the table. Names
// match exactly first, then case-insensitively.
func ResolveExplicit(columns []string, want entity.ColumnRoles) (entity.ColumnRoles, error) {
	roles := entity.ColumnRoles{Mode: entity.ResolveModeExplicit}
	var missing []Role
	for _, p := range rolePatterns {
		col, ok := lookupColumn(columns, roleOf(want, p.role))
		if !ok {
			missing = append(missing, p.role)
			continue
		}
		setRole(&roles, p.role, col)
	}

	if len(missing) > 0 {
		return entity.ColumnRoles{}, &ColumnResolutionError{Roles: missing, Explicit: true}
	}
	return roles, nil
}

func lookupColumn(columns []string, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, col := range columns {
		if col == name {
			return col, true
		}
	}
	for _, col := range columns {
		if strings.EqualFold(col, name) {
			return col, true
		}
	}
	return "", false
}

func roleOf(r entity.ColumnRoles, role Role) string {
	switch role {
	case RoleLatitude:
		return r.Latitude
	case RoleLongitude:
		return r.Longitude
	case RoleAltitude:
		return r.Altitude
	case RoleSpeed:
		return r.Speed
	default:
		return ""
	}
}

func setRole(r *entity.ColumnRoles, role Role, col string) {
	switch role {
	case RoleLatitude:
		r.Latitude = col
	case RoleLongitude:
		r.Longitude = col
	case RoleAltitude:
		r.Altitude = col
	case RoleSpeed:
		r.Speed = col
	}
}
