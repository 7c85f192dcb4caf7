package pipeline

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shandysiswandi/goflight/internal/flight/entity"
)

func TestResolveHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		columns []string
		want    entity.ColumnRoles
	}{
		{
			name:    "dji style headers",
			columns: []string{"Latitude(deg)", "Longitude(deg)", "Height(m)", "Speed(m/s)"},
			want:    entity.ColumnRoles{Latitude: "Latitude(deg)", Longitude: "Longitude(deg)", Altitude: "Height(m)", Speed: "Speed(m/s)", Mode: entity.ResolveModeHeuristic},
		},
		{
			name:    "short names",
			columns: []string{"lat", "lon", "alt", "speed"},
			want:    entity.ColumnRoles{Latitude: "lat", Longitude: "lon", Altitude: "alt", Speed: "speed", Mode: entity.ResolveModeHeuristic},
		},
		{
			name:    "first match wins",
			columns: []string{"time", "OSD.altitude", "OSD.height", "OSD.latitude", "OSD.longitude", "OSD.hSpeed", "OSD.vSpeed"},
			want:    entity.ColumnRoles{Latitude: "OSD.latitude", Longitude: "OSD.longitude", Altitude: "OSD.altitude", Speed: "OSD.hSpeed", Mode: entity.ResolveModeHeuristic},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ResolveHeuristic(tt.columns)
			if err != nil {
				t.Fatalf("ResolveHeuristic() err = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ResolveHeuristic() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveHeuristicReportsEveryMissingRole(t *testing.T) {
	t.Parallel()

	_, err := ResolveHeuristic([]string{"x", "y", "z", "w"})

	var cerr *ColumnResolutionError
	if !errors.As(err, &cerr) {
		t.Fatalf("ResolveHeuristic() err = %v, want *ColumnResolutionError", err)
	}
	want := []Role{RoleLatitude, RoleLongitude, RoleAltitude, RoleSpeed}
	if diff := cmp.Diff(want, cerr.Roles); diff != "" {
		t.Fatalf("missing roles mismatch (-want +got):\n%s", diff)
	}
	if cerr.Explicit {
		t.Fatal("heuristic failure flagged as explicit")
	}
	if !IsRecoverable(err) {
		t.Fatal("column resolution failure should be recoverable")
	}
}

func TestResolveHeuristicPartialMatch(t *testing.T) {
	t.Parallel()

	_, err := ResolveHeuristic([]string{"lat", "lon", "z"})

	var cerr *ColumnResolutionError
	if !errors.As(err, &cerr) {
		t.Fatalf("ResolveHeuristic() err = %v, want *ColumnResolutionError", err)
	}
	if diff := cmp.Diff([]Role{RoleAltitude, RoleSpeed}, cerr.Roles); diff != "" {
		t.Fatalf("missing roles mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveExplicit(t *testing.T) {
	t.Parallel()

	columns := []string{"x", "y", "z", "w"}
	got, err := ResolveExplicit(columns, entity.ColumnRoles{Latitude: "x", Longitude: "Y", Altitude: " z ", Speed: "w"})
	if err != nil {
		t.Fatalf("ResolveExplicit() err = %v", err)
	}

	want := entity.ColumnRoles{Latitude: "x", Longitude: "y", Altitude: "z", Speed: "w", Mode: entity.ResolveModeExplicit}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ResolveExplicit() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveExplicitPrefersExactCase(t *testing.T) {
	t.Parallel()

	got, err := ResolveExplicit([]string{"ALT", "alt", "lat", "lon", "speed"}, entity.ColumnRoles{Latitude: "lat", Longitude: "lon", Altitude: "alt", Speed: "speed"})
	if err != nil {
		t.Fatalf("ResolveExplicit() err = %v", err)
	}
	if got.Altitude != "alt" {
		t.Fatalf("altitude = %q, want alt", got.Altitude)
	}
}

func TestResolveExplicitUnknownColumns(t *testing.T) {
	t.Parallel()

	_, err := ResolveExplicit([]string{"x", "y"}, entity.ColumnRoles{Latitude: "x", Longitude: "y", Altitude: "nope"})

	var cerr *ColumnResolutionError
	if !errors.As(err, &cerr) {
		t.Fatalf("ResolveExplicit() err = %v, want *ColumnResolutionError", err)
	}
	if !cerr.Explicit {
		t.Fatal("explicit failure not flagged as explicit")
	}
	if diff := cmp.Diff([]Role{RoleAltitude, RoleSpeed}, cerr.Roles); diff != "" {
		t.Fatalf("missing roles mismatch (-want +got):\n%s", diff)
	}
}
