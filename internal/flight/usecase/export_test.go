package usecase

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shandysiswandi/goflight/internal/flight/entity"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgerror"
	"github.com/xuri/excelize/v2"
)

func TestExportWorkbook(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	data := "lat,lon,alt,speed,note\n37.0,127.0,100,5,takeoff\n37.001,127.001,105,NaN,land\n"
	res, err := f.uc.Upload(ctx, UploadInput{Filename: "logs/DJI_0001.csv", Data: []byte(data)})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	f.wait(t)

	out, err := f.uc.Export(ctx, res.AnalysisID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out.Filename != "DJI_0001.xlsx" {
		t.Fatalf("unexpected filename: %q", out.Filename)
	}

	book, err := excelize.OpenReader(bytes.NewReader(out.Content))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() {
		_ = book.Close()
	}()

	if diff := cmp.Diff([]string{SheetFlight, SheetSummary}, book.GetSheetList()); diff != "" {
		t.Fatalf("sheets mismatch (-want +got):\n%s", diff)
	}

	rows, err := book.GetRows(SheetFlight)
	if err != nil {
		t.Fatalf("flight rows: %v", err)
	}
	want := [][]string{
		{"lat", "lon", "alt", "speed", "note"},
		{"37", "127", "100", "5", "takeoff"},
		{"37.001", "127.001", "105", "NaN", "land"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("flight sheet mismatch (-want +got):\n%s", diff)
	}

	value, err := book.GetCellValue(SheetSummary, "B2")
	if err != nil {
		t.Fatalf("summary cell: %v", err)
	}
	if value != "0.2 s" {
		t.Fatalf("unexpected duration cell: %q", value)
	}

	speed, err := book.GetCellValue(SheetSummary, "B4")
	if err != nil {
		t.Fatalf("summary cell: %v", err)
	}
	if speed != "5.0 m/s" {
		t.Fatalf("unexpected max speed cell: %q", speed)
	}

	distance, err := book.GetCellValue(SheetSummary, "B5")
	if err != nil {
		t.Fatalf("summary cell: %v", err)
	}
	if distance != "0.1 km" {
		t.Fatalf("unexpected distance cell: %q", distance)
	}
}

func TestExportRequiresSummary(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.uc.Upload(ctx, UploadInput{Filename: "flight.csv", Data: []byte("a,b\n1,2\n")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	f.wait(t)

	got, err := f.uc.Analysis(ctx, res.AnalysisID)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if got.Meta.Status != entity.AnalysisStatusNeedsColumns {
		t.Fatalf("expected NEEDS_COLUMNS, got %s", got.Meta.Status)
	}

	if _, err := f.uc.Export(ctx, res.AnalysisID); codeOf(t, err) != pkgerror.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestExportName(t *testing.T) {
	tests := map[string]string{
		"flight.csv":           "flight.xlsx",
		"dir/Log.TXT":          "Log.xlsx",
		"":                     "flight.xlsx",
		"archive.2024.1.csv":   "archive.2024.1.xlsx",
		`C:\logs\DJI_0002.csv`: "DJI_0002.xlsx",
		`..\up\.csv`:           "flight.xlsx",
	}
	for in, want := range tests {
		if got := exportName(in); got != want {
			t.Fatalf("exportName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExportableRowLimit(t *testing.T) {
	rows := make([][]entity.Value, excelize.TotalRows)

	if err := exportable(&entity.FlightTable{Rows: rows[:excelize.TotalRows-1]}); err != nil {
		t.Fatalf("exportable() at the sheet limit err = %v", err)
	}

	err := exportable(&entity.FlightTable{Rows: rows})
	if got := codeOf(t, err); got != pkgerror.CodeConflict {
		t.Fatalf("expected conflict, got %s", got)
	}
}
