package usecase

import (
	"context"
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgerror"
	"github.com/xuri/excelize/v2"
)

const (
	SheetFlight  = "Flight"
	SheetSummary = "Summary"
)

// Export renders a finished analysis as an xlsx workbook: the table on the
// Flight sheet and the formatted summary on the Summary sheet.
func (u *Usecase) Export(ctx context.Context, analysisID string) (ExportResult, error) {
	a, err := u.summarized(ctx, analysisID)
	if err != nil {
		return ExportResult{}, err
	}

	if err := exportable(a.Table); err != nil {
		return ExportResult{}, err
	}

	content, err := buildWorkbook(a)
	if err != nil {
		return ExportResult{}, pkgerror.NewServer(err)
	}

	return ExportResult{
		Filename: exportName(a.Meta.Filename),
		Content:  content,
	}, nil
}

// exportable rejects tables that do not fit on one sheet next to the header.
func exportable(table *entity.FlightTable) error {
	if table.Len()+1 > excelize.TotalRows {
		return pkgerror.NewBusiness(
			fmt.Sprintf("flight log has %d rows, a spreadsheet export holds at most %d", table.Len(), excelize.TotalRows-1),
			pkgerror.CodeConflict,
		)
	}
	return nil
}

func buildWorkbook(a entity.Analysis) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetFlight); err != nil {
		return nil, err
	}
	if err := writeFlightSheet(f, a.Table); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return nil, err
	}
	if err := writeSummarySheet(f, a); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFlightSheet(f *excelize.File, table *entity.FlightTable) error {
	sw, err := f.NewStreamWriter(SheetFlight)
	if err != nil {
		return err
	}

	header := make([]any, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, row := range table.Rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = cellValue(v)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return err
		}
	}

	return sw.Flush()
}

func writeSummarySheet(f *excelize.File, a entity.Analysis) error {
	formatted := a.Summary.Format()
	rows := [][]any{
		{"Metric", "Value", "Raw"},
		{"Flight duration", formatted.FlightDuration, rawNumber(a.Summary.FlightDurationSeconds)},
		{"Max altitude", formatted.MaxAltitude, rawNumber(a.Summary.MaxAltitude)},
		{"Max speed", formatted.MaxSpeed, rawNumber(a.Summary.MaxSpeed)},
		{"Total distance", formatted.TotalDistance, rawNumber(a.Summary.TotalDistanceMeters)},
		{"File", a.Meta.Filename},
		{"Encoding", a.Meta.Encoding},
		{"Rows", a.Table.Len()},
		{"Dropped rows", a.Table.Dropped},
		{"Latitude column", a.Roles.Latitude},
		{"Longitude column", a.Roles.Longitude},
		{"Altitude column", a.Roles.Altitude},
		{"Speed column", a.Roles.Speed},
		{"Column mode", string(a.Roles.Mode)},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return err
		}
	}

	return f.SetColWidth(SheetSummary, "A", "A", 20)
}

// cellValue keeps numbers numeric in the sheet. NaN and Inf have no xlsx form
// and stay as their original text.
func cellValue(v entity.Value) any {
	if v.IsNum && !math.IsNaN(v.Num) && !math.IsInf(v.Num, 0) {
		return v.Num
	}
	return v.Raw
}

func rawNumber(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}

func exportName(filename string) string {
	name := baseName(filename)
	base := strings.TrimSuffix(name, path.Ext(name))
	if base == "" {
		base = "flight"
	}
	return base + ".xlsx"
}
