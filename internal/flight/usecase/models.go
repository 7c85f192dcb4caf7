package usecase

import (
	"github.com/shandysiswandi/goflight/internal/flight/entity"
)

// MaxPreviewRows caps the number of rows a preview returns.
const MaxPreviewRows = 100

type UploadInput struct {
	Filename string
	Session  string
	Data     []byte

	// Roles selects the columns explicitly; nil lets the heuristics decide.
	Roles *entity.ColumnRoles
}

type UploadResult struct {
	AnalysisID string
	Status     entity.AnalysisStatus

	// Superseded is the id of the in-flight analysis of the same session that
	// this upload canceled, if any.
	Superseded string
}

type AnalysisResult struct {
	Meta    entity.AnalysisMeta
	Columns []string
	Roles   *entity.ColumnRoles
	Summary *entity.FlightSummary
}

type PreviewResult struct {
	AnalysisID string
	Columns    []string
	Rows       []map[string]entity.Value
	TotalRows  int
}

type PathResult struct {
	AnalysisID string
	Points     [][2]float64
}

type SeriesResult struct {
	AnalysisID string
	Altitude   []float64
	Speed      []float64
}

type ExportResult struct {
	Filename string
	Content  []byte
}

func toAnalysisResult(a entity.Analysis) AnalysisResult {
	res := AnalysisResult{
		Meta:    a.Meta,
		Roles:   a.Roles,
		Summary: a.Summary,
	}
	if a.Table != nil {
		res.Columns = a.Table.Columns
	}
	return res
}
