package entity

type AnalysisMeta struct {
	ID        string
	Session   string
	Filename  string
	Status    AnalysisStatus
	ErrKind   ErrorKind
	Err       string
	StartedAt int64
	EndedAt   int64

	Encoding string
	Rows     int64
	Dropped  int64
}

// Analysis is everything known about one uploaded flight log. Table, Roles and
// Summary are filled progressively as the pipeline advances.
type Analysis struct {
	Meta    AnalysisMeta
	Table   *FlightTable
	Roles   *ColumnRoles
	Summary *FlightSummary
}
