package entity

type AnalysisStatus string

const (
	AnalysisStatusQueued       AnalysisStatus = "QUEUED"
	AnalysisStatusProcessing   AnalysisStatus = "PROCESSING"
	AnalysisStatusNeedsColumns AnalysisStatus = "NEEDS_COLUMNS"
	AnalysisStatusDone         AnalysisStatus = "DONE"
	AnalysisStatusFailed       AnalysisStatus = "FAILED"
	AnalysisStatusCanceled     AnalysisStatus = "CANCELED"
)

// Terminal reports whether no further processing will happen for the analysis.
// NEEDS_COLUMNS is not terminal: it waits for an explicit column selection.
func (s AnalysisStatus) Terminal() bool {
	switch s {
	case AnalysisStatusDone, AnalysisStatusFailed, AnalysisStatusCanceled:
		return true
	default:
		return false
	}
}

type ErrorKind string

const (
	ErrorKindNone     ErrorKind = ""
	ErrorKindDecode   ErrorKind = "decode"
	ErrorKindParse    ErrorKind = "parse"
	ErrorKindColumns  ErrorKind = "columns"
	ErrorKindInternal ErrorKind = "internal"
)

type ResolveMode string

const (
	ResolveModeHeuristic ResolveMode = "heuristic"
	ResolveModeExplicit  ResolveMode = "explicit"
)

type Stage string

const (
	StageQueued     Stage = "queued"
	StageDecoded    Stage = "decoded"
	StageParsed     Stage = "parsed"
	StageResolved   Stage = "resolved"
	StageSummarized Stage = "summarized"
	StageFailed     Stage = "failed"
	StageCanceled   Stage = "canceled"
)
