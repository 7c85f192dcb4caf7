package entity

type StageEvent struct {
	EventID    string
	AnalysisID string
	Stage      Stage
	Status     AnalysisStatus
	Message    string
	At         int64
}
