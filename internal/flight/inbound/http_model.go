package inbound

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
	"github.com/shandysiswandi/goflight/internal/flight/usecase"
)

// Number is a float that encodes NaN and Inf as JSON null.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func numbers(values []float64) []Number {
	out := make([]Number, len(values))
	for i, v := range values {
		out[i] = Number(v)
	}
	return out
}

// cellJSON renders numeric cells as numbers and everything else as the
// original text.
func cellJSON(v entity.Value) any {
	if v.IsNum && !math.IsNaN(v.Num) && !math.IsInf(v.Num, 0) {
		return v.Num
	}
	return v.Raw
}

type UploadResponse struct {
	AnalysisID string                `json:"analysis_id"`
	Status     entity.AnalysisStatus `json:"status"`
	Superseded string                `json:"superseded,omitempty"`
}

func (UploadResponse) StatusCode() int {
	return http.StatusAccepted
}

func (UploadResponse) Message() string {
	return "flight log accepted"
}

type ColumnsRequest struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Altitude  string `json:"altitude"`
	Speed     string `json:"speed"`
}

type RolesResponse struct {
	Latitude  string             `json:"latitude"`
	Longitude string             `json:"longitude"`
	Altitude  string             `json:"altitude"`
	Speed     string             `json:"speed"`
	Mode      entity.ResolveMode `json:"mode"`
}

type FormattedSummary struct {
	FlightDuration string `json:"flight_duration"`
	MaxAltitude    string `json:"max_altitude"`
	MaxSpeed       string `json:"max_speed"`
	TotalDistance  string `json:"total_distance"`
}

type SummaryResponse struct {
	MaxAltitude           Number           `json:"max_altitude"`
	MaxSpeed              Number           `json:"max_speed"`
	FlightDurationSeconds Number           `json:"flight_duration_seconds"`
	TotalDistanceMeters   Number           `json:"total_distance_meters"`
	Formatted             FormattedSummary `json:"formatted"`
}

type AnalysisResponse struct {
	ID          string                `json:"id"`
	Session     string                `json:"session,omitempty"`
	Filename    string                `json:"filename"`
	Status      entity.AnalysisStatus `json:"status"`
	ErrorKind   entity.ErrorKind      `json:"error_kind,omitempty"`
	Error       string                `json:"error,omitempty"`
	Encoding    string                `json:"encoding,omitempty"`
	Rows        int64                 `json:"rows"`
	DroppedRows int64                 `json:"dropped_rows"`
	StartedAt   int64                 `json:"started_at,omitempty"`
	EndedAt     int64                 `json:"ended_at,omitempty"`
	Columns     []string              `json:"columns,omitempty"`
	Roles       *RolesResponse        `json:"roles,omitempty"`
	Summary     *SummaryResponse      `json:"summary,omitempty"`
}

func toAnalysisResponse(r usecase.AnalysisResult) AnalysisResponse {
	out := AnalysisResponse{
		ID:          r.Meta.ID,
		Session:     r.Meta.Session,
		Filename:    r.Meta.Filename,
		Status:      r.Meta.Status,
		ErrorKind:   r.Meta.ErrKind,
		Error:       r.Meta.Err,
		Encoding:    r.Meta.Encoding,
		Rows:        r.Meta.Rows,
		DroppedRows: r.Meta.Dropped,
		StartedAt:   r.Meta.StartedAt,
		EndedAt:     r.Meta.EndedAt,
		Columns:     r.Columns,
	}

	if r.Roles != nil {
		out.Roles = &RolesResponse{
			Latitude:  r.Roles.Latitude,
			Longitude: r.Roles.Longitude,
			Altitude:  r.Roles.Altitude,
			Speed:     r.Roles.Speed,
			Mode:      r.Roles.Mode,
		}
	}

	if r.Summary != nil {
		f := r.Summary.Format()
		out.Summary = &SummaryResponse{
			MaxAltitude:           Number(r.Summary.MaxAltitude),
			MaxSpeed:              Number(r.Summary.MaxSpeed),
			FlightDurationSeconds: Number(r.Summary.FlightDurationSeconds),
			TotalDistanceMeters:   Number(r.Summary.TotalDistanceMeters),
			Formatted: FormattedSummary{
				FlightDuration: f.FlightDuration,
				MaxAltitude:    f.MaxAltitude,
				MaxSpeed:       f.MaxSpeed,
				TotalDistance:  f.TotalDistance,
			},
		}
	}

	return out
}

type PreviewResponse struct {
	AnalysisID string           `json:"analysis_id"`
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`

	totalRows int
}

func (p PreviewResponse) Meta() map[string]any {
	return map[string]any{
		"returned_rows": len(p.Rows),
		"total_rows":    p.totalRows,
	}
}

type PathResponse struct {
	AnalysisID string      `json:"analysis_id"`
	Points     [][2]Number `json:"points"`
}

type SeriesResponse struct {
	AnalysisID string   `json:"analysis_id"`
	Altitude   []Number `json:"altitude"`
	Speed      []Number `json:"speed"`
}

type CancelResponse struct {
	AnalysisID string                `json:"analysis_id"`
	Status     entity.AnalysisStatus `json:"status"`
}

func (CancelResponse) Message() string {
	return "analysis canceled"
}

// EventMessage is one frame of the events websocket.
type EventMessage struct {
	Type       string                `json:"type"`
	EventID    string                `json:"event_id,omitempty"`
	AnalysisID string                `json:"analysis_id"`
	Stage      entity.Stage          `json:"stage,omitempty"`
	Status     entity.AnalysisStatus `json:"status"`
	Message    string                `json:"message,omitempty"`
	At         int64                 `json:"at,omitempty"`
}

func toEventMessage(e entity.StageEvent) EventMessage {
	return EventMessage{
		Type:       "stage",
		EventID:    e.EventID,
		AnalysisID: e.AnalysisID,
		Stage:      e.Stage,
		Status:     e.Status,
		Message:    e.Message,
		At:         e.At,
	}
}
