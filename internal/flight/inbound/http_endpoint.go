package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
	"github.com/shandysiswandi/goflight/internal/flight/event"
	"github.com/shandysiswandi/goflight/internal/flight/usecase"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgerror"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgrouter"
)

const (
	HeaderSessionID = "X-Session-ID"

	maxFormValueBytes = 1024
)

type HTTPEndpoint struct {
	uc  uc
	hub *event.Hub
	cfg Config
}

func (h *HTTPEndpoint) Upload(ctx context.Context, r *http.Request) (any, error) {
	in, err := h.readUpload(r)
	if err != nil {
		return nil, err
	}

	result, err := h.uc.Upload(ctx, in)
	if err != nil {
		return nil, err
	}

	return UploadResponse{
		AnalysisID: result.AnalysisID,
		Status:     result.Status,
		Superseded: result.Superseded,
	}, nil
}

func (h *HTTPEndpoint) Analysis(ctx context.Context, r *http.Request) (any, error) {
	result, err := h.uc.Analysis(ctx, pkgrouter.GetParam(ctx, "id"))
	if err != nil {
		return nil, err
	}

	return toAnalysisResponse(result), nil
}

func (h *HTTPEndpoint) Preview(ctx context.Context, r *http.Request) (any, error) {
	rows := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("rows")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			return nil, pkgerror.NewInvalidInput(errors.New("invalid rows"))
		}
		rows = value
	}

	result, err := h.uc.Preview(ctx, pkgrouter.GetParam(ctx, "id"), rows)
	if err != nil {
		return nil, err
	}

	out := PreviewResponse{
		AnalysisID: result.AnalysisID,
		Columns:    result.Columns,
		Rows:       make([]map[string]any, 0, len(result.Rows)),
		totalRows:  result.TotalRows,
	}
	for _, row := range result.Rows {
		cells := make(map[string]any, len(row))
		for col, v := range row {
			cells[col] = cellJSON(v)
		}
		out.Rows = append(out.Rows, cells)
	}

	return out, nil
}

func (h *HTTPEndpoint) Path(ctx context.Context, r *http.Request) (any, error) {
	result, err := h.uc.Path(ctx, pkgrouter.GetParam(ctx, "id"))
	if err != nil {
		return nil, err
	}

	points := make([][2]Number, len(result.Points))
	for i, p := range result.Points {
		points[i] = [2]Number{Number(p[0]), Number(p[1])}
	}

	return PathResponse{AnalysisID: result.AnalysisID, Points: points}, nil
}

func (h *HTTPEndpoint) Series(ctx context.Context, r *http.Request) (any, error) {
	result, err := h.uc.Series(ctx, pkgrouter.GetParam(ctx, "id"))
	if err != nil {
		return nil, err
	}

	return SeriesResponse{
		AnalysisID: result.AnalysisID,
		Altitude:   numbers(result.Altitude),
		Speed:      numbers(result.Speed),
	}, nil
}

func (h *HTTPEndpoint) SelectColumns(ctx context.Context, r *http.Request) (any, error) {
	var req ColumnsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, pkgerror.NewInvalidFormat()
	}

	result, err := h.uc.SelectColumns(ctx, pkgrouter.GetParam(ctx, "id"), entity.ColumnRoles{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Altitude:  req.Altitude,
		Speed:     req.Speed,
	})
	if err != nil {
		return nil, err
	}

	return toAnalysisResponse(result), nil
}

func (h *HTTPEndpoint) Cancel(ctx context.Context, r *http.Request) (any, error) {
	id := pkgrouter.GetParam(ctx, "id")
	if err := h.uc.Cancel(ctx, id); err != nil {
		return nil, err
	}

	return CancelResponse{AnalysisID: id, Status: entity.AnalysisStatusCanceled}, nil
}

func (h *HTTPEndpoint) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.uc.Export(ctx, pkgrouter.GetParam(ctx, "id"))
	if err != nil {
		pkgrouter.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Content)
}

// readUpload accepts a multipart form with a "file" part or a raw body named
// by ?filename=. Explicit columns and the session come from form fields or,
// for raw bodies, from the query string.
func (h *HTTPEndpoint) readUpload(r *http.Request) (usecase.UploadInput, error) {
	in := usecase.UploadInput{Session: strings.TrimSpace(r.Header.Get(HeaderSessionID))}
	fields := map[string]string{}

	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if strings.EqualFold(mediaType, "multipart/form-data") {
		found, err := h.readMultipart(r, &in, fields)
		if err != nil {
			return usecase.UploadInput{}, err
		}
		if !found {
			return usecase.UploadInput{}, pkgerror.NewInvalidInputMsg("file part is required")
		}
	} else {
		if r.Body == nil {
			return usecase.UploadInput{}, pkgerror.NewInvalidInputMsg("empty request body")
		}

		query := r.URL.Query()
		in.Filename = strings.TrimSpace(query.Get("filename"))
		if in.Filename == "" {
			return usecase.UploadInput{}, pkgerror.NewInvalidInputMsg("filename is required")
		}
		for _, key := range roleFields {
			fields[key] = query.Get(key)
		}
		fields["session"] = query.Get("session")

		data, err := h.readAll(r.Body)
		if err != nil {
			return usecase.UploadInput{}, err
		}
		in.Data = data
	}

	if session := strings.TrimSpace(fields["session"]); session != "" {
		in.Session = session
	}

	roles := entity.ColumnRoles{
		Latitude:  strings.TrimSpace(fields["latitude"]),
		Longitude: strings.TrimSpace(fields["longitude"]),
		Altitude:  strings.TrimSpace(fields["altitude"]),
		Speed:     strings.TrimSpace(fields["speed"]),
	}
	if !roles.Empty() {
		in.Roles = &roles
	}

	return in, nil
}

//nolint:gochecknoglobals // read-only list of form keys
var roleFields = []string{"latitude", "longitude", "altitude", "speed"}

func (h *HTTPEndpoint) readMultipart(r *http.Request, in *usecase.UploadInput, fields map[string]string) (bool, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return false, pkgerror.NewInvalidFormat()
	}

	found := false
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return found, nil
		}
		if err != nil {
			return false, h.bodyErr(err)
		}

		switch name := part.FormName(); {
		case name == "file" && !found:
			data, err := h.readAll(part)
			if err != nil {
				_ = part.Close()
				return false, err
			}
			in.Filename = part.FileName()
			in.Data = data
			found = true
		case name == "session" || slices.Contains(roleFields, name):
			value, err := io.ReadAll(io.LimitReader(part, maxFormValueBytes))
			if err != nil {
				_ = part.Close()
				return false, h.bodyErr(err)
			}
			fields[name] = string(value)
		}
		_ = part.Close()
	}
}

func (h *HTTPEndpoint) readAll(r io.Reader) ([]byte, error) {
	if h.cfg.MaxUploadBytes > 0 {
		r = io.LimitReader(r, h.cfg.MaxUploadBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, h.bodyErr(err)
	}
	if h.cfg.MaxUploadBytes > 0 && int64(len(data)) > h.cfg.MaxUploadBytes {
		return nil, pkgerror.NewTooLarge(h.cfg.MaxUploadBytes)
	}

	return data, nil
}

func (h *HTTPEndpoint) bodyErr(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return pkgerror.NewTooLarge(h.cfg.MaxUploadBytes)
	}
	return pkgerror.NewInvalidFormat()
}
