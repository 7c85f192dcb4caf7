package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
	"github.com/shandysiswandi/goflight/internal/flight/pipeline"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgerror"
	"github.com/shandysiswandi/goflight/internal/pkg/pkguid"
)

var errSuperseded = errors.New("analysis superseded")

type Store interface {
	CreateAnalysis(ctx context.Context, meta entity.AnalysisMeta) error
	UpdateMeta(ctx context.Context, id string, fn func(meta *entity.AnalysisMeta)) error
	SaveTable(ctx context.Context, id string, table *entity.FlightTable) error
	SaveResults(ctx context.Context, id string, roles entity.ColumnRoles, summary entity.FlightSummary) error
	GetAnalysis(ctx context.Context, id string) (entity.Analysis, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event entity.StageEvent) error
}

type Runner interface {
	Go(ctx context.Context, f func(ctx context.Context) error)
}

type Clock interface {
	Now() time.Time
}

type Dependency struct {
	Store   Store
	Events  EventPublisher
	Runner  Runner
	Clock   Clock
	ID      pkguid.StringID
	EventID pkguid.StringID
	Decoder *pipeline.Decoder
	RootCtx context.Context

	MaxUploadBytes int64
	PreviewRows    int
}

type Usecase struct {
	store   Store
	events  EventPublisher
	runner  Runner
	clock   Clock
	id      pkguid.StringID
	eventID pkguid.StringID
	decoder *pipeline.Decoder
	rootCtx context.Context

	maxUploadBytes int64
	previewRows    int

	mu       sync.Mutex
	jobs     map[string]*job
	sessions map[string]string
}

// job is an analysis whose pipeline has not finished yet.
type job struct {
	id      string
	session string
	cancel  context.CancelFunc
}

func New(dep Dependency) *Usecase {
	root := dep.RootCtx
	if root == nil {
		root = context.Background()
	}

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	eventID := dep.EventID
	if eventID == nil {
		eventID = dep.ID
	}

	decoder := dep.Decoder
	if decoder == nil {
		decoder = pipeline.NewDecoder()
	}

	previewRows := dep.PreviewRows
	if previewRows < 1 {
		previewRows = 10
	}

	return &Usecase{
		store:          dep.Store,
		events:         dep.Events,
		runner:         dep.Runner,
		clock:          clock,
		id:             dep.ID,
		eventID:        eventID,
		decoder:        decoder,
		rootCtx:        root,
		maxUploadBytes: dep.MaxUploadBytes,
		previewRows:    min(previewRows, MaxPreviewRows),
		jobs:           make(map[string]*job),
		sessions:       make(map[string]string),
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Upload registers a new analysis and runs its pipeline in the background.
// A newer upload in the same session cancels the one still in flight.
func (u *Usecase) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if u.store == nil || u.id == nil || u.runner == nil {
		return UploadResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	in.Filename = baseName(in.Filename)
	if err := u.validateUpload(in); err != nil {
		return UploadResult{}, err
	}

	analysisID := u.id.Generate()
	if err := u.store.CreateAnalysis(ctx, entity.AnalysisMeta{
		ID:       analysisID,
		Session:  in.Session,
		Filename: in.Filename,
		Status:   entity.AnalysisStatusQueued,
	}); err != nil {
		return UploadResult{}, normalizeErr(err)
	}

	jobCtx, cancel := context.WithCancel(u.rootCtx)

	u.mu.Lock()
	var superseded string
	if in.Session != "" {
		if prev, ok := u.jobs[u.sessions[in.Session]]; ok {
			superseded = prev.id
			u.cancelLocked(ctx, prev, "superseded by "+analysisID)
		}
		u.sessions[in.Session] = analysisID
	}
	u.jobs[analysisID] = &job{id: analysisID, session: in.Session, cancel: cancel}
	u.mu.Unlock()

	if superseded != "" {
		slog.InfoContext(ctx, "analysis superseded", "analysis_id", superseded, "by", analysisID, "session", in.Session)
		u.publish(ctx, superseded, entity.StageCanceled, entity.AnalysisStatusCanceled, "superseded by "+analysisID)
	}
	u.publish(ctx, analysisID, entity.StageQueued, entity.AnalysisStatusQueued, in.Filename)

	data := in.Data
	roles := in.Roles
	u.runner.Go(jobCtx, func(ctx context.Context) error {
		defer u.finish(analysisID)

		if err := u.processAnalysis(ctx, analysisID, data, roles); err != nil {
			slog.ErrorContext(ctx, "analysis processing failed", "analysis_id", analysisID, "error", err)
			return err
		}
		return nil
	})

	return UploadResult{
		AnalysisID: analysisID,
		Status:     entity.AnalysisStatusQueued,
		Superseded: superseded,
	}, nil
}

func (u *Usecase) validateUpload(in UploadInput) error {
	switch strings.ToLower(path.Ext(in.Filename)) {
	case ".csv", ".txt":
	default:
		return pkgerror.NewInvalidInputMsg("only .csv or .txt files are accepted")
	}

	if u.maxUploadBytes > 0 && int64(len(in.Data)) > u.maxUploadBytes {
		return pkgerror.NewTooLarge(u.maxUploadBytes)
	}

	if in.Roles != nil && !in.Roles.Empty() {
		return validateRoles(*in.Roles)
	}

	return nil
}

// baseName drops any client directory from an upload name. Windows clients
// send backslash separated paths.
func baseName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// Cancel stops an in-flight analysis. Finished analyses cannot be canceled.
func (u *Usecase) Cancel(ctx context.Context, analysisID string) error {
	if _, err := u.store.GetAnalysis(ctx, analysisID); err != nil {
		return mapStoreErr(err)
	}

	u.mu.Lock()
	j, ok := u.jobs[analysisID]
	if ok {
		u.cancelLocked(ctx, j, "canceled by request")
	}
	u.mu.Unlock()

	if !ok {
		return pkgerror.NewBusiness("analysis is not running", pkgerror.CodeConflict)
	}

	u.publish(ctx, analysisID, entity.StageCanceled, entity.AnalysisStatusCanceled, "canceled by request")
	return nil
}

// cancelLocked must be called with u.mu held. Partial results of the job are
// never committed once it is removed from u.jobs.
func (u *Usecase) cancelLocked(ctx context.Context, j *job, reason string) {
	j.cancel()
	delete(u.jobs, j.id)
	if u.sessions[j.session] == j.id {
		delete(u.sessions, j.session)
	}

	endedAt := u.clock.Now().Unix()
	if err := u.store.UpdateMeta(ctx, j.id, func(meta *entity.AnalysisMeta) {
		meta.Status = entity.AnalysisStatusCanceled
		meta.ErrKind = entity.ErrorKindNone
		meta.Err = reason
		meta.EndedAt = endedAt
	}); err != nil {
		slog.WarnContext(ctx, "failed to mark analysis canceled", "analysis_id", j.id, "error", err)
	}
}

func (u *Usecase) finish(analysisID string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	j, ok := u.jobs[analysisID]
	if !ok {
		return
	}
	j.cancel()
	delete(u.jobs, analysisID)
	if u.sessions[j.session] == analysisID {
		delete(u.sessions, j.session)
	}
}

// commit runs fn only while the analysis is still the live job for its id.
func (u *Usecase) commit(analysisID string, fn func() error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.jobs[analysisID]; !ok {
		return errSuperseded
	}
	return fn()
}

func (u *Usecase) processAnalysis(ctx context.Context, analysisID string, data []byte, roles *entity.ColumnRoles) error {
	defer func() {
		if rvr := recover(); rvr != nil {
			u.fail(ctx, analysisID, entity.ErrorKindInternal, "internal error while analyzing the flight log")
			panic(rvr)
		}
	}()

	startedAt := u.clock.Now().Unix()
	if err := u.commit(analysisID, func() error {
		return u.store.UpdateMeta(ctx, analysisID, func(meta *entity.AnalysisMeta) {
			meta.Status = entity.AnalysisStatusProcessing
			meta.StartedAt = startedAt
		})
	}); err != nil {
		return ignoreSuperseded(err)
	}

	res, err := pipeline.Analyze(ctx, data, pipeline.Options{
		Roles:   roles,
		Decoder: u.decoder,
		Observe: u.observer(analysisID),
	})

	switch {
	case err == nil:
		return u.complete(ctx, analysisID, res)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return u.abort(analysisID, err)
	case pipeline.IsRecoverable(err):
		return u.needsColumns(ctx, analysisID, res, err)
	default:
		u.fail(ctx, analysisID, errorKind(err), err.Error())
		return nil
	}
}

func (u *Usecase) observer(analysisID string) pipeline.Observer {
	return func(ctx context.Context, stage entity.Stage, detail string) {
		slog.DebugContext(ctx, "analysis stage completed", "analysis_id", analysisID, "stage", stage, "detail", detail)
		if stage == entity.StageSummarized {
			return
		}
		u.publish(ctx, analysisID, stage, entity.AnalysisStatusProcessing, detail)
	}
}

func (u *Usecase) complete(ctx context.Context, analysisID string, res pipeline.Result) error {
	endedAt := u.clock.Now().Unix()
	err := u.commit(analysisID, func() error {
		if err := u.store.SaveTable(ctx, analysisID, res.Table); err != nil {
			return err
		}
		if err := u.store.SaveResults(ctx, analysisID, res.Roles, res.Summary); err != nil {
			return err
		}
		return u.store.UpdateMeta(ctx, analysisID, func(meta *entity.AnalysisMeta) {
			meta.Status = entity.AnalysisStatusDone
			meta.Encoding = res.Encoding
			meta.EndedAt = endedAt
		})
	})
	if err != nil {
		return ignoreSuperseded(err)
	}

	slog.InfoContext(ctx, "analysis done",
		"analysis_id", analysisID,
		"encoding", res.Encoding,
		"rows", res.Table.Len(),
		"dropped", res.Table.Dropped,
		"mode", res.Roles.Mode,
	)
	u.publish(ctx, analysisID, entity.StageSummarized, entity.AnalysisStatusDone, summaryMessage(res.Summary))

	return nil
}

func (u *Usecase) needsColumns(ctx context.Context, analysisID string, res pipeline.Result, cause error) error {
	endedAt := u.clock.Now().Unix()
	err := u.commit(analysisID, func() error {
		if err := u.store.SaveTable(ctx, analysisID, res.Table); err != nil {
			return err
		}
		return u.store.UpdateMeta(ctx, analysisID, func(meta *entity.AnalysisMeta) {
			meta.Status = entity.AnalysisStatusNeedsColumns
			meta.ErrKind = entity.ErrorKindColumns
			meta.Err = cause.Error()
			meta.Encoding = res.Encoding
			meta.EndedAt = endedAt
		})
	})
	if err != nil {
		return ignoreSuperseded(err)
	}

	slog.InfoContext(ctx, "analysis needs explicit columns", "analysis_id", analysisID, "reason", cause.Error())
	u.publish(ctx, analysisID, entity.StageFailed, entity.AnalysisStatusNeedsColumns, cause.Error())

	return nil
}

// abort records a cancellation that did not come from a newer upload, such as
// application shutdown.
func (u *Usecase) abort(analysisID string, cause error) error {
	ctx := context.WithoutCancel(u.rootCtx)
	endedAt := u.clock.Now().Unix()
	err := u.commit(analysisID, func() error {
		return u.store.UpdateMeta(ctx, analysisID, func(meta *entity.AnalysisMeta) {
			meta.Status = entity.AnalysisStatusCanceled
			meta.Err = cause.Error()
			meta.EndedAt = endedAt
		})
	})
	if err != nil {
		return ignoreSuperseded(err)
	}

	u.publish(ctx, analysisID, entity.StageCanceled, entity.AnalysisStatusCanceled, cause.Error())
	return nil
}

func (u *Usecase) fail(ctx context.Context, analysisID string, kind entity.ErrorKind, msg string) {
	endedAt := u.clock.Now().Unix()
	err := u.commit(analysisID, func() error {
		return u.store.UpdateMeta(ctx, analysisID, func(meta *entity.AnalysisMeta) {
			meta.Status = entity.AnalysisStatusFailed
			meta.ErrKind = kind
			meta.Err = msg
			meta.EndedAt = endedAt
		})
	})
	if err != nil {
		if !errors.Is(err, errSuperseded) {
			slog.ErrorContext(ctx, "failed to record analysis failure", "analysis_id", analysisID, "error", err)
		}
		return
	}

	slog.WarnContext(ctx, "analysis failed", "analysis_id", analysisID, "kind", kind, "error", msg)
	u.publish(ctx, analysisID, entity.StageFailed, entity.AnalysisStatusFailed, msg)
}

func (u *Usecase) publish(ctx context.Context, analysisID string, stage entity.Stage, status entity.AnalysisStatus, msg string) {
	if u.events == nil {
		return
	}

	event := entity.StageEvent{
		EventID:    u.eventID.Generate(),
		AnalysisID: analysisID,
		Stage:      stage,
		Status:     status,
		Message:    msg,
		At:         u.clock.Now().UnixMilli(),
	}
	if err := u.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "analysis_id", analysisID, "event_id", event.EventID, "error", err)
	}
}

// Analysis returns the current state of an analysis.
func (u *Usecase) Analysis(ctx context.Context, analysisID string) (AnalysisResult, error) {
	a, err := u.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return AnalysisResult{}, mapStoreErr(err)
	}

	return toAnalysisResult(a), nil
}

// SelectColumns resolves the four roles explicitly against the retained table
// and recomputes the summary. It recovers NEEDS_COLUMNS analyses and overrides
// the heuristic choice of finished ones.
func (u *Usecase) SelectColumns(ctx context.Context, analysisID string, roles entity.ColumnRoles) (AnalysisResult, error) {
	if err := validateRoles(roles); err != nil {
		return AnalysisResult{}, err
	}

	a, err := u.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return AnalysisResult{}, mapStoreErr(err)
	}

	switch a.Meta.Status {
	case entity.AnalysisStatusNeedsColumns, entity.AnalysisStatusDone:
	case entity.AnalysisStatusQueued, entity.AnalysisStatusProcessing:
		return AnalysisResult{}, pkgerror.NewBusiness("analysis is still processing", pkgerror.CodeConflict)
	default:
		return AnalysisResult{}, pkgerror.NewBusiness("analysis has no flight table", pkgerror.CodeConflict)
	}
	if a.Table == nil {
		return AnalysisResult{}, pkgerror.NewBusiness("analysis has no flight table", pkgerror.CodeConflict)
	}

	resolved, err := pipeline.ResolveExplicit(a.Table.Columns, roles)
	if err != nil {
		return AnalysisResult{}, columnsErr(err, roles)
	}

	summary := pipeline.Measure(a.Table, resolved)
	endedAt := u.clock.Now().Unix()

	if err := u.store.SaveResults(ctx, analysisID, resolved, summary); err != nil {
		return AnalysisResult{}, mapStoreErr(err)
	}
	if err := u.store.UpdateMeta(ctx, analysisID, func(meta *entity.AnalysisMeta) {
		meta.Status = entity.AnalysisStatusDone
		meta.ErrKind = entity.ErrorKindNone
		meta.Err = ""
		meta.EndedAt = endedAt
	}); err != nil {
		return AnalysisResult{}, mapStoreErr(err)
	}

	slog.InfoContext(ctx, "analysis columns selected", "analysis_id", analysisID, "roles", resolved)
	u.publish(ctx, analysisID, entity.StageResolved, entity.AnalysisStatusProcessing, string(resolved.Mode))
	u.publish(ctx, analysisID, entity.StageSummarized, entity.AnalysisStatusDone, summaryMessage(summary))

	a.Meta.Status = entity.AnalysisStatusDone
	a.Meta.ErrKind = entity.ErrorKindNone
	a.Meta.Err = ""
	a.Meta.EndedAt = endedAt
	a.Roles = &resolved
	a.Summary = &summary

	return toAnalysisResult(a), nil
}

// Preview returns the first rows of the table. rows outside 1..MaxPreviewRows
// falls back to the configured default or the cap.
func (u *Usecase) Preview(ctx context.Context, analysisID string, rows int) (PreviewResult, error) {
	a, err := u.tableOf(ctx, analysisID)
	if err != nil {
		return PreviewResult{}, err
	}

	if rows < 1 {
		rows = u.previewRows
	}
	rows = min(rows, MaxPreviewRows)

	return PreviewResult{
		AnalysisID: analysisID,
		Columns:    a.Table.Columns,
		Rows:       a.Table.Head(rows),
		TotalRows:  a.Table.Len(),
	}, nil
}

// Path returns the ordered coordinates of the flight, one per row.
func (u *Usecase) Path(ctx context.Context, analysisID string) (PathResult, error) {
	a, err := u.summarized(ctx, analysisID)
	if err != nil {
		return PathResult{}, err
	}

	lats := a.Table.Floats(a.Roles.Latitude)
	lons := a.Table.Floats(a.Roles.Longitude)

	points := make([][2]float64, len(lats))
	for i := range lats {
		points[i] = [2]float64{lats[i], lons[i]}
	}

	return PathResult{AnalysisID: analysisID, Points: points}, nil
}

// Series returns the altitude and speed sequences in row order.
func (u *Usecase) Series(ctx context.Context, analysisID string) (SeriesResult, error) {
	a, err := u.summarized(ctx, analysisID)
	if err != nil {
		return SeriesResult{}, err
	}

	return SeriesResult{
		AnalysisID: analysisID,
		Altitude:   a.Table.Floats(a.Roles.Altitude),
		Speed:      a.Table.Floats(a.Roles.Speed),
	}, nil
}

func (u *Usecase) tableOf(ctx context.Context, analysisID string) (entity.Analysis, error) {
	a, err := u.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return entity.Analysis{}, mapStoreErr(err)
	}
	if a.Table == nil {
		return entity.Analysis{}, notReady(a.Meta.Status)
	}
	return a, nil
}

func (u *Usecase) summarized(ctx context.Context, analysisID string) (entity.Analysis, error) {
	a, err := u.tableOf(ctx, analysisID)
	if err != nil {
		return entity.Analysis{}, err
	}
	if a.Meta.Status != entity.AnalysisStatusDone || a.Roles == nil || a.Summary == nil {
		return entity.Analysis{}, notReady(a.Meta.Status)
	}
	return a, nil
}

func notReady(status entity.AnalysisStatus) error {
	switch status {
	case entity.AnalysisStatusQueued, entity.AnalysisStatusProcessing:
		return pkgerror.NewBusiness("analysis is still processing", pkgerror.CodeConflict)
	case entity.AnalysisStatusNeedsColumns:
		return pkgerror.NewBusiness("analysis needs explicit columns", pkgerror.CodeConflict)
	default:
		return pkgerror.NewBusiness(fmt.Sprintf("analysis is %s", strings.ToLower(string(status))), pkgerror.CodeConflict)
	}
}

func validateRoles(roles entity.ColumnRoles) error {
	fields := map[string]string{}
	for role, col := range map[pipeline.Role]string{
		pipeline.RoleLatitude:  roles.Latitude,
		pipeline.RoleLongitude: roles.Longitude,
		pipeline.RoleAltitude:  roles.Altitude,
		pipeline.RoleSpeed:     roles.Speed,
	} {
		if strings.TrimSpace(col) == "" {
			fields[string(role)] = "column is required"
		}
	}

	if len(fields) > 0 {
		return pkgerror.NewInvalidFields("all four columns must be selected", fields)
	}
	return nil
}

func columnsErr(err error, roles entity.ColumnRoles) error {
	var cerr *pipeline.ColumnResolutionError
	if !errors.As(err, &cerr) {
		return normalizeErr(err)
	}

	requested := map[pipeline.Role]string{
		pipeline.RoleLatitude:  roles.Latitude,
		pipeline.RoleLongitude: roles.Longitude,
		pipeline.RoleAltitude:  roles.Altitude,
		pipeline.RoleSpeed:     roles.Speed,
	}
	fields := make(map[string]string, len(cerr.Roles))
	for _, role := range cerr.Roles {
		fields[string(role)] = fmt.Sprintf("column %q not found", requested[role])
	}

	return pkgerror.NewInvalidFields(cerr.Error(), fields)
}

func errorKind(err error) entity.ErrorKind {
	var (
		derr *pipeline.DecodeError
		perr *pipeline.ParseError
		cerr *pipeline.ColumnResolutionError
	)

	switch {
	case errors.As(err, &derr):
		return entity.ErrorKindDecode
	case errors.As(err, &perr):
		return entity.ErrorKindParse
	case errors.As(err, &cerr):
		return entity.ErrorKindColumns
	default:
		return entity.ErrorKindInternal
	}
}

func summaryMessage(s entity.FlightSummary) string {
	f := s.Format()
	return fmt.Sprintf("duration %s, max altitude %s, max speed %s, distance %s",
		f.FlightDuration, f.MaxAltitude, f.MaxSpeed, f.TotalDistance)
}

func ignoreSuperseded(err error) error {
	if errors.Is(err, errSuperseded) {
		return nil
	}
	return err
}

func mapStoreErr(err error) error {
	if errors.Is(err, pkgerror.ErrNotFound) {
		return pkgerror.NewBusiness("analysis not found", pkgerror.CodeNotFound)
	}
	return normalizeErr(err)
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
