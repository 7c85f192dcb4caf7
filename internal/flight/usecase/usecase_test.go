package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shandysiswandi/goflight/internal/flight/entity"
	"github.com/shandysiswandi/goflight/internal/flight/pipeline"
	"github.com/shandysiswandi/goflight/internal/flight/store"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgerror"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgroutine"
)

const scenarioCSV = "lat,lon,alt,speed\n37.0,127.0,100,5\n37.001,127.001,105,6\n"

type testPublisher struct {
	mu     sync.Mutex
	events []entity.StageEvent
}

func (p *testPublisher) Publish(ctx context.Context, event entity.StageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *testPublisher) stages(analysisID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for _, e := range p.events {
		if e.AnalysisID == analysisID {
			out = append(out, fmt.Sprintf("%s/%s", e.Stage, e.Status))
		}
	}
	return out
}

type testID struct {
	mu sync.Mutex
	n  int
}

func (t *testID) Generate() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return fmt.Sprintf("id-%d", t.n)
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// gateDetector blocks the first Detect call until release is closed.
type gateDetector struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGateDetector() *gateDetector {
	return &gateDetector{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateDetector) Detect([]byte) (string, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return "", nil
}

type fixture struct {
	uc     *Usecase
	store  *store.InMemoryStore
	events *testPublisher
	runner *pkgroutine.Manager
}

func newFixture(t *testing.T, decoder *pipeline.Decoder) *fixture {
	t.Helper()

	if decoder == nil {
		decoder = &pipeline.Decoder{Default: pipeline.UTF8, Candidates: pipeline.DefaultCandidates()}
	}

	f := &fixture{
		store:  store.NewInMemoryStore(16, time.Minute),
		events: &testPublisher{},
		runner: pkgroutine.NewManager(4),
	}
	f.uc = New(Dependency{
		Store:          f.store,
		Events:         f.events,
		Runner:         f.runner,
		Clock:          fixedClock{now: time.Unix(1700000000, 0)},
		ID:             &testID{},
		Decoder:        decoder,
		RootCtx:        context.Background(),
		MaxUploadBytes: 1024,
		PreviewRows:    1,
	})

	return f
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	if err := f.runner.Wait(); err != nil {
		t.Fatalf("runner wait: %v", err)
	}
}

func codeOf(t *testing.T, err error) pkgerror.Code {
	t.Helper()
	var perr *pkgerror.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected pkgerror.Error, got %T (%v)", err, err)
	}
	return perr.Code()
}

func TestUploadComputesSummary(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.uc.Upload(ctx, UploadInput{Filename: "flight.CSV", Data: []byte(scenarioCSV)})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Status != entity.AnalysisStatusQueued || res.AnalysisID == "" {
		t.Fatalf("unexpected upload result: %+v", res)
	}
	f.wait(t)

	got, err := f.uc.Analysis(ctx, res.AnalysisID)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}

	if got.Meta.Status != entity.AnalysisStatusDone {
		t.Fatalf("expected DONE, got %s (%s)", got.Meta.Status, got.Meta.Err)
	}
	if got.Meta.Encoding != "utf-8" || got.Meta.Rows != 2 || got.Meta.Dropped != 0 {
		t.Fatalf("unexpected meta: %+v", got.Meta)
	}
	if got.Meta.StartedAt != 1700000000 || got.Meta.EndedAt != 1700000000 {
		t.Fatalf("unexpected timestamps: %+v", got.Meta)
	}
	if diff := cmp.Diff([]string{"lat", "lon", "alt", "speed"}, got.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if got.Roles == nil || got.Roles.Mode != entity.ResolveModeHeuristic {
		t.Fatalf("unexpected roles: %+v", got.Roles)
	}

	s := got.Summary
	if s == nil {
		t.Fatal("expected summary")
	}
	if s.MaxAltitude != 105 || s.MaxSpeed != 6 || s.FlightDurationSeconds != 0.2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if math.Abs(s.TotalDistanceMeters-142.30) > 0.01 {
		t.Fatalf("unexpected distance: %v", s.TotalDistanceMeters)
	}

	want := []string{
		"queued/QUEUED",
		"decoded/PROCESSING",
		"parsed/PROCESSING",
		"resolved/PROCESSING",
		"summarized/DONE",
	}
	if diff := cmp.Diff(want, f.events.stages(res.AnalysisID)); diff != "" {
		t.Fatalf("stage events mismatch (-want +got):\n%s", diff)
	}
}

func TestUploadStripsClientDirectory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.uc.Upload(ctx, UploadInput{Filename: `C:\logs\DJI_0003.csv`, Data: []byte(scenarioCSV)})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	f.wait(t)

	got, err := f.uc.Analysis(ctx, res.AnalysisID)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if got.Meta.Filename != "DJI_0003.csv" {
		t.Fatalf("unexpected filename: %q", got.Meta.Filename)
	}
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   UploadInput
		code pkgerror.Code
	}{
		{
			name: "extension",
			in:   UploadInput{Filename: "flight.xlsx", Data: []byte(scenarioCSV)},
			code: pkgerror.CodeInvalidInput,
		},
		{
			name: "no extension",
			in:   UploadInput{Filename: "flight", Data: []byte(scenarioCSV)},
			code: pkgerror.CodeInvalidInput,
		},
		{
			name: "too large",
			in:   UploadInput{Filename: "flight.txt", Data: make([]byte, 1025)},
			code: pkgerror.CodeTooLarge,
		},
		{
			name: "partial roles",
			in: UploadInput{
				Filename: "flight.csv",
				Data:     []byte(scenarioCSV),
				Roles:    &entity.ColumnRoles{Latitude: "lat"},
			},
			code: pkgerror.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.Upload(ctx, tt.in)
			if got := codeOf(t, err); got != tt.code {
				t.Fatalf("expected %s, got %s", tt.code, got)
			}
		})
	}

	if f.store.Len() != 0 {
		t.Fatalf("rejected uploads must not be stored, got %d", f.store.Len())
	}
}

func TestUploadExplicitRoles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	data := "A,B,C,D\n37.0,127.0,100,5\n37.001,127.001,105,6\n"
	res, err := f.uc.Upload(ctx, UploadInput{
		Filename: "flight.csv",
		Data:     []byte(data),
		Roles:    &entity.ColumnRoles{Latitude: "a", Longitude: "B", Altitude: "C", Speed: "d"},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	f.wait(t)

	got, err := f.uc.Analysis(ctx, res.AnalysisID)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	want := &entity.ColumnRoles{Latitude: "A", Longitude: "B", Altitude: "C", Speed: "D", Mode: entity.ResolveModeExplicit}
	if diff := cmp.Diff(want, got.Roles); diff != "" {
		t.Fatalf("roles mismatch (-want +got):\n%s", diff)
	}
}

func TestUploadNeedsColumnsThenSelect(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	data := "x,y,z,w\n37.0,127.0,100,5\n37.001,127.001,105,6\n"
	res, err := f.uc.Upload(ctx, UploadInput{Filename: "flight.csv", Data: []byte(data)})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	f.wait(t)

	got, err := f.uc.Analysis(ctx, res.AnalysisID)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if got.Meta.Status != entity.AnalysisStatusNeedsColumns || got.Meta.ErrKind != entity.ErrorKindColumns {
		t.Fatalf("unexpected meta: %+v", got.Meta)
	}
	if got.Summary != nil {
		t.Fatalf("summary must not exist yet")
	}

	preview, err := f.uc.Preview(ctx, res.AnalysisID, 0)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(preview.Rows) != 1 || preview.TotalRows != 2 {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	if _, err := f.uc.Path(ctx, res.AnalysisID); codeOf(t, err) != pkgerror.CodeConflict {
		t.Fatalf("expected conflict for path, got %v", err)
	}

	_, err = f.uc.SelectColumns(ctx, res.AnalysisID, entity.ColumnRoles{Latitude: "x", Longitude: "y", Altitude: "q", Speed: "w"})
	var perr *pkgerror.Error
	if !errors.As(err, &perr) || perr.Code() != pkgerror.CodeInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if diff := cmp.Diff(map[string]string{"altitude": `column "q" not found`}, perr.Fields()); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	selected, err := f.uc.SelectColumns(ctx, res.AnalysisID, entity.ColumnRoles{Latitude: "x", Longitude: "y", Altitude: "z", Speed: "w"})
	if err != nil {
		t.Fatalf("select columns: %v", err)
	}
	if selected.Meta.Status != entity.AnalysisStatusDone || selected.Meta.ErrKind != entity.ErrorKindNone {
		t.Fatalf("unexpected meta after selection: %+v", selected.Meta)
	}
	if selected.Summary == nil || selected.Summary.MaxAltitude != 105 {
		t.Fatalf("unexpected summary: %+v", selected.Summary)
	}

	stored, err := f.uc.Analysis(ctx, res.AnalysisID)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if diff := cmp.Diff(selected, stored); diff != "" {
		t.Fatalf("stored analysis differs from response (-want +got):\n%s", diff)
	}

	path, err := f.uc.Path(ctx, res.AnalysisID)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if diff := cmp.Diff([][2]float64{{37.0, 127.0}, {37.001, 127.001}}, path.Points); diff != "" {
		t.Fatalf("path mismatch (-want +got):\n%s", diff)
	}

	series, err := f.uc.Series(ctx, res.AnalysisID)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if diff := cmp.Diff([]float64{100, 105}, series.Altitude); diff != "" {
		t.Fatalf("altitude mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{5, 6}, series.Speed); diff != "" {
		t.Fatalf("speed mismatch (-want +got):\n%s", diff)
	}

	want := []string{
		"queued/QUEUED",
		"decoded/PROCESSING",
		"parsed/PROCESSING",
		"failed/NEEDS_COLUMNS",
		"resolved/PROCESSING",
		"summarized/DONE",
	}
	if diff := cmp.Diff(want, f.events.stages(res.AnalysisID)); diff != "" {
		t.Fatalf("stage events mismatch (-want +got):\n%s", diff)
	}
}

func TestUploadTerminalFailures(t *testing.T) {
	decoder := &pipeline.Decoder{Default: pipeline.UTF8, Candidates: []pipeline.Candidate{pipeline.UTF8}}
	f := newFixture(t, decoder)
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
		kind entity.ErrorKind
	}{
		{name: "decode", data: []byte{0xff, 0xfe, 0xfd, 0x00}, kind: entity.ErrorKindDecode},
		{name: "empty", data: nil, kind: entity.ErrorKindParse},
		{name: "header only", data: []byte("lat,lon,alt,speed\n"), kind: entity.ErrorKindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.uc.Upload(ctx, UploadInput{Filename: "flight.csv", Data: tt.data})
			if err != nil {
				t.Fatalf("upload: %v", err)
			}
			f.wait(t)

			got, err := f.uc.Analysis(ctx, res.AnalysisID)
			if err != nil {
				t.Fatalf("analysis: %v", err)
			}
			if got.Meta.Status != entity.AnalysisStatusFailed || got.Meta.ErrKind != tt.kind {
				t.Fatalf("unexpected meta: %+v", got.Meta)
			}
			if got.Meta.Err == "" {
				t.Fatal("expected an error message")
			}

			if _, err := f.uc.SelectColumns(ctx, res.AnalysisID, entity.ColumnRoles{Latitude: "a", Longitude: "b", Altitude: "c", Speed: "d"}); codeOf(t, err) != pkgerror.CodeConflict {
				t.Fatalf("expected conflict, got %v", err)
			}
			if _, err := f.uc.Preview(ctx, res.AnalysisID, 5); codeOf(t, err) != pkgerror.CodeConflict {
				t.Fatalf("expected conflict, got %v", err)
			}
		})
	}
}

func TestUploadSupersedesSession(t *testing.T) {
	gate := newGateDetector()
	f := newFixture(t, &pipeline.Decoder{Detector: gate, Default: pipeline.UTF8, Candidates: pipeline.DefaultCandidates()})
	ctx := context.Background()

	first, err := f.uc.Upload(ctx, UploadInput{Filename: "a.csv", Session: "s-1", Data: []byte(scenarioCSV)})
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	<-gate.entered

	second, err := f.uc.Upload(ctx, UploadInput{Filename: "b.csv", Session: "s-1", Data: []byte(scenarioCSV)})
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if second.Superseded != first.AnalysisID {
		t.Fatalf("expected %s superseded, got %q", first.AnalysisID, second.Superseded)
	}

	close(gate.release)
	f.wait(t)

	canceled, err := f.uc.Analysis(ctx, first.AnalysisID)
	if err != nil {
		t.Fatalf("first analysis: %v", err)
	}
	if canceled.Meta.Status != entity.AnalysisStatusCanceled {
		t.Fatalf("expected CANCELED, got %s", canceled.Meta.Status)
	}
	if canceled.Summary != nil || canceled.Columns != nil {
		t.Fatalf("partial results of a canceled analysis must be discarded: %+v", canceled)
	}

	done, err := f.uc.Analysis(ctx, second.AnalysisID)
	if err != nil {
		t.Fatalf("second analysis: %v", err)
	}
	if done.Meta.Status != entity.AnalysisStatusDone {
		t.Fatalf("expected DONE, got %s", done.Meta.Status)
	}

	stages := f.events.stages(first.AnalysisID)
	if len(stages) == 0 || stages[len(stages)-1] != "canceled/CANCELED" {
		t.Fatalf("expected canceled to be the last stage, got %v", stages)
	}
}

func TestUploadOtherSessionsAreIndependent(t *testing.T) {
	gate := newGateDetector()
	f := newFixture(t, &pipeline.Decoder{Detector: gate, Default: pipeline.UTF8, Candidates: pipeline.DefaultCandidates()})
	ctx := context.Background()

	first, err := f.uc.Upload(ctx, UploadInput{Filename: "a.csv", Session: "s-1", Data: []byte(scenarioCSV)})
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	<-gate.entered

	second, err := f.uc.Upload(ctx, UploadInput{Filename: "b.csv", Session: "s-2", Data: []byte(scenarioCSV)})
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if second.Superseded != "" {
		t.Fatalf("different sessions must not supersede, got %q", second.Superseded)
	}

	close(gate.release)
	f.wait(t)

	for _, id := range []string{first.AnalysisID, second.AnalysisID} {
		got, err := f.uc.Analysis(ctx, id)
		if err != nil {
			t.Fatalf("analysis %s: %v", id, err)
		}
		if got.Meta.Status != entity.AnalysisStatusDone {
			t.Fatalf("analysis %s: expected DONE, got %s", id, got.Meta.Status)
		}
	}
}

func TestCancel(t *testing.T) {
	gate := newGateDetector()
	f := newFixture(t, &pipeline.Decoder{Detector: gate, Default: pipeline.UTF8, Candidates: pipeline.DefaultCandidates()})
	ctx := context.Background()

	res, err := f.uc.Upload(ctx, UploadInput{Filename: "a.csv", Data: []byte(scenarioCSV)})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	<-gate.entered

	if err := f.uc.Cancel(ctx, res.AnalysisID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	close(gate.release)
	f.wait(t)

	got, err := f.uc.Analysis(ctx, res.AnalysisID)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if got.Meta.Status != entity.AnalysisStatusCanceled {
		t.Fatalf("expected CANCELED, got %s", got.Meta.Status)
	}

	if err := f.uc.Cancel(ctx, res.AnalysisID); codeOf(t, err) != pkgerror.CodeConflict {
		t.Fatalf("expected conflict on second cancel, got %v", err)
	}
	if err := f.uc.Cancel(ctx, "missing"); codeOf(t, err) != pkgerror.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAnalysisNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.uc.Analysis(ctx, "missing"); codeOf(t, err) != pkgerror.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.uc.Export(ctx, "missing"); codeOf(t, err) != pkgerror.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPreviewBounds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var b []byte
	b = append(b, "lat,lon,alt,speed\n"...)
	for i := 0; i < 150; i++ {
		b = append(b, fmt.Sprintf("37.%03d,127.0,100,5\n", i)...)
	}

	if _, err := f.uc.Upload(ctx, UploadInput{Filename: "long.csv", Data: b}); err == nil {
		t.Fatalf("expected upload above the size cap to fail")
	}

	f.uc.maxUploadBytes = 0
	res, err := f.uc.Upload(ctx, UploadInput{Filename: "long.csv", Data: b})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	f.wait(t)

	tests := map[int]int{0: 1, -3: 1, 7: 7, 500: MaxPreviewRows}
	for rows, want := range tests {
		preview, err := f.uc.Preview(ctx, res.AnalysisID, rows)
		if err != nil {
			t.Fatalf("preview(%d): %v", rows, err)
		}
		if len(preview.Rows) != want {
			t.Fatalf("preview(%d): expected %d rows, got %d", rows, want, len(preview.Rows))
		}
		if preview.TotalRows != 150 {
			t.Fatalf("preview(%d): expected 150 total rows, got %d", rows, preview.TotalRows)
		}
	}
}
