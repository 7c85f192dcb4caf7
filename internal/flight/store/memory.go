package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brunoga/deep"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shandysiswandi/goflight/internal/flight/entity"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgerror"
)

const (
	DefaultCapacity = 256
	DefaultTTL      = time.Hour
)

// InMemoryStore keeps analyses in a bounded cache whose entries expire after a
// fixed time. Nothing is written to disk.
type InMemoryStore struct {
	mu       sync.Mutex
	analyses *expirable.LRU[string, *analysisRecord]
}

type analysisRecord struct {
	mu       sync.RWMutex
	analysis entity.Analysis
}

func NewInMemoryStore(capacity int, ttl time.Duration) *InMemoryStore {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	onEvict := func(id string, _ *analysisRecord) {
		slog.Info("analysis evicted from store", "analysis_id", id)
	}

	return &InMemoryStore{
		analyses: expirable.NewLRU[string, *analysisRecord](capacity, onEvict, ttl),
	}
}

func (s *InMemoryStore) CreateAnalysis(ctx context.Context, meta entity.AnalysisMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.analyses.Contains(meta.ID) {
		return pkgerror.NewBusiness("analysis already exists", pkgerror.CodeConflict)
	}

	s.analyses.Add(meta.ID, &analysisRecord{
		analysis: entity.Analysis{Meta: meta},
	})

	return nil
}

func (s *InMemoryStore) UpdateMeta(ctx context.Context, id string, fn func(meta *entity.AnalysisMeta)) error {
	rec, err := s.get(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	fn(&rec.analysis.Meta)

	return nil
}

// SaveTable stores a copy of the parsed table and its row statistics.
func (s *InMemoryStore) SaveTable(ctx context.Context, id string, table *entity.FlightTable) error {
	rec, err := s.get(id)
	if err != nil {
		return err
	}

	cp, err := deep.Copy(table)
	if err != nil {
		return pkgerror.NewServer(err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.analysis.Table = cp
	rec.analysis.Meta.Rows = int64(cp.Len())
	if cp != nil {
		rec.analysis.Meta.Dropped = int64(cp.Dropped)
	}

	return nil
}

func (s *InMemoryStore) SaveResults(ctx context.Context, id string, roles entity.ColumnRoles, summary entity.FlightSummary) error {
	rec, err := s.get(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.analysis.Roles = &roles
	rec.analysis.Summary = &summary

	return nil
}

// GetAnalysis returns a deep copy, so callers never share memory with the
// store or with each other.
func (s *InMemoryStore) GetAnalysis(ctx context.Context, id string) (entity.Analysis, error) {
	rec, err := s.get(id)
	if err != nil {
		return entity.Analysis{}, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	cp, err := deep.Copy(rec.analysis)
	if err != nil {
		return entity.Analysis{}, pkgerror.NewServer(err)
	}

	return cp, nil
}

func (s *InMemoryStore) Len() int {
	return s.analyses.Len()
}

func (s *InMemoryStore) get(id string) (*analysisRecord, error) {
	rec, ok := s.analyses.Get(id)
	if !ok {
		return nil, pkgerror.ErrNotFound
	}

	return rec, nil
}
