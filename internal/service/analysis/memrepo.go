package analysis

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/chess-metrics/internal/domain"
)

// memrepo is the in-memory history used when no DB is configured. It keeps
// at most maxRecords entries and drops the oldest first.
type memrepo struct {
	mu sync.RWMutex

	maxRecords int
	byID       map[string]*domain.AnalysisRecord
	order      []*domain.AnalysisRecord // insertion order, latest last
}

const defaultMemoryRecords = 1000

func NewMemoryRepository() Repository {
	return &memrepo{
		maxRecords: defaultMemoryRecords,
		byID:       make(map[string]*domain.AnalysisRecord),
	}
}

func (m *memrepo) InsertAnalysis(ctx context.Context, rec *domain.AnalysisRecord) error {
	if rec == nil {
		return ErrDuplicateAnalysis
	}
	id := strings.TrimSpace(rec.ID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[id]; exists {
		return ErrDuplicateAnalysis
	}
	copy := *rec
	copy.ID = id
	m.byID[id] = &copy
	m.order = append(m.order, &copy)

	if len(m.order) > m.maxRecords {
		evicted := m.order[0]
		m.order = m.order[1:]
		delete(m.byID, evicted.ID)
	}
	return nil
}

func (m *memrepo) RecentAnalyses(ctx context.Context, limit int) ([]*domain.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return []*domain.AnalysisRecord{}, nil
	}

	items := make([]*domain.AnalysisRecord, len(m.order))
	for i, rec := range m.order {
		copy := *rec
		items[i] = &copy
	}
	// CreatedAt desc, ID desc
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[strings.TrimSpace(id)]
	if !ok || rec == nil {
		return nil, nil
	}
	copy := *rec
	return &copy, nil
}
