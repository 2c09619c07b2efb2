package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory DatasetWriter and DatasetReader.
type memStore struct {
	mu       sync.Mutex
	datasets map[uuid.UUID]*Dataset
	records  map[uuid.UUID][]Record
	nextID   int64
	clock    time.Time

	failInsert error
}

func newMemStore() *memStore {
	return &memStore{
		datasets: make(map[uuid.UUID]*Dataset),
		records:  make(map[uuid.UUID][]Record),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) CreateDatasetWithRecords(ctx context.Context, name string, columns []string, rows []Fields) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failInsert != nil {
		return nil, m.failInsert
	}

	m.clock = m.clock.Add(time.Second)
	ds := &Dataset{
		ID:         uuid.New(),
		Filename:   name,
		UploadDate: m.clock,
		RowCount:   len(rows),
		Columns:    append([]string(nil), columns...),
	}

	recs := make([]Record, len(rows))
	for i, row := range rows {
		m.nextID++
		recs[i] = Record{ID: m.nextID, DatasetID: ds.ID, RowIndex: i, Fields: row}
	}

	m.datasets[ds.ID] = ds
	m.records[ds.ID] = recs
	return ds, nil
}

func (m *memStore) ListDatasets(ctx context.Context, page, pageSize int) ([]Dataset, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]Dataset, 0, len(m.datasets))
	for _, ds := range m.datasets {
		all = append(all, *ds)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UploadDate.After(all[j].UploadDate) })

	return window(all, page, pageSize), int64(len(all)), nil
}

func (m *memStore) ListRecords(ctx context.Context, datasetID uuid.UUID, page, pageSize int, search string) ([]Record, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.datasets[datasetID]; !ok {
		return nil, 0, ErrNotFound
	}

	var matched []Record
	needle := strings.ToLower(search)
	for _, rec := range m.records[datasetID] {
		if needle == "" || recordContains(rec, needle) {
			matched = append(matched, rec)
		}
	}

	return window(matched, page, pageSize), int64(len(matched)), nil
}

func (m *memStore) GetColumns(ctx context.Context, datasetID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ds, ok := m.datasets[datasetID]
	if !ok {
		return nil, ErrNotFound
	}
	return ds.Columns, nil
}

func (m *memStore) DeleteDataset(ctx context.Context, datasetID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.datasets[datasetID]; !ok {
		return false, nil
	}
	delete(m.datasets, datasetID)
	delete(m.records, datasetID)
	return true, nil
}

func recordContains(rec Record, needle string) bool {
	for _, v := range rec.Fields {
		if v != nil && strings.Contains(strings.ToLower(FormatValue(v)), needle) {
			return true
		}
	}
	return false
}

func window[T any](items []T, page, pageSize int) []T {
	offset := Offset(page, pageSize)
	if offset >= int64(len(items)) {
		return nil
	}
	start := int(offset)
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// errStore fails every call with err.
type errStore struct{ err error }

func (e errStore) CreateDatasetWithRecords(context.Context, string, []string, []Fields) (*Dataset, error) {
	return nil, e.err
}
func (e errStore) ListDatasets(context.Context, int, int) ([]Dataset, int64, error) {
	return nil, 0, e.err
}
func (e errStore) ListRecords(context.Context, uuid.UUID, int, int, string) ([]Record, int64, error) {
	return nil, 0, e.err
}
func (e errStore) GetColumns(context.Context, uuid.UUID) ([]string, error) { return nil, e.err }
func (e errStore) DeleteDataset(context.Context, uuid.UUID) (bool, error) { return false, e.err }

// staleColumns serves columns for any id, like a cache filled before a delete.
type staleColumns struct {
	*memStore
	columns []string
}

func (s staleColumns) GetColumns(context.Context, uuid.UUID) ([]string, error) {
	return s.columns, nil
}

var errConnLost = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
