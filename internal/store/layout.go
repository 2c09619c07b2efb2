package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/csvstore/internal/core"
	"github.com/google/uuid"
)

// Layout is a physical representation of records. Every layout shares the
// datasets table; only the record table and its queries differ.
type Layout interface {
	// Name is the STORAGE_LAYOUT value selecting this layout.
	Name() string

	// Schema returns idempotent DDL creating the record table and its
	// indexes. It runs after the datasets table exists.
	Schema() []string

	// Accepts returns a *core.ValidationError when a CSV with these columns
	// cannot be stored by the layout.
	Accepts(columns []string) error

	// InsertRecords writes rows with row_index 0..len(rows)-1. It runs inside
	// the caller's transaction.
	InsertRecords(ctx context.Context, db DBTX, datasetID uuid.UUID, rows []core.Fields) error

	// CountRecords returns how many records of the dataset match search.
	CountRecords(ctx context.Context, db DBTX, datasetID uuid.UUID, search string) (int64, error)

	// SelectRecords returns matching records ordered by row_index.
	SelectRecords(ctx context.Context, db DBTX, datasetID uuid.UUID, search string, limit int, offset int64) ([]core.Record, error)
}

var (
	layouts   = make(map[string]Layout)
	layoutsMu sync.RWMutex
)

// RegisterLayout adds a layout to the registry.
// Panics if a layout with the same name is already registered.
func RegisterLayout(l Layout) {
	layoutsMu.Lock()
	defer layoutsMu.Unlock()

	if _, exists := layouts[l.Name()]; exists {
		panic(fmt.Sprintf("layout already registered: %s", l.Name()))
	}
	layouts[l.Name()] = l
}

// LookupLayout returns a layout by name.
func LookupLayout(name string) (Layout, bool) {
	layoutsMu.RLock()
	defer layoutsMu.RUnlock()

	l, ok := layouts[name]
	return l, ok
}

// LayoutNames returns the registered layout names, sorted.
func LayoutNames() []string {
	layoutsMu.RLock()
	defer layoutsMu.RUnlock()

	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
