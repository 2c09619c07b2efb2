package store

import (
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// CacheColumns stores columns for id in the repository's columns cache.
func CacheColumns(r *Repository, id uuid.UUID, columns []string) {
	r.columns.Set(id.String(), columns, cache.DefaultExpiration)
}
