package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/csvstore/internal/config"
	"github.com/JonMunkholm/csvstore/internal/core"
	"github.com/JonMunkholm/csvstore/internal/store"
	_ "github.com/JonMunkholm/csvstore/internal/store/layouts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	pgOnce      sync.Once
	pgContainer *postgres.PostgresContainer
	pgURL       string
	pgErr       error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if pgContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_ = pgContainer.Terminate(ctx)
		cancel()
	}
	os.Exit(code)
}

// databaseURL returns CSVSTORE_TEST_DATABASE_URL when set, otherwise starts a
// shared PostgreSQL container. Tests skip when neither is available.
func databaseURL(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	if url := os.Getenv("CSVSTORE_TEST_DATABASE_URL"); url != "" {
		return url
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	pgOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		pgContainer, pgErr = postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("csvstore"),
			postgres.WithUsername("csvstore"),
			postgres.WithPassword("csvstore"),
			postgres.BasicWaitStrategies(),
		)
		if pgErr != nil {
			return
		}
		pgURL, pgErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
	})
	require.NoError(t, pgErr, "start postgres container")
	return pgURL
}

// newRepository opens a migrated, empty repository using layout.
func newRepository(t *testing.T, layout string) *store.Repository {
	t.Helper()
	url := databaseURL(t)
	ctx := context.Background()

	repo, err := store.Open(ctx,
		config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1},
		config.StorageConfig{Layout: layout, ColumnsCacheTTL: time.Minute},
	)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	require.NoError(t, repo.Migrate(ctx))
	// Running twice must be harmless.
	require.NoError(t, repo.Migrate(ctx))

	conn, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "TRUNCATE datasets CASCADE")
	require.NoError(t, err)

	return repo
}

func numberedRows(n int) []core.Fields {
	rows := make([]core.Fields, n)
	for i := range rows {
		rows[i] = core.Fields{"n": int64(i), "label": fmt.Sprintf("item-%d", i)}
	}
	return rows
}

func TestRepository_RoundTrip(t *testing.T) {
	repo := newRepository(t, "dynamic")
	ctx := context.Background()

	parsed, err := core.ParseBytes([]byte("id,name,score,active,note\n1,Alice,9.5,true,\n2,bob,-3,FALSE, spaced \n"))
	require.NoError(t, err)
	require.Empty(t, parsed.Errors)

	ds, err := repo.CreateDatasetWithRecords(ctx, "people.csv", parsed.Columns, parsed.Rows)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.RowCount)
	assert.False(t, ds.UploadDate.IsZero())

	records, total, err := repo.ListRecords(ctx, ds.ID, 1, 100, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	for i, rec := range records {
		assert.Equal(t, i, rec.RowIndex)
		assert.Equal(t, ds.ID, rec.DatasetID)
		assert.Equal(t, parsed.Rows[i], rec.Fields)
	}

	columns, err := repo.GetColumns(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "score", "active", "note"}, columns)

	datasets, count, err := repo.ListDatasets(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, datasets, 1)
	assert.Equal(t, "people.csv", datasets[0].Filename)
	assert.Equal(t, columns, datasets[0].Columns)
}

func TestRepository_Pagination(t *testing.T) {
	repo := newRepository(t, "dynamic")
	ctx := context.Background()

	ds, err := repo.CreateDatasetWithRecords(ctx, "items.csv", []string{"n", "label"}, numberedRows(23))
	require.NoError(t, err)

	records, total, err := repo.ListRecords(ctx, ds.ID, 3, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(23), total)
	assert.Equal(t, 3, core.PageCount(total, 10))
	require.Len(t, records, 3)
	assert.Equal(t, []int{20, 21, 22}, []int{records[0].RowIndex, records[1].RowIndex, records[2].RowIndex})
}

func TestRepository_Search(t *testing.T) {
	repo := newRepository(t, "dynamic")
	ctx := context.Background()

	rows := []core.Fields{
		{"name": "Alice", "discount": "50%", "active": true},
		{"name": "bob", "discount": "5", "active": false},
		{"name": "ALICIA", "discount": nil, "active": nil},
	}
	ds, err := repo.CreateDatasetWithRecords(ctx, "search.csv", []string{"name", "discount", "active"}, rows)
	require.NoError(t, err)

	tests := []struct {
		term      string
		wantTotal int64
	}{
		{"ali", 2},
		{"50%", 1},
		{"%", 1},
		{"_", 0},
		{"true", 1},
		{"5", 2},
		{"nothing matches", 0},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			records, total, err := repo.ListRecords(ctx, ds.ID, 1, 10, tt.term)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Len(t, records, int(tt.wantTotal))
		})
	}
}

func TestRepository_Delete(t *testing.T) {
	repo := newRepository(t, "dynamic")
	ctx := context.Background()

	ds, err := repo.CreateDatasetWithRecords(ctx, "gone.csv", []string{"n", "label"}, numberedRows(5))
	require.NoError(t, err)

	// Warm the columns cache so deletion has to evict it.
	_, err = repo.GetColumns(ctx, ds.ID)
	require.NoError(t, err)

	deleted, err := repo.DeleteDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.GetColumns(ctx, ds.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, _, err = repo.ListRecords(ctx, ds.ID, 1, 10, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	deleted, err = repo.DeleteDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.DeleteDataset(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRepository_StaleColumnsAfterDelete(t *testing.T) {
	repo := newRepository(t, "dynamic")
	ctx := context.Background()

	ds, err := repo.CreateDatasetWithRecords(ctx, "raced.csv", []string{"n", "label"}, numberedRows(3))
	require.NoError(t, err)

	deleted, err := repo.DeleteDataset(ctx, ds.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	// A columns lookup that read the row before the delete stores it late.
	store.CacheColumns(repo, ds.ID, []string{"n", "label"})
	columns, err := repo.GetColumns(ctx, ds.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"n", "label"}, columns)

	_, _, err = repo.ListRecords(ctx, ds.ID, 1, 10, "")
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = repo.GetColumns(ctx, ds.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepository_EmptySearchOnExistingDataset(t *testing.T) {
	repo := newRepository(t, "dynamic")
	ctx := context.Background()

	ds, err := repo.CreateDatasetWithRecords(ctx, "kept.csv", []string{"n", "label"}, numberedRows(3))
	require.NoError(t, err)

	records, total, err := repo.ListRecords(ctx, ds.ID, 1, 10, "no such label")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, records)
}

func TestRepository_FailedInsertLeavesNothing(t *testing.T) {
	repo := newRepository(t, "dynamic")
	ctx := context.Background()

	rows := numberedRows(10)
	// jsonb rejects the NUL character, failing the COPY midway.
	rows[7]["label"] = "bad\x00value"

	_, err := repo.CreateDatasetWithRecords(ctx, "broken.csv", []string{"n", "label"}, rows)
	require.Error(t, err)

	var se *core.StorageError
	require.ErrorAs(t, err, &se)
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr), "expected a PostgreSQL error in the chain: %v", err)

	datasets, total, err := repo.ListDatasets(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, datasets)
}

func TestRepository_SeparateSteps(t *testing.T) {
	repo := newRepository(t, "dynamic")
	ctx := context.Background()

	id, err := repo.CreateDataset(ctx, "two-step.csv", 3, []string{"n", "label"})
	require.NoError(t, err)

	bad := numberedRows(3)
	bad[2]["label"] = "\x00"
	require.Error(t, repo.InsertRecords(ctx, id, bad))

	_, total, err := repo.ListRecords(ctx, id, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total, "a failed batch must not leave partial rows")

	require.NoError(t, repo.InsertRecords(ctx, id, numberedRows(3)))
	_, total, err = repo.ListRecords(ctx, id, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestRepository_ListDatasetsNewestFirst(t *testing.T) {
	repo := newRepository(t, "dynamic")
	ctx := context.Background()

	for _, name := range []string{"first.csv", "second.csv", "third.csv"} {
		_, err := repo.CreateDatasetWithRecords(ctx, name, []string{"n", "label"}, numberedRows(1))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	datasets, total, err := repo.ListDatasets(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, datasets, 2)
	assert.Equal(t, "third.csv", datasets[0].Filename)
	assert.Equal(t, "second.csv", datasets[1].Filename)
}

func TestPostsLayout(t *testing.T) {
	repo := newRepository(t, "posts")
	ctx := context.Background()

	parsed, err := core.ParseBytes([]byte("postId,id,name,email,body\n" +
		"1,1,id labore ex,Eliseo@gardner.biz,laudantium enim\n" +
		"1,2,quo vero,Jayne_Kuhic@sydney.com,est natus\n"))
	require.NoError(t, err)
	require.Empty(t, parsed.Errors)

	ds, err := repo.CreateDatasetWithRecords(ctx, "comments.csv", parsed.Columns, parsed.Rows)
	require.NoError(t, err)

	records, total, err := repo.ListRecords(ctx, ds.ID, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	assert.Equal(t, parsed.Rows[1], records[1].Fields)

	_, total, err = repo.ListRecords(ctx, ds.ID, 1, 10, "KUHIC")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	deleted, err := repo.DeleteDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestPostsLayout_RejectsOtherShapes(t *testing.T) {
	repo := newRepository(t, "posts")
	ctx := context.Background()

	_, err := repo.CreateDatasetWithRecords(ctx, "other.csv", []string{"a", "b"}, []core.Fields{{"a": "1", "b": "2"}})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)

	rows := []core.Fields{{"postId": "abc", "id": int64(1), "name": "x", "email": "y", "body": "z"}}
	_, err = repo.CreateDatasetWithRecords(ctx, "bad.csv", []string{"postId", "id", "name", "email", "body"}, rows)
	require.ErrorAs(t, err, &ve)

	_, total, err := repo.ListDatasets(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}
