package layouts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/csvstore/internal/core"
	"github.com/JonMunkholm/csvstore/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

func init() {
	store.RegisterLayout(Posts{})
}

// PostsColumns is the CSV header the posts layout stores, in order.
var PostsColumns = []string{"postId", "id", "name", "email", "body"}

// Posts stores the fixed postId,id,name,email,body export in typed columns.
type Posts struct{}

func (Posts) Name() string { return "posts" }

func (Posts) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id         BIGSERIAL PRIMARY KEY,
			dataset_id UUID NOT NULL REFERENCES datasets (id) ON DELETE CASCADE,
			row_index  INTEGER NOT NULL,
			post_id    BIGINT,
			comment_id BIGINT,
			name       TEXT,
			email      TEXT,
			body       TEXT,
			UNIQUE (dataset_id, row_index)
		)`,
		`CREATE INDEX IF NOT EXISTS posts_dataset_id_idx ON posts (dataset_id)`,
	}
}

// Accepts requires exactly the posts header, in any order.
func (Posts) Accepts(columns []string) error {
	got := append([]string(nil), columns...)
	want := append([]string(nil), PostsColumns...)
	sort.Strings(got)
	sort.Strings(want)

	if strings.Join(got, ",") != strings.Join(want, ",") {
		return &core.ValidationError{Errors: []string{
			"CSV columns do not match the posts layout: expected " + strings.Join(PostsColumns, ", "),
		}}
	}
	return nil
}

const insertPostSQL = `
INSERT INTO posts (dataset_id, row_index, post_id, comment_id, name, email, body)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// InsertRecords queues one INSERT per row and sends them as a single
// pipelined batch.
func (Posts) InsertRecords(ctx context.Context, db store.DBTX, datasetID uuid.UUID, rows []core.Fields) error {
	batch := &pgx.Batch{}
	for i, row := range rows {
		postID, err := toInt8(row["postId"])
		if err != nil {
			return rowError(i, "postId", err)
		}
		commentID, err := toInt8(row["id"])
		if err != nil {
			return rowError(i, "id", err)
		}
		batch.Queue(insertPostSQL,
			datasetID, i, postID, commentID,
			toText(row["name"]), toText(row["email"]), toText(row["body"]),
		)
	}

	results := db.SendBatch(ctx, batch)
	for i := range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return results.Close()
}

const postsSearch = `
AND (
	CAST(post_id AS TEXT) ILIKE $2 ESCAPE '\'
	OR CAST(comment_id AS TEXT) ILIKE $2 ESCAPE '\'
	OR name ILIKE $2 ESCAPE '\'
	OR email ILIKE $2 ESCAPE '\'
	OR body ILIKE $2 ESCAPE '\'
)`

func (Posts) CountRecords(ctx context.Context, db store.DBTX, datasetID uuid.UUID, search string) (int64, error) {
	query := `SELECT count(*) FROM posts WHERE dataset_id = $1`
	args := []any{datasetID}
	if search != "" {
		query += postsSearch
		args = append(args, store.LikePattern(search))
	}

	var total int64
	err := db.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

func (Posts) SelectRecords(ctx context.Context, db store.DBTX, datasetID uuid.UUID, search string, limit int, offset int64) ([]core.Record, error) {
	query := `SELECT id, dataset_id, row_index, post_id, comment_id, name, email, body FROM posts WHERE dataset_id = $1`
	args := []any{datasetID}
	if search != "" {
		query += postsSearch
		args = append(args, store.LikePattern(search))
	}
	query += fmt.Sprintf(" ORDER BY row_index LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Record, error) {
		var (
			rec               core.Record
			postID, commentID pgtype.Int8
			name, email, body pgtype.Text
		)
		err := row.Scan(&rec.ID, &rec.DatasetID, &rec.RowIndex, &postID, &commentID, &name, &email, &body)
		if err != nil {
			return rec, err
		}
		rec.Fields = core.Fields{
			"postId": fromInt8(postID),
			"id":     fromInt8(commentID),
			"name":   fromText(name),
			"email":  fromText(email),
			"body":   fromText(body),
		}
		return rec, nil
	})
}

func rowError(index int, column string, err error) error {
	return &core.ValidationError{Errors: []string{
		fmt.Sprintf("Row %d: %s %v", index+1, column, err),
	}}
}

func toInt8(v any) (pgtype.Int8, error) {
	switch val := v.(type) {
	case nil:
		return pgtype.Int8{}, nil
	case int64:
		return pgtype.Int8{Int64: val, Valid: true}, nil
	default:
		return pgtype.Int8{}, fmt.Errorf("must be an integer, got %q", core.FormatValue(v))
	}
}

func fromInt8(v pgtype.Int8) any {
	if !v.Valid {
		return nil
	}
	return v.Int64
}

// Text columns keep the textual form; reading re-infers the type so values
// come back as the parser produced them.
func toText(v any) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: core.FormatValue(v), Valid: true}
}

func fromText(v pgtype.Text) any {
	if !v.Valid {
		return nil
	}
	return core.InferValue(v.String)
}
