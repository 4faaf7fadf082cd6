package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/musichub/server/internal/config"
)

// PostgresStore keeps every collection in one JSONB document table.
type PostgresStore struct {
	db           *sql.DB
	ownsDB       bool
	table        string
	queryTimeout time.Duration
}

// NewPostgresStore opens a connection pool and creates the records table.
func NewPostgresStore(cfg config.StorageConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	config.ApplyPostgresPoolSettings(db, cfg.PostgresPool)

	store, err := NewPostgresStoreWithDB(ctx, db, cfg.PostgresTable, cfg.QueryTimeout.Duration)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// NewPostgresStoreWithDB uses an existing pool. The caller keeps
// ownership of db.
func NewPostgresStoreWithDB(ctx context.Context, db *sql.DB, table string, queryTimeout time.Duration) (*PostgresStore, error) {
	if table == "" {
		table = "records"
	}
	store := &PostgresStore{
		db:           db,
		table:        pq.QuoteIdentifier(table),
		queryTimeout: queryTimeout,
	}
	if err := store.createTable(ctx, table); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context, rawName string) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			seq BIGSERIAL,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (collection, seq);
		CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s USING GIN (data jsonb_path_ops);
	`, s.table,
		pq.QuoteIdentifier("idx_"+rawName+"_collection_seq"),
		pq.QuoteIdentifier("idx_"+rawName+"_data"),
	)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

// Insert implements RecordStore.
func (s *PostgresStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	normalized, err := normalizeDocument(doc)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	id := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %s (collection, id, data) VALUES ($1, $2, $3)`, s.table)
	if _, err := s.db.ExecContext(ctx, query, collection, id, raw); err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	return id, nil
}

// Get implements RecordStore.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Record, error) {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT data FROM %s WHERE collection = $1 AND id = $2`, s.table)
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Record{}, fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
	}
	return Record{ID: id, Data: doc}, nil
}

// Query implements RecordStore.
func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	q, err := q.validate()
	if err != nil {
		return nil, err
	}
	sqlText, args, err := buildPostgresQuery(s.table, collection, q)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
		}
		out = append(out, Record{ID: id, Data: doc})
	}
	return out, rows.Err()
}

// Update implements RecordStore.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch Document) error {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	normalized, err := normalizeDocument(patch)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}

	query := fmt.Sprintf(`UPDATE %s SET data = data || $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2`, s.table)
	res, err := s.db.ExecContext(ctx, query, collection, id, raw)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return requireRow(res)
}

// Delete implements RecordStore.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND id = $2`, s.table)
	res, err := s.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return requireRow(res)
}

// Ping implements RecordStore.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close releases the pool if this store opened it.
func (s *PostgresStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// buildPostgresQuery compiles a validated Query into SQL. Field paths are
// restricted to identifiers by Query.validate, so they are safe to inline
// in the #> path literal; values always travel as parameters.
func buildPostgresQuery(table, collection string, q Query) (string, []any, error) {
	args := []any{collection}
	param := func(v any) (string, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		args = append(args, string(raw))
		return "$" + strconv.Itoa(len(args)) + "::jsonb", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, data FROM %s WHERE collection = $1", table)

	for _, f := range q.Filters {
		expr := "COALESCE(" + jsonPathExpr(f.Field) + ", 'null'::jsonb)"
		switch f.Op {
		case OpIn:
			values := f.Value.([]any)
			if len(values) == 0 {
				b.WriteString(" AND FALSE")
				continue
			}
			placeholders := make([]string, 0, len(values))
			for _, v := range values {
				p, err := param(v)
				if err != nil {
					return "", nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
				}
				placeholders = append(placeholders, p)
			}
			fmt.Fprintf(&b, " AND %s IN (%s)", expr, strings.Join(placeholders, ", "))
		case OpEq, OpNe:
			p, err := param(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
			}
			sqlOp := "="
			if f.Op == OpNe {
				sqlOp = "<>"
			}
			fmt.Fprintf(&b, " AND %s %s %s", expr, sqlOp, p)
		default:
			p, err := param(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
			}
			// jsonb orders across types; restrict range comparisons to same-typed values
			fmt.Fprintf(&b, " AND jsonb_typeof(%s) = jsonb_typeof(%s) AND %s %s %s", expr, p, expr, string(f.Op), p)
		}
	}

	b.WriteString(" ORDER BY ")
	for _, o := range q.OrderBy {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, "%s %s NULLS LAST, ", jsonPathExpr(o.Field), dir)
	}
	b.WriteString("seq ASC")

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args, nil
}

func jsonPathExpr(field string) string {
	if field == "id" {
		return "to_jsonb(id)"
	}
	return "(data #> '{" + strings.ReplaceAll(field, ".", ",") + "}')"
}
