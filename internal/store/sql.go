package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"knowledgebot/internal/database"
)

// SQLStore keeps every table in a single records table with a JSON body
type SQLStore struct {
	db *database.DB
}

// NewSQLStore creates a record store over db. db.Initialize must have run.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) jsonField(key string) string {
	if s.db.Dialect == database.DialectMySQL {
		return "JSON_UNQUOTE(JSON_EXTRACT(fields, '$." + key + "'))"
	}
	return "json_extract(fields, '$." + key + "')"
}

// Query returns records of table whose fields equal every filter value
func (s *SQLStore) Query(ctx context.Context, table string, filter Fields) ([]Record, error) {
	if err := validateFilter(table, filter); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var where strings.Builder
	where.WriteString("table_name = ?")
	args := []interface{}{table}
	for _, k := range keys {
		where.WriteString(" AND ")
		where.WriteString(s.jsonField(k))
		where.WriteString(" = ?")
		args = append(args, sqlFilterValue(s.db.Dialect, filter[k]))
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, fields FROM records WHERE "+where.String()+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", table, err)
		}
		fields, err := decodeFields(body)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		records = append(records, Record{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return records, nil
}

// Create inserts a record with a new UUID
func (s *SQLStore) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Record{}, err
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode fields: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO records (id, table_name, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, table, string(body), now, now)
	if err != nil {
		return Record{}, fmt.Errorf("failed to create %s record: %w", table, err)
	}

	decoded, err := decodeFields(string(body))
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Fields: decoded}, nil
}

// Update merges fields into the stored record
func (s *SQLStore) Update(ctx context.Context, table, id string, fields Fields) (Record, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Record{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx, "SELECT fields FROM records WHERE id = ? AND table_name = ?", id, table).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load %s record: %w", table, err)
	}

	merged, err := decodeFields(body)
	if err != nil {
		return Record{}, fmt.Errorf("record %s: %w", id, err)
	}
	for k, v := range fields {
		merged[k] = v
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode fields: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET fields = ?, updated_at = ? WHERE id = ? AND table_name = ?",
		string(encoded), now, id, table); err != nil {
		return Record{}, fmt.Errorf("failed to update %s record: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("failed to commit update: %w", err)
	}

	result, err := decodeFields(string(encoded))
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Fields: result}, nil
}

// Ping checks the connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func decodeFields(body string) (Fields, error) {
	fields := Fields{}
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return fields, nil
}

// sqlFilterValue maps a filter value to what the JSON extraction yields:
// SQLite returns 1/0 for booleans, MySQL's JSON_UNQUOTE returns text.
func sqlFilterValue(dialect database.Dialect, v interface{}) interface{} {
	if dialect == database.DialectMySQL {
		switch t := v.(type) {
		case string:
			return t
		case nil:
			return "null"
		default:
			return fmt.Sprint(t)
		}
	}
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}
