// Package store is the structured record store behind chat sessions and the
// system config: exact-match queries plus create and update.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Table names
const (
	TableChatSessions = "chat_sessions"
	TableSystemConfig = "system_config"
)

var (
	// ErrNotConfigured is returned by callers that have no store to talk to
	ErrNotConfigured = errors.New("record store not configured")
	// ErrRecordNotFound is returned by Update for an unknown id
	ErrRecordNotFound = errors.New("record not found")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Fields is a record body. Values are JSON-like: string, bool, float64 or
// int, []interface{} and nested maps.
type Fields map[string]interface{}

// Record is one row of a table
type Record struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// RecordStore is the structured store collaborator
type RecordStore interface {
	Query(ctx context.Context, table string, filter Fields) ([]Record, error)
	Create(ctx context.Context, table string, fields Fields) (Record, error)
	Update(ctx context.Context, table, id string, fields Fields) (Record, error)
	Ping(ctx context.Context) error
}

// ValidateIdentifier rejects table names and filter keys that are not plain identifiers
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func validateFilter(table string, filter Fields) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	for key := range filter {
		if err := ValidateIdentifier(key); err != nil {
			return err
		}
	}
	return nil
}

// String reads a string field, formatting scalars
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Bool reads a boolean field. Strings "true"/"1"/"yes" and non-zero numbers count as true.
func (f Fields) Bool(key string) (bool, bool) {
	switch v := f[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	case float64:
		return v != 0, true
	case int:
		return v != 0, true
	case int32:
		return v != 0, true
	case int64:
		return v != 0, true
	}
	return false, false
}

// Int reads a numeric field
func (f Fields) Int(key string) (int, bool) {
	switch v := f[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// StringList reads an array field, or a comma/newline separated string
func (f Fields) StringList(key string) []string {
	var out []string
	switch v := f[key].(type) {
	case []interface{}:
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, item := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' }) {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
