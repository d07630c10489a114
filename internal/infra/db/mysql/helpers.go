package mysql

import (
	"database/sql"
	"encoding/json"
	"strings"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// nullIfBlank maps empty/whitespace to NULL
func nullIfBlank(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// metadataJSON returns a JSON object string, "{}" for nil.
func metadataJSON(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func parseMetadata(b []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}
