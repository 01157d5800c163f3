// Package model maps an accepted answer map onto the denormalized submission
// row. Column names derive from the field keys (camelCase to snake_case), so
// the row shape follows the field table instead of being spelled out twice.
package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/casewell/intake/form"
)

type Submission struct {
	ID             string            `json:"id"`
	IdempotencyKey string            `json:"-"`
	CreatedAt      time.Time         `json:"createdAt"`
	SourceIP       string            `json:"-"`
	Answers        map[string]string `json:"answers"`
	PhotoURLs      []string          `json:"photoUrls"`
}

// ColumnFor converts a field key to its column name: zipCode -> zip_code.
func ColumnFor(key string) string {
	var b strings.Builder
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Insert persists one submission. Fields absent from sub.Answers (hidden or
// left blank) are stored as NULL, never as empty strings.
func Insert(ctx context.Context, db *sql.DB, schema *form.Schema, sub *Submission) error {
	columns := []string{"id", "idempotency_key", "created_at", "source_ip"}
	values := []any{sub.ID, sub.IdempotencyKey, sub.CreatedAt, sub.SourceIP}

	for i := range schema.Fields {
		key := schema.Fields[i].Key
		columns = append(columns, ColumnFor(key))
		if v, ok := sub.Answers[key]; ok {
			values = append(values, v)
		} else {
			values = append(values, nil)
		}
	}

	columns = append(columns, "photo_urls")
	if len(sub.PhotoURLs) > 0 {
		urls, err := json.Marshal(sub.PhotoURLs)
		if err != nil {
			return err
		}
		values = append(values, string(urls))
	} else {
		values = append(values, nil)
	}

	query := "INSERT INTO submission (" + strings.Join(columns, ", ") + ") VALUES (?" +
		strings.Repeat(", ?", len(columns)-1) + ")"
	_, err := db.ExecContext(ctx, query, values...)
	return err
}

// FindByIdempotencyKey returns the id of an already-stored submission with
// the given key, or "" when this is a first attempt.
func FindByIdempotencyKey(ctx context.Context, db *sql.DB, key string) (string, error) {
	var id string
	err := db.QueryRowContext(ctx,
		"SELECT id FROM submission WHERE idempotency_key = ?", key,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// Get loads one stored submission by id. NULL columns stay absent from the
// answer map.
func Get(ctx context.Context, db *sql.DB, schema *form.Schema, id string) (*Submission, error) {
	columns := []string{"id", "created_at", "source_ip"}
	for i := range schema.Fields {
		columns = append(columns, ColumnFor(schema.Fields[i].Key))
	}
	columns = append(columns, "photo_urls")

	query := "SELECT " + strings.Join(columns, ", ") + " FROM submission WHERE id = ?"

	sub := &Submission{Answers: map[string]string{}}
	fieldValues := make([]sql.NullString, len(schema.Fields))
	var photoURLs sql.NullString

	dest := []any{&sub.ID, &sub.CreatedAt, &sub.SourceIP}
	for i := range fieldValues {
		dest = append(dest, &fieldValues[i])
	}
	dest = append(dest, &photoURLs)

	err := db.QueryRowContext(ctx, query, id).Scan(dest...)
	if err != nil {
		return nil, err
	}

	for i := range schema.Fields {
		if fieldValues[i].Valid {
			sub.Answers[schema.Fields[i].Key] = fieldValues[i].String
		}
	}
	if photoURLs.Valid {
		if err := json.Unmarshal([]byte(photoURLs.String), &sub.PhotoURLs); err != nil {
			return nil, err
		}
	}
	return sub, nil
}
